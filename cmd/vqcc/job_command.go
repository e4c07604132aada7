package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/At4lian/VQCC/internal/client"
)

type jobGetter interface {
	GetAnalysisJob(ctx context.Context, jobID string) (client.Job, error)
}

func newJobCommand(ctx *commandContext) *cobra.Command {
	var (
		wait        bool
		waitTimeout time.Duration
		raw         bool
	)

	cmd := &cobra.Command{
		Use:   "job <id>",
		Short: "Show an analysis job and its results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}

			reqCtx, cancel := context.WithTimeout(cmd.Context(), ctx.timeout)
			if wait {
				cancel()
				reqCtx, cancel = context.WithTimeout(cmd.Context(), waitTimeout)
			}
			defer cancel()

			var job client.Job
			if wait {
				job, err = pollJob(reqCtx, api, args[0], 2*time.Second)
			} else {
				job, err = api.GetAnalysisJob(reqCtx, args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if raw {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(job)
			}
			fmt.Fprintln(out, renderJob(job))
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the job is COMPLETED or FAILED")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 15*time.Minute, "Give up waiting after this long")
	cmd.Flags().BoolVar(&raw, "json", false, "Print the job as JSON")
	return cmd
}

func pollJob(ctx context.Context, api jobGetter, jobID string, every time.Duration) (client.Job, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		job, err := api.GetAnalysisJob(ctx, jobID)
		if err != nil {
			return client.Job{}, err
		}
		if job.Status == "COMPLETED" || job.Status == "FAILED" {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, fmt.Errorf("job %s still %s: %w", jobID, job.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

func renderJob(job client.Job) string {
	pairs := [][2]string{
		{"Job", job.ID},
		{"Status", job.Status},
		{"Asset", job.AssetID},
		{"Checks", strings.Join(job.Requested, ", ")},
		{"Created", formatTime(&job.CreatedAt)},
		{"Started", formatTime(job.StartedAt)},
		{"Finished", formatTime(job.FinishedAt)},
		{"Error", job.ErrorMessage},
	}
	if job.Asset != nil {
		pairs = append(pairs, [2]string{"File", job.Asset.OriginalName})
	}
	if len(job.Result) > 0 && string(job.Result) != "null" {
		var buf bytes.Buffer
		if err := json.Indent(&buf, job.Result, "", "  "); err == nil {
			pairs = append(pairs, [2]string{"Result", buf.String()})
		} else {
			pairs = append(pairs, [2]string{"Result", string(job.Result)})
		}
	}
	return keyValueTable(pairs)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Local().Format(time.RFC3339)
}
