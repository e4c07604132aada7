package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/At4lian/VQCC/internal/client"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var (
		checks      []string
		contentType string
		wait        bool
		waitTimeout time.Duration
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a video and optionally queue analysis checks",
		Long: "Upload a video straight to object storage using a presigned credential.\n" +
			"Ctrl-C cancels the transfer and tells the API; a second Ctrl-C exits immediately.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}

			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open file: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("inspect file: %w", err)
			}
			if info.IsDir() {
				return fmt.Errorf("%s is a directory", path)
			}

			ct, err := resolveContentType(contentType, path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			bar := newUploadBar(cmd.ErrOrStderr(), info.Name(), quiet)

			session := client.NewSession(api, client.NewHTTPTransferrer(&http.Client{}), client.SessionOptions{
				Checks: checks,
				OnProgress: func(pct int) {
					_ = bar.Set(pct)
				},
			})
			defer session.Wait()

			stopSignals := watchInterrupts(cmd.ErrOrStderr(), session)
			defer stopSignals()

			err = session.Send(cmd.Context(), client.File{
				Name:        info.Name(),
				ContentType: ct,
				Size:        info.Size(),
				Body:        f,
			})
			_ = bar.Finish()
			fmt.Fprintln(cmd.ErrOrStderr())

			switch {
			case errors.Is(err, client.ErrCanceled):
				fmt.Fprintf(out, "Upload %s canceled\n", session.AssetID())
				return nil
			case err != nil:
				return err
			}

			asset := session.Asset()
			fmt.Fprint(out, keyValueTable([][2]string{
				{"Asset", asset.ID},
				{"Name", asset.OriginalName},
				{"Status", asset.Status},
				{"Size", asset.SizeBytes},
			}))
			fmt.Fprintln(out)

			job, jobErr := session.Job()
			if jobErr != nil {
				return fmt.Errorf("upload finished but analysis was not queued: %w", jobErr)
			}
			if job == nil {
				return nil
			}
			if wait {
				waitCtx, cancel := context.WithTimeout(cmd.Context(), waitTimeout)
				defer cancel()
				final, err := pollJob(waitCtx, api, job.ID, 2*time.Second)
				if err != nil {
					return err
				}
				job = &final
			}
			fmt.Fprint(out, renderJob(*job))
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&checks, "checks", nil, "Checks to run after upload (RESOLUTION,FPS,BITRATE,AVG_LOUDNESS)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Override the MIME type inferred from the file extension")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the analysis job to finish")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 15*time.Minute, "Give up waiting after this long")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide the progress bar")
	return cmd
}

var videoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".ts":   "video/mp2t",
}

func resolveContentType(override, path string) (string, error) {
	ct := strings.TrimSpace(override)
	ext := strings.ToLower(filepath.Ext(path))
	if ct == "" {
		ct = videoExtensions[ext]
	}
	if ct == "" {
		ct = mime.TypeByExtension(ext)
	}
	if ct == "" {
		return "", fmt.Errorf("cannot infer content type of %s; pass --content-type", filepath.Base(path))
	}
	if media, _, err := mime.ParseMediaType(ct); err == nil {
		ct = media
	}
	return ct, nil
}

func newUploadBar(w io.Writer, name string, quiet bool) *progressbar.ProgressBar {
	if quiet {
		w = io.Discard
	}
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(name),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
	)
}

// watchInterrupts maps the first interrupt to a cancel (or an abandon when
// no transfer is running yet) and the second to an immediate exit.
func watchInterrupts(w io.Writer, session *client.Session) func() {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case <-sigCh:
		case <-done:
			return
		}
		fmt.Fprintln(w, "\ncanceling upload...")
		if session.State() == client.StateUploading {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := session.Cancel(ctx)
			cancel()
			if err != nil && !errors.Is(err, client.ErrNotCancelable) {
				fmt.Fprintln(w, err)
			}
		} else {
			session.Abandon("Upload interrupted")
		}

		select {
		case <-sigCh:
			session.Abandon("Upload interrupted")
			session.Wait()
			os.Exit(130)
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
