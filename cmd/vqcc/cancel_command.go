package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel <asset-id>",
		Short: "Cancel an upload, or report it failed with --reason",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			reqCtx, cancel := context.WithTimeout(cmd.Context(), ctx.timeout)
			defer cancel()

			if reason != "" {
				if err := api.ReportFailure(reqCtx, args[0], reason); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reported upload %s as failed\n", args[0])
				return nil
			}
			if err := api.CancelUpload(reqCtx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Upload %s canceled\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Report a client-side failure with this reason instead of canceling")
	return cmd
}
