package main

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/At4lian/VQCC/internal/client"
)

const (
	envAPI   = "VQCC_API"
	envToken = "VQCC_TOKEN"
)

type commandContext struct {
	apiFlag   *string
	tokenFlag *string
	timeout   time.Duration
}

func newCommandContext(apiFlag, tokenFlag *string) *commandContext {
	return &commandContext{apiFlag: apiFlag, tokenFlag: tokenFlag, timeout: 30 * time.Second}
}

func (c *commandContext) baseURL() string {
	if v := strings.TrimSpace(*c.apiFlag); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv(envAPI)); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}

func (c *commandContext) token() string {
	if v := strings.TrimSpace(*c.tokenFlag); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv(envToken))
}

// apiClient builds a client for the user API. Requests are bounded by the
// command context, so the HTTP client itself carries no timeout.
func (c *commandContext) apiClient() (*client.Client, error) {
	token := c.token()
	if token == "" {
		return nil, errors.New("no access token: pass --token or set " + envToken)
	}
	return client.New(c.baseURL(), token, &http.Client{}), nil
}

func newRootCommand() *cobra.Command {
	var apiFlag string
	var tokenFlag string

	ctx := newCommandContext(&apiFlag, &tokenFlag)

	rootCmd := &cobra.Command{
		Use:           "vqcc",
		Short:         "Upload videos and run quality checks",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&apiFlag, "api", "", "API base URL (default $"+envAPI+" or http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Bearer access token (default $"+envToken+")")

	rootCmd.AddCommand(newUploadCommand(ctx))
	rootCmd.AddCommand(newJobCommand(ctx))
	rootCmd.AddCommand(newCancelCommand(ctx))
	rootCmd.AddCommand(newTokenCommand())

	return rootCmd
}
