package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/At4lian/VQCC/internal/security"
)

const envJWTSecret = "VQCC_SECURITY_JWTACCESSSECRET"

func newTokenCommand() *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <owner-id>",
		Short: "Mint a development access token for an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv(envJWTSecret)
			}
			if strings.TrimSpace(secret) == "" {
				return errors.New("no signing secret: pass --secret or set " + envJWTSecret)
			}
			token, err := security.GenerateAccessToken(secret, args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 signing secret (default $"+envJWTSecret+")")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	return cmd
}
