// Command eventtail prints ledger events from a running server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credledger/internal/middleware"
	"credledger/internal/notifications"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd(ctx).Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func rootCmd(ctx context.Context) *cobra.Command {
	var (
		server  string
		opts    notifications.TailOptions
		account string
		secret  string
	)
	cmd := &cobra.Command{
		Use:          "eventtail",
		Short:        "Stream ledger events as JSON lines",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// A shared secret lets operators mint a short-lived token locally.
			if opts.Token == "" && account != "" {
				if secret == "" {
					return errors.New("--secret (or JWT_SECRET) is required with --account")
				}
				token, err := middleware.IssueToken(secret, account, time.Hour)
				if err != nil {
					return err
				}
				opts.Token = token
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			return notifications.Tail(ctx, server, opts, func(env notifications.Envelope) {
				if err := enc.Encode(env); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
				}
			})
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8375", "server base URL")
	cmd.Flags().StringVar(&opts.Token, "token", os.Getenv("CREDLEDGER_TOKEN"), "bearer token")
	cmd.Flags().StringSliceVar(&opts.Types, "types", nil, "event types to receive")
	cmd.Flags().BoolVar(&opts.Following, "following", false, "only events from followed accounts")
	cmd.Flags().StringVar(&account, "account", "", "mint a token for this account")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "JWT secret used with --account")
	return cmd
}
