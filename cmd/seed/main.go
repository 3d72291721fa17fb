// Command seed generates demo fixtures and replays them into the ledger.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"credledger/internal/bootstrap"
	"credledger/internal/config"
	"credledger/internal/seed"
	"credledger/internal/service"

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
	root := &cobra.Command{
		Use:          "seed",
		Short:        "Generate and apply ledger fixtures",
		SilenceUsage: true,
	}
	root.AddCommand(generateCmd())
	root.AddCommand(applyCmd(ctx))
	return root
}

func generateCmd() *cobra.Command {
	var (
		opts seed.GenerateOptions
		out  string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a fake fixture as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				w = f
			}
			return seed.WriteFixture(w, seed.Generate(opts))
		},
	}
	cmd.Flags().StringSliceVar(&opts.Accounts, "accounts", []string{"alice", "bob", "carol"}, "accounts that author and vote")
	cmd.Flags().IntVar(&opts.Posts, "posts", 20, "number of posts")
	cmd.Flags().IntVar(&opts.Votes, "votes", 60, "number of votes")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed (0 picks one)")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file")
	return cmd
}

func applyCmd(ctx context.Context) *cobra.Command {
	var (
		file     string
		generate seed.GenerateOptions
		inMemory bool
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Replay a fixture through the configured ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture := seed.Generate(generate)
			if file != "" {
				var err error
				if fixture, err = seed.LoadFixtureFile(file); err != nil {
					return err
				}
			}

			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{InMemory: inMemory, ServiceName: "credledger-seed"})
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			seeder := seed.NewSeeder(service.NewPublishService(rt.Ledger, rt.Store, rt.Oracle), rt.Ledger)
			report, err := seeder.Apply(ctx, fixture)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "posts=%d votes=%d follows=%d skipped=%d\n",
				report.Posts, report.Votes, report.Follows, report.Skipped)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture file (generated when empty)")
	cmd.Flags().StringSliceVar(&generate.Accounts, "accounts", []string{"alice", "bob", "carol"}, "accounts for a generated fixture")
	cmd.Flags().IntVar(&generate.Posts, "posts", 20, "posts in a generated fixture")
	cmd.Flags().IntVar(&generate.Votes, "votes", 60, "votes in a generated fixture")
	cmd.Flags().Int64Var(&generate.Seed, "seed", 0, "random seed for a generated fixture")
	cmd.Flags().BoolVar(&inMemory, "in-memory", false, "skip the journal database (dry run)")
	return cmd
}
