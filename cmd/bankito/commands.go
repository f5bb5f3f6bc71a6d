package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/bankito/internal/infrastructure/auth"
	"github.com/iho/bankito/internal/infrastructure/postgres"
)

func shellCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive prompt over a single session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			bank, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer bank.Close(context.WithoutCancel(ctx))

			if c.opts.isolation != "" {
				if err := bank.SetIsolationLevel(c.opts.isolation); err != nil {
					return err
				}
			}

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			return newShell(bank, c.in, c.out, c.logger(cfg)).run(ctx)
		},
	}
}

func accountsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List the accounts of the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd.Context(), func(ctx context.Context, bank bankClient) error {
				accounts, err := bank.ListAccounts(ctx)
				if err != nil {
					return err
				}
				return printAccounts(c.out, accounts)
			})
		},
	}
}

func transactionsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "transactions ACCOUNT_NAME",
		Short: "List the ledger entries of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd.Context(), func(ctx context.Context, bank bankClient) error {
				entries, err := bank.ListTransactions(ctx, args[0])
				if err != nil {
					return err
				}
				return printEntries(c.out, entries)
			})
		},
	}
}

func transfersCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "transfers ACCOUNT_NAME",
		Short: "List the transfers touching an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd.Context(), func(ctx context.Context, bank bankClient) error {
				lines, err := bank.ListTransfers(ctx, args[0])
				if err != nil {
					return err
				}
				return printTransferLines(c.out, lines)
			})
		},
	}
}

func transferCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer " + transferUsage,
		Short: "Move money from one of your accounts to another account",
		Long: `Move money from one of your accounts to another account.

SCENARIO is one of:
  safe                  lock both accounts in ascending id order (default)
  skip_consistent_lock  lock in call order; opposite transfers may deadlock
  skip_for_update       take no row locks; concurrent transfers may overdraw

AMOUNT is in major units, e.g. 30 or 12.50.`,
		Args: cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := parseTransferArgs(args)
			if err != nil {
				return err
			}

			return c.withSession(cmd.Context(), func(ctx context.Context, bank bankClient) error {
				account, err := bank.Transfer(ctx, req)
				if err != nil {
					return err
				}
				return printTransferResult(c.out, account)
			})
		},
	}
}

func checkCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that every transfer is a balanced entry pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd.Context(), func(ctx context.Context, bank bankClient) error {
				report, err := bank.CheckConsistency(ctx)
				if report != nil {
					if perr := printReport(c.out, report); perr != nil {
						return perr
					}
				}
				return err
			})
		},
	}
}

func migrateCmd(c *cli) *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Database schema migrations",
	}

	run := func(apply func(databaseURL, migrationsPath string, logger zerolog.Logger) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			return apply(cfg.DatabaseURL, cfg.MigrationsPath, c.logger(cfg))
		}
	}

	migrate.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE:  run(postgres.RunMigrations),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE:  run(postgres.RunMigrationsDown),
		},
	)

	return migrate
}

var hashPassword = auth.HashPassword

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password PASSWORD",
		Short: "Print the bcrypt hash of a password for the users table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := hashPassword(args[0])
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
