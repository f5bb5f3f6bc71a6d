package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/bankito/internal/domain"
	"github.com/iho/bankito/internal/infrastructure/config"
	"github.com/iho/bankito/internal/infrastructure/logger"
	"github.com/iho/bankito/internal/usecase"
)

// bankClient is what the commands need from one bank session.
type bankClient interface {
	Login(ctx context.Context, username, password string) (*domain.User, error)
	Logout()
	CurrentUser() (*domain.User, error)
	SetIsolationLevel(level string) error
	IsolationLevel() domain.IsolationLevel
	ListAccounts(ctx context.Context) ([]*domain.Account, error)
	ListTransactions(ctx context.Context, name string) ([]*domain.Entry, error)
	ListTransfers(ctx context.Context, name string) ([]*domain.TransferLine, error)
	Transfer(ctx context.Context, req usecase.TransferRequest) (*domain.Account, error)
	CheckConsistency(ctx context.Context) (*usecase.LedgerReport, error)
}

// bankSession is a bankClient holding a database connection.
type bankSession interface {
	bankClient
	Close(ctx context.Context)
}

type globalOptions struct {
	isolation string
	user      string
	password  string
	logLevel  string
}

// cli carries the streams and the session opener shared by all commands.
type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	opts   globalOptions

	// open returns a new session. Tests replace it with a stub.
	open func(ctx context.Context) (bankSession, error)
}

func newCLI(in io.Reader, out, errOut io.Writer) *cli {
	c := &cli{in: in, out: out, errOut: errOut}
	c.open = c.openDatabaseSession
	return c
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bankito",
		Short:         "Bankito ledger",
		Long:          `Move money between accounts and inspect the ledger of the Bankito bank.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetIn(c.in)
	rootCmd.SetOut(c.out)
	rootCmd.SetErr(c.errOut)

	rootCmd.PersistentFlags().StringVar(&c.opts.isolation, "isolation", "", "Isolation level: READ_COMMITTED, REPEATABLE_READ or SERIALIZABLE (default from ISOLATION_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&c.opts.user, "user", os.Getenv("BANKITO_USER"), "Username (env BANKITO_USER)")
	rootCmd.PersistentFlags().StringVar(&c.opts.password, "password", os.Getenv("BANKITO_PASSWORD"), "Password (env BANKITO_PASSWORD)")
	rootCmd.PersistentFlags().StringVar(&c.opts.logLevel, "log-level", "", "Log level: debug, info, warn or error (default from LOG_LEVEL)")

	rootCmd.AddCommand(
		shellCmd(c),
		accountsCmd(c),
		transactionsCmd(c),
		transfersCmd(c),
		transferCmd(c),
		checkCmd(c),
		migrateCmd(c),
		serveCmd(c),
		hashPasswordCmd(),
	)

	return rootCmd
}

// loadConfig reads the environment and applies the global flags.
func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if c.opts.isolation != "" {
		cfg.IsolationLevel = c.opts.isolation
	}

	if c.opts.logLevel != "" {
		cfg.LogLevel = c.opts.logLevel
	}

	return cfg, nil
}

func (c *cli) logger(cfg *config.Config) zerolog.Logger {
	return logger.New(logger.Config{
		Output: c.errOut,
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
}

// withSession opens a session, logs in with the global credentials and
// runs fn. The session is closed afterwards.
func (c *cli) withSession(ctx context.Context, fn func(ctx context.Context, bank bankClient) error) error {
	if c.opts.user == "" {
		return fmt.Errorf("%w: pass --user and --password or set BANKITO_USER and BANKITO_PASSWORD", domain.ErrNotLoggedIn)
	}

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

	if _, err := bank.Login(ctx, c.opts.user, c.opts.password); err != nil {
		return err
	}

	return fn(ctx, bank)
}
