package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

const anonymousPrompt = "[anonymous] > "

type shellCommand struct {
	help string
	run  func(ctx context.Context, args []string) (exit bool, err error)
}

// shell is the interactive prompt. It keeps one bank session, and so one
// database connection, for its whole lifetime.
type shell struct {
	bank     bankClient
	in       *bufio.Scanner
	out      io.Writer
	logger   zerolog.Logger
	prompt   string
	commands map[string]shellCommand
}

func newShell(bank bankClient, in io.Reader, out io.Writer, logger zerolog.Logger) *shell {
	s := &shell{
		bank:   bank,
		in:     bufio.NewScanner(in),
		out:    out,
		logger: logger,
		prompt: anonymousPrompt,
	}

	s.commands = map[string]shellCommand{
		"exit":                {help: "Exit the program", run: s.exit},
		"help":                {help: "List commands", run: s.help},
		"login":               {help: "Login to your account, prompts for username and password", run: s.login},
		"logout":              {help: "Logout of the current account", run: s.logout},
		"set_isolation_level": {help: "Change the isolation level to READ_COMMITTED (default), REPEATABLE_READ or SERIALIZABLE", run: s.setIsolation},
		"get_isolation_level": {help: "Show the isolation level", run: s.getIsolation},
		"list_accounts":       {help: "List all accounts owned by this user", run: s.listAccounts},
		"list_transactions":   {help: "List all transactions of ACCOUNT_NAME", run: s.listTransactions},
		"list_transfers":      {help: "List all transfers of ACCOUNT_NAME", run: s.listTransfers},
		"transfer":            {help: "Transfer " + transferUsage, run: s.transfer},
		"check":               {help: "Check that every transfer is a balanced entry pair", run: s.check},
	}

	return s
}

// run reads commands until exit or end of input. Command errors are
// logged and the prompt continues.
func (s *shell) run(ctx context.Context) error {
	fmt.Fprintln(s.out, `Welcome to bank "Bankito". Type help or ? to list commands.`)

	for {
		fmt.Fprint(s.out, s.prompt)

		line, ok := s.readLine()
		if !ok {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}

		exit, err := s.dispatch(ctx, line)
		if err != nil {
			s.logger.Error().Err(err).Msg(strings.Fields(line)[0])
		}
		if exit {
			return nil
		}
	}
}

func (s *shell) readLine() (string, bool) {
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

func (s *shell) dispatch(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	name := fields[0]
	if name == "?" {
		name = "help"
	}

	cmd, ok := s.commands[name]
	if !ok {
		return false, fmt.Errorf("unknown command %q, type help to list commands", name)
	}

	return cmd.run(ctx, fields[1:])
}

func (s *shell) exit(context.Context, []string) (bool, error) {
	s.logger.Info().Msg("Bye bye!")
	return true, nil
}

func (s *shell) help(context.Context, []string) (bool, error) {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := newTable(s.out)
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%s\n", name, s.commands[name].help)
	}
	return false, tw.Flush()
}

func (s *shell) login(ctx context.Context, _ []string) (bool, error) {
	fmt.Fprint(s.out, "Enter your username: ")
	username, ok := s.readLine()
	if !ok {
		return true, io.ErrUnexpectedEOF
	}

	fmt.Fprint(s.out, "Enter your password: ")
	password, ok := s.readLine()
	if !ok {
		return true, io.ErrUnexpectedEOF
	}

	user, err := s.bank.Login(ctx, username, password)
	if err != nil {
		return false, err
	}

	s.logger.Info().Msg("Hello there, welcome back!")
	s.prompt = fmt.Sprintf("[%s] > ", user.Username)

	return false, nil
}

func (s *shell) logout(context.Context, []string) (bool, error) {
	s.bank.Logout()
	s.prompt = anonymousPrompt
	return false, nil
}

func (s *shell) setIsolation(_ context.Context, args []string) (bool, error) {
	level := strings.Join(args, " ")
	if err := s.bank.SetIsolationLevel(level); err != nil {
		return false, err
	}

	s.logger.Info().Str("isolation", s.bank.IsolationLevel().String()).Msg("Isolation level changed")
	return false, nil
}

func (s *shell) getIsolation(context.Context, []string) (bool, error) {
	_, err := fmt.Fprintf(s.out, "Current isolation level: %s\n", s.bank.IsolationLevel())
	return false, err
}

func (s *shell) listAccounts(ctx context.Context, _ []string) (bool, error) {
	accounts, err := s.bank.ListAccounts(ctx)
	if err != nil {
		return false, err
	}
	return false, printAccounts(s.out, accounts)
}

func (s *shell) listTransactions(ctx context.Context, args []string) (bool, error) {
	name, err := accountArg(args)
	if err != nil {
		return false, err
	}

	entries, err := s.bank.ListTransactions(ctx, name)
	if err != nil {
		return false, err
	}
	return false, printEntries(s.out, entries)
}

func (s *shell) listTransfers(ctx context.Context, args []string) (bool, error) {
	name, err := accountArg(args)
	if err != nil {
		return false, err
	}

	lines, err := s.bank.ListTransfers(ctx, name)
	if err != nil {
		return false, err
	}
	return false, printTransferLines(s.out, lines)
}

func (s *shell) transfer(ctx context.Context, args []string) (bool, error) {
	req, err := parseTransferArgs(args)
	if err != nil {
		return false, err
	}

	account, err := s.bank.Transfer(ctx, req)
	if err != nil {
		return false, err
	}
	return false, printTransferResult(s.out, account)
}

func (s *shell) check(ctx context.Context, _ []string) (bool, error) {
	report, err := s.bank.CheckConsistency(ctx)
	if report != nil {
		if perr := printReport(s.out, report); perr != nil {
			return false, perr
		}
	}
	return false, err
}

func accountArg(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("expected exactly one ACCOUNT_NAME")
	}
	return args[0], nil
}
