package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iho/pinledger/internal/bootstrap"
	"github.com/iho/pinledger/internal/domain"
	"github.com/iho/pinledger/internal/infrastructure/config"
	"github.com/iho/pinledger/internal/infrastructure/logger"
	"github.com/iho/pinledger/internal/usecase"
)

// opener builds the ledger use case for one command invocation.
type opener func(ctx context.Context) (*usecase.LedgerUseCase, func(), error)

type cli struct {
	open    opener
	uc      *usecase.LedgerUseCase
	closeFn func()
	asJSON  bool
}

func main() {
	c := &cli{open: openFromEnv}
	err := newRootCmd(c).Execute()
	c.teardown()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openFromEnv loads the ledger from the snapshot store configured in the
// environment. Logs go to stderr so stdout stays machine readable.
func openFromEnv(ctx context.Context) (*usecase.LedgerUseCase, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	// Events have no consumer and idempotency keys no HTTP caller in a
	// one-shot process, so neither may pull in redis.
	cfg.EventsBackend = config.EventsBackendNone
	cfg.IdempotencyEnabled = false

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: "console", Output: os.Stderr})

	res, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	uc, err := bootstrap.NewLedgerUseCase(ctx, cfg, res, log, bootstrap.LedgerOptions{})
	if err != nil {
		res.Close()
		return nil, nil, err
	}
	return uc, res.Close, nil
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "pinledger",
		Short:        "PIN-protected account ledger",
		Long:         `A command line interface over the pinledger ledger. Every mutating command saves a snapshot before it returns.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().BoolVar(&c.asJSON, "json", false, "Print results as JSON")

	rootCmd.AddCommand(
		accountCmd(c),
		transferCmd(c),
		adminCmd(c),
		ledgerCmd(c),
		hashPinCmd(),
	)

	return rootCmd
}

func (c *cli) setup(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	uc, closeFn, err := c.open(ctx)
	if err != nil {
		return err
	}
	c.uc = uc
	c.closeFn = closeFn
	return nil
}

func (c *cli) teardown() {
	if c.closeFn != nil {
		c.closeFn()
		c.closeFn = nil
	}
}

// mutationResult reports the outcome of a mutating command. A failed save
// leaves the mutation applied, so the result is printed before the error.
func mutationResult(w io.Writer, asJSON bool, v any, text func(io.Writer), err error) error {
	if err != nil && domain.KindOf(err) != domain.KindIO {
		return err
	}
	if asJSON {
		printJSON(w, v)
	} else {
		text(w)
	}
	if err != nil {
		return fmt.Errorf("change applied but not saved: %w", err)
	}
	return nil
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func printAccounts(w io.Writer, accounts []domain.AccountView) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tOWNER\tBALANCE\tSTATUS")
	for _, a := range accounts {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", a.ID, truncate(a.Owner, 24), a.Balance.StringFixed(2), status(a.Frozen))
	}
	_ = tw.Flush()
}

func printAccount(w io.Writer, a domain.AccountView) {
	fmt.Fprintf(w, "Account: %d\nOwner:   %s\nBalance: %s\nStatus:  %s\n", a.ID, a.Owner, a.Balance.StringFixed(2), status(a.Frozen))
}

func printHistory(w io.Writer, history []domain.Transaction) {
	for _, tx := range history {
		fmt.Fprintln(w, tx.String())
	}
}

func status(frozen bool) string {
	if frozen {
		return "frozen"
	}
	return "active"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
