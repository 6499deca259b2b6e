package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/iho/pinledger/internal/adapter/export"
	"github.com/iho/pinledger/internal/domain"
	"github.com/iho/pinledger/internal/usecase"
)

func transferCmd(c *cli) *cobra.Command {
	var from, to, pin, amount string

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move money between two accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromID, err := domain.ParseAccountID(from)
			if err != nil {
				return err
			}
			toID, err := domain.ParseAccountID(to)
			if err != nil {
				return err
			}
			value, err := domain.ParseAmount(amount)
			if err != nil {
				return err
			}

			receipt, err := c.uc.Transfer(cmd.Context(), usecase.TransferInput{
				FromAccountID: fromID,
				PIN:           pin,
				ToAccountID:   toID,
				Amount:        value,
			})
			return mutationResult(cmd.OutOrStdout(), c.asJSON, receipt, func(w io.Writer) {
				fmt.Fprintf(w, "Transferred %s from %d to %d\n", value.StringFixed(2), fromID, toID)
			}, err)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Source account")
	cmd.Flags().StringVar(&pin, "pin", "", "PIN of the source account")
	cmd.Flags().StringVar(&to, "to", "", "Destination account")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount")
	for _, name := range []string{"from", "pin", "to", "amount"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func adminCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative operations that need no PIN",
	}

	cmd.AddCommand(
		freezeCmd(c, "freeze", "Freeze an account", func(uc *usecase.LedgerUseCase) freezeFunc { return uc.Freeze }),
		freezeCmd(c, "unfreeze", "Unfreeze an account", func(uc *usecase.LedgerUseCase) freezeFunc { return uc.Unfreeze }),
		freezeCmd(c, "toggle", "Flip the frozen flag of an account", func(uc *usecase.LedgerUseCase) freezeFunc { return uc.ToggleFreeze }),
		exportCmd(c),
	)
	return cmd
}

type freezeFunc func(ctx context.Context, id int64) (domain.AccountView, error)

func freezeCmd(c *cli, use, short string, pick func(*usecase.LedgerUseCase) freezeFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ACCOUNT",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseAccountID(args[0])
			if err != nil {
				return err
			}

			view, err := pick(c.uc)(cmd.Context(), id)
			view.History = nil
			return mutationResult(cmd.OutOrStdout(), c.asJSON, view, func(w io.Writer) {
				fmt.Fprintf(w, "Account %d is %s\n", view.ID, status(view.Frozen))
			}, err)
		},
	}
}

func exportCmd(c *cli) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every account as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts := c.uc.ListAccounts(cmd.Context())

			if out == "" || out == "-" {
				return export.WriteCSV(cmd.OutOrStdout(), accounts)
			}

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := export.WriteCSV(f, accounts); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d accounts to %s\n", len(accounts), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, stdout when empty")
	return cmd
}

func ledgerCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger wide checks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "consistency",
		Short: "Replay every history and compare it with the recorded balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recon := usecase.NewReconciliationUseCase(c.uc.Ledger())
			report, err := recon.GenerateReconciliationReport(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if c.asJSON {
				printJSON(w, report)
			} else {
				fmt.Fprintf(w, "Accounts:   %d (%d reconciled)\n", report.TotalAccounts, report.ReconciledAccounts)
				fmt.Fprintf(w, "Balance:    %s\n", report.TotalBalance.StringFixed(2))
				fmt.Fprintf(w, "Transfers:  in=%s out=%s\n",
					report.TotalTransferredIn.StringFixed(2), report.TotalTransferredOut.StringFixed(2))
				for _, d := range report.Discrepancies {
					fmt.Fprintf(w, "MISMATCH %d recorded=%s calculated=%s\n",
						d.AccountID, d.RecordedBalance.String(), d.CalculatedBalance.String())
				}
			}

			if !report.LedgerConsistent {
				return usecase.ErrInconsistentLedger
			}
			if !c.asJSON {
				fmt.Fprintln(w, "Ledger is consistent")
			}
			return nil
		},
	})
	return cmd
}

// hashPinCmd prints the stored digest of a PIN. It needs no ledger, so it
// skips opening the snapshot store.
func hashPinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-pin PIN",
		Short: "Print the digest stored for a PIN",
		Args:  cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := domain.ValidatePIN(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), domain.HashPIN(args[0]))
			return nil
		},
	}
}
