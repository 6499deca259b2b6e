package main

import (
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/pinledger/internal/domain"
	"github.com/iho/pinledger/internal/usecase"
)

func accountCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
	}

	cmd.AddCommand(
		accountCreateCmd(c),
		accountListCmd(c),
		accountShowCmd(c),
		accountLoginCmd(c),
		accountMoveCmd(c, "deposit", "Deposit money into an account"),
		accountMoveCmd(c, "withdraw", "Withdraw money from an account"),
		accountHistoryCmd(c),
	)
	return cmd
}

func accountCreateCmd(c *cli) *cobra.Command {
	var owner, pin, initial string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a new account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount := decimal.Zero
			if initial != "" {
				var err error
				if amount, err = domain.ParseAmount(initial); err != nil {
					return err
				}
			}

			view, err := c.uc.CreateAccount(cmd.Context(), usecase.CreateAccountInput{
				Owner:         owner,
				PIN:           pin,
				InitialAmount: amount,
			})
			return mutationResult(cmd.OutOrStdout(), c.asJSON, view, func(w io.Writer) {
				printAccount(w, view)
			}, err)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Account owner name")
	cmd.Flags().StringVar(&pin, "pin", "", "PIN of 4 to 6 digits")
	cmd.Flags().StringVar(&initial, "initial", "", "Initial deposit")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("pin")
	return cmd
}

func accountListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts := c.uc.ListAccounts(cmd.Context())
			if c.asJSON {
				printJSON(cmd.OutOrStdout(), accounts)
				return nil
			}
			printAccounts(cmd.OutOrStdout(), accounts)
			return nil
		},
	}
}

func accountShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show ACCOUNT",
		Short: "Show an account without its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseAccountID(args[0])
			if err != nil {
				return err
			}

			view, err := c.uc.GetAccount(cmd.Context(), id)
			if err != nil {
				return err
			}
			view.History = nil

			if c.asJSON {
				printJSON(cmd.OutOrStdout(), view)
				return nil
			}
			printAccount(cmd.OutOrStdout(), view)
			return nil
		},
	}
}

func accountLoginCmd(c *cli) *cobra.Command {
	var pin string

	cmd := &cobra.Command{
		Use:   "login ACCOUNT",
		Short: "Check a PIN and print the account with its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseAccountID(args[0])
			if err != nil {
				return err
			}

			view, err := c.uc.Login(cmd.Context(), id, pin)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if c.asJSON {
				printJSON(out, view)
				return nil
			}
			printAccount(out, view)
			io.WriteString(out, "\n")
			printHistory(out, view.History)
			return nil
		},
	}

	cmd.Flags().StringVar(&pin, "pin", "", "Account PIN")
	_ = cmd.MarkFlagRequired("pin")
	return cmd
}

func accountMoveCmd(c *cli, use, short string) *cobra.Command {
	var pin, amount string

	cmd := &cobra.Command{
		Use:   use + " ACCOUNT",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseAccountID(args[0])
			if err != nil {
				return err
			}
			value, err := domain.ParseAmount(amount)
			if err != nil {
				return err
			}

			input := usecase.AmountInput{AccountID: id, PIN: pin, Amount: value}
			apply := c.uc.Deposit
			if use == "withdraw" {
				apply = c.uc.Withdraw
			}

			tx, err := apply(cmd.Context(), input)
			return mutationResult(cmd.OutOrStdout(), c.asJSON, tx, func(w io.Writer) {
				printHistory(w, []domain.Transaction{tx})
			}, err)
		},
	}

	cmd.Flags().StringVar(&pin, "pin", "", "Account PIN")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount")
	_ = cmd.MarkFlagRequired("pin")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func accountHistoryCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "history ACCOUNT",
		Short: "Print the transaction history of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseAccountID(args[0])
			if err != nil {
				return err
			}

			history, err := c.uc.History(cmd.Context(), id)
			if err != nil {
				return err
			}

			if c.asJSON {
				printJSON(cmd.OutOrStdout(), history)
				return nil
			}
			printHistory(cmd.OutOrStdout(), history)
			return nil
		},
	}
}
