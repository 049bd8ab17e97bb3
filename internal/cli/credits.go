package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/campaign-dashboard/internal/billing"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/checkout"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/credits"
)

func newCreditsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Credit balance, history and purchases",
	}

	cmd.AddCommand(
		newCreditsBalanceCmd(a),
		newCreditsTransactionsCmd(a),
		newCreditsPackagesCmd(),
		newCreditsBuyCmd(a),
	)

	return cmd
}

func newCreditsBalanceCmd(a *app) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the credit balance",
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.mountSession(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			token := a.store.Token()

			if !watch {
				b, err := a.credits.Balance(cmd.Context(), token)
				if err != nil {
					return errors.New(credits.ErrorMessage(err))
				}
				_, _ = fmt.Fprintf(out, "Credits: %d (updated %s)\n", b.Credits, b.LastUpdated.Format(time.TimeOnly))
				return nil
			}

			a.credits.Watch(cmd.Context(), token, func(b credits.Balance, err error) {
				if err != nil {
					_, _ = fmt.Fprintf(out, "error: %s\n", credits.ErrorMessage(err))
					return
				}
				_, _ = fmt.Fprintf(out, "Credits: %d (updated %s)\n", b.Credits, b.LastUpdated.Format(time.TimeOnly))
			})
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep refreshing every minute until interrupted")

	return cmd
}

func newCreditsTransactionsCmd(a *app) *cobra.Command {
	var page, limit int

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "Show credit transaction history",
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.mountSession(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.credits.Transactions(cmd.Context(), a.store.Token(), page, limit)
			if err != nil {
				return errors.New(credits.ErrorMessage(err))
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tTYPE\tAMOUNT\tDATE\tDESCRIPTION")
			for _, tx := range res.Transactions {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					tx.ID, tx.Type, tx.Amount, tx.CreatedAt.Format(time.DateOnly), tx.Description)
			}
			_, _ = fmt.Fprintf(w, "\ntotal: %d\n", res.Total)
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")

	return cmd
}

func newCreditsPackagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "packages",
		Short: "List credit packages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tCREDITS\tPRICE\tPER CREDIT\tDISCOUNT\t")
			for _, p := range billing.All() {
				discount := "-"
				if p.DiscountPercent > 0 {
					discount = fmt.Sprintf("%d%%", p.DiscountPercent)
				}
				mark := ""
				if p.Recommended {
					mark = "recommended"
				}
				_, _ = fmt.Fprintf(w, "%s\t%d\t$%s\t$%s\t%s\t%s\n",
					p.ID, p.Credits, p.Price.StringFixed(2), p.PerCreditPrice().StringFixed(2), discount, mark)
			}
			return w.Flush()
		},
	}
}

func newCreditsBuyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "buy <package-id>",
		Short: "Buy a credit package through hosted checkout",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.mountSession(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.requireSession()
			if err != nil {
				return err
			}

			pkg, err := billing.Lookup(args[0])
			if err != nil {
				return errors.New(checkout.ErrInvalidPackage.Error())
			}

			s, err := a.checkout.Purchase(cmd.Context(), checkout.Request{
				PackageID:  pkg.ID,
				Credits:    pkg.Credits,
				Price:      pkg.Price,
				UserID:     st.User.ID,
				BusinessID: st.BusinessID,
				UserEmail:  st.User.Email,
			})
			if err != nil {
				return errors.New(checkout.ErrorMessage(err))
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Checkout session %s created\n", s.SessionID)
			return nil
		},
	}
}
