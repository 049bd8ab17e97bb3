package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/campaign-dashboard/internal/client/backend"
	"github.com/magabrotheeeer/campaign-dashboard/internal/client/campaigns"
)

func newCampaignsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaigns",
		Short: "Manage campaigns",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if root := cmd.Root(); root.PersistentPreRunE != nil {
				if err := root.PersistentPreRunE(cmd, args); err != nil {
					return err
				}
			}
			if err := a.mountSession(cmd.Context()); err != nil {
				return err
			}
			_, err := a.requireSession()
			return err
		},
	}

	cmd.AddCommand(
		newCampaignsListCmd(a),
		newCampaignsGetCmd(a),
		newCampaignsCreateCmd(a),
		newCampaignsUpdateCmd(a),
		newCampaignsDeleteCmd(a),
		newCampaignsDuplicateCmd(a),
		newCampaignsStatusCmd(a),
	)

	return cmd
}

func apiError(err error) error {
	var inErr *campaigns.InputError
	if errors.As(err, &inErr) {
		return inErr
	}
	return errors.New(backend.MessageOf(err))
}

func newCampaignsListCmd(a *app) *cobra.Command {
	var f campaigns.Filter
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if status != "" {
				st, err := campaigns.ParseStatus(status)
				if err != nil {
					return err
				}
				f.Status = st
			}

			page, err := a.campaigns.List(cmd.Context(), f)
			if err != nil {
				return apiError(err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATUS\tPLATFORMS")
			for _, c := range page.Campaigns {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					c.ID, c.Name, c.Type, c.Status, strings.Join(c.Platforms, ","))
			}
			_, _ = fmt.Fprintf(w, "\ntotal: %d\n", page.Total)
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&f.Search, "search", "", "search by name")
	cmd.Flags().IntVar(&f.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&f.Limit, "limit", 20, "page size")

	return cmd
}

func newCampaignsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.campaigns.Get(cmd.Context(), args[0])
			if err != nil {
				return apiError(err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(c)
		},
	}
}

type inputFlags struct {
	file                 string
	name                 string
	description          string
	kind                 string
	budget               string
	creditsPerInfluencer int
	platforms            []string
	start                string
	end                  string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "file", "", "read campaign input from a JSON file")
	cmd.Flags().StringVar(&f.name, "name", "", "campaign name")
	cmd.Flags().StringVar(&f.description, "description", "", "campaign description")
	cmd.Flags().StringVar(&f.kind, "type", "", "campaign type: paid or credit")
	cmd.Flags().StringVar(&f.budget, "budget", "", "budget in USD for paid campaigns")
	cmd.Flags().IntVar(&f.creditsPerInfluencer, "credits-per-influencer", 0, "credits per influencer for credit campaigns")
	cmd.Flags().StringSliceVar(&f.platforms, "platform", nil, "platform (repeatable): instagram, tiktok, youtube, twitter")
	cmd.Flags().StringVar(&f.start, "start", "", "start date YYYY-MM-DD")
	cmd.Flags().StringVar(&f.end, "end", "", "end date YYYY-MM-DD")
}

func (f *inputFlags) input() (campaigns.Input, error) {
	var in campaigns.Input

	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return in, err
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return in, fmt.Errorf("parse %s: %w", f.file, err)
		}
		return in, nil
	}

	in.Name = f.name
	in.Description = f.description
	in.Type = campaigns.Type(f.kind)
	in.CreditsPerInfluencer = f.creditsPerInfluencer
	in.Platforms = f.platforms

	if f.budget != "" {
		b, err := decimal.NewFromString(f.budget)
		if err != nil {
			return in, fmt.Errorf("budget: %w", err)
		}
		in.Budget = b
	}
	for _, d := range []struct {
		raw string
		dst **time.Time
	}{{f.start, &in.StartDate}, {f.end, &in.EndDate}} {
		if d.raw == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, d.raw)
		if err != nil {
			return in, fmt.Errorf("date %q: %w", d.raw, err)
		}
		*d.dst = &t
	}
	return in, nil
}

func newCampaignsCreateCmd(a *app) *cobra.Command {
	var f inputFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a campaign",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := f.input()
			if err != nil {
				return err
			}
			c, err := a.campaigns.Create(cmd.Context(), in)
			if err != nil {
				return apiError(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created campaign %s\n", c.ID)
			return nil
		},
	}
	f.register(cmd)

	return cmd
}

func newCampaignsUpdateCmd(a *app) *cobra.Command {
	var f inputFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := f.input()
			if err != nil {
				return err
			}
			c, err := a.campaigns.Update(cmd.Context(), args[0], in)
			if err != nil {
				return apiError(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Updated campaign %s\n", c.ID)
			return nil
		},
	}
	f.register(cmd)

	return cmd
}

func newCampaignsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.campaigns.Delete(cmd.Context(), args[0]); err != nil {
				return apiError(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted campaign %s\n", args[0])
			return nil
		},
	}
}

func newCampaignsDuplicateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <id>",
		Short: "Duplicate a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.campaigns.Duplicate(cmd.Context(), args[0])
			if err != nil {
				return apiError(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created campaign %s from %s\n", c.ID, args[0])
			return nil
		},
	}
}

func newCampaignsStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Change campaign status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := campaigns.ParseStatus(args[1])
			if err != nil {
				return err
			}
			if err := a.campaigns.UpdateStatus(cmd.Context(), args[0], st); err != nil {
				return apiError(err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Campaign %s is now %s\n", args[0], st)
			return nil
		},
	}
}
