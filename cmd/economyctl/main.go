// Command economyctl administers the points economy from a shell, against the
// same database and workflows the bot uses.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/PercyTuncar/bot-2026-sub001/internal/app"
	"github.com/PercyTuncar/bot-2026-sub001/internal/config"
	"github.com/PercyTuncar/bot-2026-sub001/internal/messages"
	"github.com/PercyTuncar/bot-2026-sub001/internal/models"
)

type cli struct {
	envFile string
	actor   string

	app  *app.App
	text *messages.Formatter
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		config.Exitf("error: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "economyctl",
		Short:         "Administer group points, rewards and warnings",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.app == nil {
				return nil
			}
			return c.app.Close()
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env", ".env", "dotenv file to read before the environment")
	root.PersistentFlags().StringVar(&c.actor, "actor", "cli", "actor recorded on staff actions")

	root.AddCommand(c.memberCmd(), c.pointsCmd(), c.redemptionCmd(), c.warningsCmd(), c.catalogCmd(), c.statsCmd(), c.contactsCmd())
	return root
}

func (c *cli) open() error {
	cfg, err := config.Load(c.envFile)
	if err != nil {
		return err
	}
	a, err := app.Open(cfg, cfg.Logger(os.Stderr))
	if err != nil {
		return err
	}
	c.app = a
	c.text = messages.New(cfg.Language)
	return nil
}

// member resolves an identifier that may be canonical or linked.
func (c *cli) member(ctx context.Context, groupID, id string) (models.MemberRef, error) {
	return c.app.Identity.Resolve(ctx, groupID, id, strings.TrimPrefix(id, "@"))
}

func (c *cli) pointsName(ctx context.Context, groupID string) string {
	cfg, err := c.app.Configs.Get(ctx, groupID)
	if err != nil {
		return c.app.Configs.Defaults().PointsName
	}
	return cfg.PointsName
}

func (c *cli) failure(ctx context.Context, groupID string, err error) error {
	return fmt.Errorf("%s (%w)", c.text.Failure(err, c.pointsName(ctx, groupID)), err)
}

func (c *cli) memberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "member <group> <member>",
		Short: "Show a member's balance and premium commands",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ref, err := c.member(ctx, args[0], args[1])
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			m, err := c.app.Ledger.Member(ctx, ref)
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			owned, err := c.app.Economy.Capabilities(ctx, ref)
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			names := make([]string, 0, len(owned))
			for _, o := range owned {
				names = append(names, "/"+o.Name)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, c.text.Balance(m.DisplayName, m.Points, c.pointsName(ctx, args[0])))
			fmt.Fprintf(out, "earned=%d spent=%d messages=%d warnings=%d kicks=%d active=%t\n",
				m.LifetimeEarned, m.LifetimeSpent, m.MessageCount, m.WarningCount, m.KickCount, m.IsActive)
			if len(names) > 0 {
				fmt.Fprintln(out, strings.Join(names, " "))
			}
			return nil
		},
	}
}

func (c *cli) pointsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "points", Short: "Change member balances"}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <group> <member> <delta>",
		Short: "Add (or with a negative delta, remove) points",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			delta, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid delta %q", args[2])
			}
			ref, err := c.member(ctx, args[0], args[1])
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			bal, err := c.app.Ledger.AddPoints(ctx, ref, delta)
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.text.PointsChanged(ref.MemberID, bal, c.pointsName(ctx, args[0])))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <group> <member> <value>",
		Short: "Overwrite a balance",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			value, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value %q", args[2])
			}
			ref, err := c.member(ctx, args[0], args[1])
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			bal, err := c.app.Ledger.SetPoints(ctx, ref, value)
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.text.PointsSet(ref.MemberID, bal, c.pointsName(ctx, args[0])))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset <group> <member>",
		Short: "Set a balance to zero",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ref, err := c.member(ctx, args[0], args[1])
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			bal, err := c.app.Ledger.ResetPoints(ctx, ref)
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.text.PointsSet(ref.MemberID, bal, c.pointsName(ctx, args[0])))
			return nil
		},
	})
	return cmd
}

func (c *cli) redemptionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "redemption", Aliases: []string{"redemptions"}, Short: "Review reward redemptions"}

	var limit int
	pending := &cobra.Command{
		Use:   "pending <group>",
		Short: "List redemptions waiting for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			list, err := c.app.Economy.PendingRedemptions(ctx, args[0], limit)
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			return writeRedemptions(cmd.OutOrStdout(), list)
		},
	}
	pending.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	cmd.AddCommand(pending)

	cmd.AddCommand(&cobra.Command{
		Use:   "approve <group> <id>",
		Short: "Approve a pending redemption and debit the member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			res, err := c.app.Economy.ApproveRedemption(ctx, args[0], args[1], c.actor)
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.text.RedemptionApproved(res))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reject <group> <id> [reason...]",
		Short: "Reject a pending redemption",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			res, err := c.app.Economy.RejectRedemption(ctx, args[0], args[1], c.actor, strings.Join(args[2:], " "))
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.text.RedemptionRejected(res))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "deliver <group> <id> [notes...]",
		Short: "Mark an approved redemption as delivered",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			res, err := c.app.Economy.MarkDelivered(ctx, args[0], args[1], c.actor, strings.Join(args[2:], " "))
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.text.RedemptionDelivered(res))
			return nil
		},
	})
	return cmd
}

func writeRedemptions(w io.Writer, list []models.Redemption) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMEMBER\tREWARD\tCOST\tREQUESTED")
	for _, r := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			messages.ShortID(r.ID), r.MemberID, r.RewardID, r.PointsCost, r.RequestedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func (c *cli) warningsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "warnings", Short: "Inspect and reset warnings"}

	cmd.AddCommand(&cobra.Command{
		Use:   "reset <group> <member>",
		Short: "Zero a member's warning counter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ref, err := c.member(ctx, args[0], args[1])
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			res, err := c.app.Moderation.ResetWarnings(ctx, ref, c.actor)
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.text.WarningsReset(ref.MemberID, res))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "history <group> <member>",
		Short: "Show the moderation trail",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ref, err := c.member(ctx, args[0], args[1])
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			entries, err := c.app.Moderation.History(ctx, ref)
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tKIND\tACTOR\tREASON")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.Kind, e.Actor, e.Reason)
			}
			return tw.Flush()
		},
	})
	return cmd
}

func (c *cli) catalogCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "catalog", Short: "Manage rewards and premium commands"}
	cmd.AddCommand(&cobra.Command{
		Use:   "load <file>",
		Short: "Upsert group settings, rewards and premium commands from YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.app.SeedCatalog(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "groups=%d configs=%d rewards=%d commands=%d\n",
				s.Groups, s.Configs, s.Rewards, s.Commands)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <group>",
		Short: "Print the reward catalog and premium shop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rewards, err := c.app.Economy.Rewards(ctx, args[0], false)
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			commands, err := c.app.Economy.PremiumCommands(ctx, args[0])
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			pn := c.pointsName(ctx, args[0])
			fmt.Fprintln(cmd.OutOrStdout(), c.text.Rewards(rewards, pn))
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprintln(cmd.OutOrStdout(), c.text.Shop(commands, pn))
			return nil
		},
	})
	return cmd
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <group>",
		Short: "Show premium purchase totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			stats, err := c.app.Economy.GroupStats(ctx, args[0])
			if err != nil {
				return c.failure(ctx, args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purchases=%d points=%d\n", stats.TotalPurchases, stats.TotalPurchasePoints)
			return nil
		},
	}
}

func (c *cli) contactsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "contacts", Short: "Maintain the username directory"}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete contacts older than CONTACT_TTL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := c.app.PurgeContacts(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d contacts\n", n)
			return nil
		},
	})
	return cmd
}
