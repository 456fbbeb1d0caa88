package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/example/ec-storefront/internal/auth"
	"github.com/example/ec-storefront/internal/bootstrap"
	"github.com/example/ec-storefront/internal/config"
	"github.com/example/ec-storefront/internal/domain/discount"
	"github.com/example/ec-storefront/internal/domain/orderstatus"
	"github.com/example/ec-storefront/internal/infrastructure/store"
	"github.com/example/ec-storefront/internal/logging"
	"github.com/example/ec-storefront/internal/migrations"
	"github.com/example/ec-storefront/internal/projection"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Database migration management",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) > 0 {
				action = args[0]
			}
			run, ok := map[string]func(*sql.DB) error{
				"up":     migrations.Up,
				"down":   migrations.Down,
				"status": migrations.Status,
			}[action]
			if !ok {
				return fmt.Errorf("unknown migrate action %q", action)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := store.ConnectPostgres(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			return run(db)
		},
	}
}

func newReplayCmd() *cobra.Command {
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild read models from the event store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.EventStore == config.EventStoreMemory {
				return errors.New("replay needs a persistent event store")
			}
			logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, "text")

			stores, err := bootstrap.OpenStores(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer stores.Close()

			var n int
			if since > 0 {
				tail, ok := stores.Events.(projection.TimeRangeReader)
				if !ok {
					return fmt.Errorf("--since is not supported by the %s event store", cfg.EventStore)
				}
				n, err = stores.Projector.ReplaySince(cmd.Context(), tail, time.Now().Add(-since))
			} else {
				n, err = stores.Projector.Replay(cmd.Context(), stores.Events)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d events\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&since, "since", 0, "Only replay events newer than this (postgres only)")
	return cmd
}

func newStatusCmd() *cobra.Command {
	status := &cobra.Command{
		Use:   "status",
		Short: "Order status tools",
	}
	status.AddCommand(&cobra.Command{
		Use:   "normalize <raw>...",
		Short: "Show how raw statuses map to canonical statuses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RAW\tSTATUS\tLABEL\tFLOW\tSTEP")
			for _, raw := range args {
				s := orderstatus.Normalize(raw)
				if !s.IsCanonical() {
					fmt.Fprintf(w, "%s\t%s\t-\t-\t-\n", raw, s)
					continue
				}
				flow, step, _ := orderstatus.FlowOf(s)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", raw, s, s.Label(), flow, step)
			}
			return w.Flush()
		},
	})
	return status
}

func newQuoteCmd() *cobra.Command {
	var subtotal, coupon, balance, wallet string
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Compute a payable total from subtotal, coupon discount and CrashCash",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := discount.Input{UseWallet: wallet != ""}
			for _, f := range []struct {
				name  string
				value string
				dst   *decimal.Decimal
			}{
				{"subtotal", subtotal, &in.Subtotal},
				{"coupon", coupon, &in.CouponDiscount},
				{"balance", balance, &in.WalletBalance},
				{"wallet", wallet, &in.WalletRequested},
			} {
				if f.value == "" {
					continue
				}
				d, err := decimal.NewFromString(f.value)
				if err != nil {
					return fmt.Errorf("--%s: %w", f.name, err)
				}
				*f.dst = d
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "max CrashCash: %s\n", discount.MaxWalletCredit(in.Subtotal, in.CouponDiscount, in.WalletBalance).StringFixed(2))
			result := discount.ComputeTotal(in)
			if !result.OK() {
				return result.Errors[0]
			}
			fmt.Fprintf(out, "CrashCash applied: %s\n", result.WalletApplied.StringFixed(2))
			fmt.Fprintf(out, "total: %s\n", result.FinalTotal.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().StringVar(&subtotal, "subtotal", "0", "Cart subtotal")
	cmd.Flags().StringVar(&coupon, "coupon", "0", "Coupon discount amount")
	cmd.Flags().StringVar(&balance, "balance", "0", "CrashCash balance")
	cmd.Flags().StringVar(&wallet, "wallet", "", "CrashCash to apply (omit to skip)")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var userID, email, role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if len(cfg.JWTSecret) < 32 {
				return errors.New("JWT_SECRET must be at least 32 characters long")
			}
			if role != auth.RoleAdmin && role != auth.RoleCustomer {
				return fmt.Errorf("role must be %s or %s", auth.RoleAdmin, auth.RoleCustomer)
			}

			token, expiresAt, err := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, 0).GenerateAccessToken(userID, email, role, ttl)
			if err != nil {
				return err
			}
			slog.Debug("token minted", "user_id", userID, "expires_at", expiresAt)
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "operator", "Subject user id")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&role, "role", auth.RoleAdmin, "Role claim (admin or customer)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	return cmd
}
