package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/ispbilling/internal/clock"
	"github.com/railzwaylabs/ispbilling/internal/mikrotik"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	"github.com/railzwaylabs/ispbilling/internal/scheduler"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

func newBillingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "billing",
		Short: "Run billing entry points once",
	}
	cmd.AddCommand(
		newJobCmd("run", "Generate bills for subscriptions whose billing day is today", scheduler.JobBillingCycle),
		newJobCmd("suspensions", "Suspend subscriptions with bills unpaid past their billing day", scheduler.JobSuspensionCheck),
		newJobCmd("sweep", "Mark bills past their due date as overdue", scheduler.JobOverdueSweep),
	)
	return cmd
}

// newJobCmd runs one scheduler job under the same lease the cron loop takes,
// so a manual run never overlaps a scheduled one.
func newJobCmd(use, short string, job scheduler.JobName) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				sched *scheduler.Scheduler
				clk   clock.Clock
			)
			return runOneShot(cmd.Context(), func(ctx context.Context) error {
				asOf, err := parseDate(date, clk.Now(ctx))
				if err != nil {
					return err
				}
				run, err := sched.RunOnce(ctx, job, asOf)
				if errors.Is(err, scheduler.ErrLeaseHeld) {
					return fmt.Errorf("%s is already running elsewhere", job)
				}
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), run.Result)
			}, &sched, &clk)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "as-of date as YYYY-MM-DD (defaults to today)")
	return cmd
}

func newRouterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "router",
		Short: "Router maintenance commands",
	}

	var rawID string
	test := &cobra.Command{
		Use:   "test",
		Short: "Check connectivity to a router's API",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := snowflake.ParseString(strings.TrimSpace(rawID))
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid router id %q", rawID)
			}
			var (
				routers routerdomain.Service
				gateway mikrotik.Gateway
			)
			return runOneShot(cmd.Context(), func(ctx context.Context) error {
				router, err := routers.Get(ctx, id)
				if err != nil {
					return err
				}
				res := gateway.TestConnection(ctx, router)
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				if !res.Success {
					return fmt.Errorf("router %s unreachable: %s", router.Name, res.Message)
				}
				return nil
			}, &routers, &gateway)
		},
	}
	test.Flags().StringVar(&rawID, "id", "", "router id")
	_ = test.MarkFlagRequired("id")

	cmd.AddCommand(test)
	return cmd
}

// parseDate reads a YYYY-MM-DD flag, falling back to the start of today.
func parseDate(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return clock.StartOfDay(now), nil
	}
	day, err := time.ParseInLocation(dateLayout, raw, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", raw)
	}
	return day, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
