package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a billable session",
	Long: `Start a billable session for a category and account. If a running
session already exists for the same category and account its id is
returned instead of starting a second timer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		u, err := a.currentUser(ctx, cmd)
		if err != nil {
			return err
		}

		categoryID, _ := cmd.Flags().GetInt64("category")
		accountID, _ := cmd.Flags().GetInt64("account")
		rate, _ := cmd.Flags().GetFloat64("rate")

		id, err := a.engine.Start(ctx, u.ID, categoryID, accountID, rate)
		if err != nil {
			return err
		}

		fmt.Printf("session %d running\n", id)

		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause [session-id]",
	Short: "Pause a running session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		paused, err := a.engine.Pause(cmd.Context(), id)
		if err != nil {
			return err
		}

		if !paused {
			fmt.Printf("session %d has no open segment\n", id)
			return nil
		}

		fmt.Printf("session %d paused\n", id)

		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume [session-id]",
	Short: "Resume a paused session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		resumed, err := a.engine.Resume(cmd.Context(), id)
		if err != nil {
			return err
		}

		if !resumed {
			fmt.Printf("no session %d\n", id)
			return nil
		}

		fmt.Printf("session %d running\n", id)

		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop [session-id]",
	Short: "Stop a session and freeze its totals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		res, err := a.engine.Stop(cmd.Context(), id)
		if err != nil {
			return err
		}

		fmt.Printf("session %d stopped: %s billed %.2f\n",
			id, formatMs(res.TotalMs), res.TotalAmount)

		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Show a session's elapsed time and projected amount",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		res, err := a.engine.Status(cmd.Context(), id)
		if err != nil {
			return err
		}

		fmt.Printf("session %d: %s\n", res.Session.ID, res.Session.Status)
		fmt.Printf("elapsed: %s\n", formatMs(res.TotalMs))
		fmt.Printf("estimated amount: %.2f\n", res.EstimatedAmount)

		return nil
	},
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid session id %q", arg)
	}

	return id, nil
}

func init() {
	startCmd.Flags().Int64("category", 0, "category id")
	startCmd.Flags().Int64("account", 0, "account id")
	startCmd.Flags().Float64("rate", 0, "hourly rate")
	_ = startCmd.MarkFlagRequired("category")
	_ = startCmd.MarkFlagRequired("account")
	_ = startCmd.MarkFlagRequired("rate")
}
