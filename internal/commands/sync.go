package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replicate the dataset to the remote store",
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the whole local snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := a.syncer.Push(cmd.Context()); err != nil {
			return err
		}

		fmt.Println("push complete")

		return nil
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch the remote snapshot and merge it in",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := a.syncer.Pull(cmd.Context()); err != nil {
			return err
		}

		fmt.Println("pull complete")

		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state and the recent run log",
	RunE: func(cmd *cobra.Command, args []string) error {
		st := a.syncer.Status()

		fmt.Printf("enabled: %v\n", st.Enabled)
		fmt.Printf("interval: %s\n", st.Interval)
		fmt.Printf("queued changes: %d\n", st.Queued)

		if st.LastPushAt != 0 {
			fmt.Printf("last push: %s\n", time.UnixMilli(st.LastPushAt).Local())
		}

		if st.LastPullAt != 0 {
			fmt.Printf("last pull: %s\n", time.UnixMilli(st.LastPullAt).Local())
		}

		if len(st.Log) == 0 {
			return nil
		}

		rows := pterm.TableData{{"Time", "Run", "Message"}}
		for _, line := range st.Log {
			rows = append(rows, []string{
				time.UnixMilli(line.TS).Local().Format(time.TimeOnly),
				line.RunID[:8],
				line.Message,
			})
		}

		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

var syncConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Enable or disable the periodic push and set its interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, _ := cmd.Flags().GetBool("enabled")
		interval, _ := cmd.Flags().GetDuration("interval")

		if err := a.syncer.Configure(cmd.Context(), enabled, interval); err != nil {
			return err
		}

		st := a.syncer.Status()
		fmt.Printf("sync %s, interval %s\n", onOff(st.Enabled), st.Interval)

		return nil
	},
}

func onOff(enabled bool) string {
	if enabled {
		return "enabled"
	}

	return "disabled"
}

func init() {
	syncConfigureCmd.Flags().Bool("enabled", false, "run the periodic push")
	syncConfigureCmd.Flags().Duration("interval", 5*time.Minute,
		"push interval (minimum 15s)")

	syncCmd.AddCommand(syncPushCmd)
	syncCmd.AddCommand(syncPullCmd)
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncConfigureCmd)
}
