package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tempo/internal/transfer"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import session records from JSON on stdin",
	Long: `Import session records from a JSON array on stdin. Records that
collide with an existing session (same category, account, start time,
and rate) are handled by --policy: skip leaves the existing record
alone, overwrite replaces its fields, merge keeps the larger totals.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		u, err := a.currentUser(ctx, cmd)
		if err != nil {
			return err
		}

		var records []transfer.Record
		if err := json.NewDecoder(os.Stdin).Decode(&records); err != nil {
			return fmt.Errorf("decode records: %w", err)
		}

		policy, _ := cmd.Flags().GetString("policy")

		report, err := a.transfer.Import(ctx, u.ID, records, transfer.Policy(policy))
		if err != nil {
			return err
		}

		fmt.Printf("added %d, skipped %d, overwritten %d, merged %d\n",
			report.Added, report.Skipped, report.Overwritten, report.Merged)

		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export sessions as JSON on stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := filterFromFlags(cmd.Context(), cmd)
		if err != nil {
			return err
		}

		fields, _ := cmd.Flags().GetStringSlice("fields")

		rows, err := a.transfer.Export(cmd.Context(), f, fields)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(rows)
	},
}

func init() {
	importCmd.Flags().String("policy", string(transfer.PolicySkip),
		"duplicate policy (skip, overwrite, merge)")

	addFilterFlags(exportCmd)
	exportCmd.Flags().StringSlice("fields", nil,
		"fields to export (default id, category_id, account_id, hourly_rate, start_time, end_time, total_ms, total_amount, status)")
}
