package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"tempo/internal/core"
	"tempo/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report on recorded sessions",
}

var statsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Totals, averages, and extrema of stopped sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := filterFromFlags(cmd.Context(), cmd)
		if err != nil {
			return err
		}

		sum, err := a.stats.Summary(cmd.Context(), f)
		if err != nil {
			return err
		}

		rows := pterm.TableData{
			{"Sessions", fmt.Sprintf("%d", sum.Count)},
			{"Total time", formatMs(sum.TotalMs)},
			{"Average time", formatMs(int64(sum.AvgMs))},
			{"Shortest", formatMs(sum.MinMs)},
			{"Longest", formatMs(sum.MaxMs)},
			{"Total amount", fmt.Sprintf("%.2f", sum.TotalAmount)},
			{"Average amount", fmt.Sprintf("%.2f", sum.AvgAmount)},
		}

		return pterm.DefaultTable.WithData(rows).Render()
	},
}

var statsSeriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Amount per calendar bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := filterFromFlags(cmd.Context(), cmd)
		if err != nil {
			return err
		}

		granularity, _ := cmd.Flags().GetString("by")

		rows, err := a.stats.TimeSeries(cmd.Context(), f, stats.Granularity(granularity))
		if err != nil {
			return err
		}

		if len(rows) == 0 {
			pterm.Info.Println("no stopped sessions match")
			return nil
		}

		var bars pterm.Bars
		for _, row := range rows {
			bars = append(bars, pterm.Bar{
				Label: bucketLabel(row.Bucket, stats.Granularity(granularity)),
				Value: int(row.TotalAmount),
			})
		}

		chart, err := pterm.DefaultBarChart.
			WithHorizontal().
			WithShowValue().
			WithBars(bars).
			Srender()
		if err != nil {
			return err
		}

		fmt.Print(chart)

		return nil
	},
}

var statsHistogramCmd = &cobra.Command{
	Use:   "histogram",
	Short: "Distribution of session time or amount",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := filterFromFlags(cmd.Context(), cmd)
		if err != nil {
			return err
		}

		field, _ := cmd.Flags().GetString("field")
		bins, _ := cmd.Flags().GetInt("bins")

		hist, err := a.stats.Distribution(cmd.Context(), f, stats.Field(field), bins)
		if err != nil {
			return err
		}

		var bars pterm.Bars
		for _, bin := range hist.Bins {
			bars = append(bars, pterm.Bar{
				Label: fmt.Sprintf("%.0f-%.0f", bin.From, bin.To),
				Value: bin.Count,
			})
		}

		chart, err := pterm.DefaultBarChart.
			WithHorizontal().
			WithShowValue().
			WithBars(bars).
			Srender()
		if err != nil {
			return err
		}

		fmt.Print(chart)

		return nil
	},
}

var statsBreakdownCmd = &cobra.Command{
	Use:   "breakdown",
	Short: "Amount per category or account",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := filterFromFlags(cmd.Context(), cmd)
		if err != nil {
			return err
		}

		groupBy, _ := cmd.Flags().GetString("by")

		rows, err := a.stats.Breakdown(cmd.Context(), f, stats.GroupBy(groupBy))
		if err != nil {
			return err
		}

		if len(rows) == 0 {
			pterm.Info.Println("no stopped sessions match")
			return nil
		}

		var bars pterm.Bars
		for _, row := range rows {
			bars = append(bars, pterm.Bar{Label: row.Key, Value: int(row.Value)})
		}

		chart, err := pterm.DefaultBarChart.
			WithHorizontal().
			WithShowValue().
			WithBars(bars).
			Srender()
		if err != nil {
			return err
		}

		fmt.Print(chart)

		return nil
	},
}

// filterFromFlags assembles the shared stats filter. The --user flag
// scopes every report; --all lifts that scope.
func filterFromFlags(ctx context.Context, cmd *cobra.Command) (stats.Filter, error) {
	var f stats.Filter

	if all, _ := cmd.Flags().GetBool("all"); !all {
		u, err := a.currentUser(ctx, cmd)
		if err != nil {
			return stats.Filter{}, err
		}

		f.UserID = u.ID
	}

	f.CategoryID, _ = cmd.Flags().GetInt64("category")
	f.AccountID, _ = cmd.Flags().GetInt64("account")

	if status, _ := cmd.Flags().GetString("status"); status != "" {
		f.Status = core.Status(status)
	}

	var err error

	if f.From, err = parseTimeFlag(cmd, "from"); err != nil {
		return stats.Filter{}, err
	}

	if f.To, err = parseTimeFlag(cmd, "to"); err != nil {
		return stats.Filter{}, err
	}

	return f, nil
}

func parseTimeFlag(cmd *cobra.Command, name string) (int64, error) {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return 0, nil
	}

	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s date %q (want YYYY-MM-DD)", name, v)
	}

	return t.UnixMilli(), nil
}

func bucketLabel(bucket int64, g stats.Granularity) string {
	t := time.UnixMilli(bucket).Local()

	switch g {
	case stats.Year:
		return t.Format("2006")
	case stats.Quarter:
		return fmt.Sprintf("%d Q%d", t.Year(), (int(t.Month())-1)/3+1)
	case stats.Month:
		return t.Format("Jan 2006")
	default:
		return t.Format("Jan 02, 2006")
	}
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("category", 0, "restrict to a category id")
	cmd.Flags().Int64("account", 0, "restrict to an account id")
	cmd.Flags().String("status", "", "restrict to a session status")
	cmd.Flags().String("from", "", "earliest start date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "latest end date (YYYY-MM-DD)")
	cmd.Flags().Bool("all", false, "report across every user")
}

func init() {
	for _, cmd := range []*cobra.Command{
		statsSummaryCmd, statsSeriesCmd, statsHistogramCmd, statsBreakdownCmd,
	} {
		addFilterFlags(cmd)
	}

	statsSeriesCmd.Flags().String("by", "week", "bucket granularity (day, week, month, quarter, year)")
	statsHistogramCmd.Flags().String("field", "total_ms", "field to histogram (total_ms or total_amount)")
	statsHistogramCmd.Flags().Int("bins", 0, "number of bins (default 10)")
	statsBreakdownCmd.Flags().String("by", "category", "grouping (category or account)")

	statsCmd.AddCommand(statsSummaryCmd)
	statsCmd.AddCommand(statsSeriesCmd)
	statsCmd.AddCommand(statsHistogramCmd)
	statsCmd.AddCommand(statsBreakdownCmd)
}
