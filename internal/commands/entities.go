package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add [username]",
	Short: "Register a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := a.engine.CreateUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("user %d (%s) created\n", u.ID, u.Username)

		return nil
	},
}

var userShowCmd = &cobra.Command{
	Use:   "show [username]",
	Short: "Look up a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := a.engine.UserByName(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("id: %d\nusername: %s\n", u.ID, u.Username)

		return nil
	},
}

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Manage billing categories",
}

var categoryAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Create a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		u, err := a.currentUser(ctx, cmd)
		if err != nil {
			return err
		}

		id, err := a.engine.CreateCategory(ctx, u.ID, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("category %d created\n", id)

		return nil
	},
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories with their session stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		u, err := a.currentUser(ctx, cmd)
		if err != nil {
			return err
		}

		infos, err := a.engine.ListCategories(ctx, u.ID)
		if err != nil {
			return err
		}

		if len(infos) == 0 {
			pterm.Info.Println("no categories yet")
			return nil
		}

		rows := pterm.TableData{{"ID", "Name", "Sessions", "Avg time", "Avg amount"}}
		for _, info := range infos {
			rows = append(rows, []string{
				strconv.FormatInt(info.ID, 10),
				info.Name,
				strconv.Itoa(info.Stats.Count),
				formatMs(int64(info.Stats.AverageMs)),
				fmt.Sprintf("%.2f", info.Stats.AverageAmount),
			})
		}

		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage accounts",
}

var accountAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Create an account under a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		u, err := a.currentUser(ctx, cmd)
		if err != nil {
			return err
		}

		categoryID, _ := cmd.Flags().GetInt64("category")

		id, err := a.engine.CreateAccount(ctx, u.ID, categoryID, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("account %d created\n", id)

		return nil
	},
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a category's accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		u, err := a.currentUser(ctx, cmd)
		if err != nil {
			return err
		}

		categoryID, _ := cmd.Flags().GetInt64("category")

		accounts, err := a.engine.ListAccounts(ctx, u.ID, categoryID)
		if err != nil {
			return err
		}

		for _, acc := range accounts {
			fmt.Printf("%d\t%s\n", acc.ID, acc.Name)
		}

		return nil
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and maintain recorded sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a category's sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		categoryID, _ := cmd.Flags().GetInt64("category")

		sessions, err := a.engine.SessionsByCategory(cmd.Context(), categoryID)
		if err != nil {
			return err
		}

		if len(sessions) == 0 {
			pterm.Info.Println("no sessions yet")
			return nil
		}

		rows := pterm.TableData{{"ID", "Status", "Elapsed", "Amount"}}
		for _, s := range sessions {
			rows = append(rows, []string{
				strconv.FormatInt(s.ID, 10),
				string(s.Status),
				formatMs(s.TotalMs),
				fmt.Sprintf("%.2f", s.TotalAmount),
			})
		}

		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

var sessionsRecommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Suggest a budget from a category's history",
	RunE: func(cmd *cobra.Command, args []string) error {
		categoryID, _ := cmd.Flags().GetInt64("category")

		rec, err := a.engine.Recommend(cmd.Context(), categoryID)
		if err != nil {
			return err
		}

		fmt.Printf("average time: %s\n", formatMs(int64(rec.AverageMs)))
		fmt.Printf("average amount: %.2f\n", rec.AverageAmount)

		return nil
	},
}

var sessionsReassignCmd = &cobra.Command{
	Use:   "reassign [ids...]",
	Short: "Move sessions to another category or account",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		u, err := a.currentUser(ctx, cmd)
		if err != nil {
			return err
		}

		ids, err := parseIDs(args)
		if err != nil {
			return err
		}

		categoryID, _ := cmd.Flags().GetInt64("category")
		accountID, _ := cmd.Flags().GetInt64("account")
		admin, _ := cmd.Flags().GetBool("admin")

		updated, err := a.engine.BatchReassign(ctx, u.ID, ids, categoryID, accountID, admin)
		if err != nil {
			return err
		}

		fmt.Printf("%d of %d sessions updated\n", updated, len(ids))

		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete [ids...]",
	Short: "Delete sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		u, err := a.currentUser(ctx, cmd)
		if err != nil {
			return err
		}

		ids, err := parseIDs(args)
		if err != nil {
			return err
		}

		admin, _ := cmd.Flags().GetBool("admin")

		deleted, err := a.engine.BatchDelete(ctx, u.ID, ids, admin)
		if err != nil {
			return err
		}

		fmt.Printf("%d of %d sessions deleted\n", deleted, len(ids))

		return nil
	},
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))

	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			if part == "" {
				continue
			}

			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid session id %q", part)
			}

			ids = append(ids, id)
		}
	}

	return ids, nil
}

func init() {
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userShowCmd)

	categoryCmd.AddCommand(categoryAddCmd)
	categoryCmd.AddCommand(categoryListCmd)

	accountAddCmd.Flags().Int64("category", 0, "parent category id")
	_ = accountAddCmd.MarkFlagRequired("category")
	accountListCmd.Flags().Int64("category", 0, "category id")
	_ = accountListCmd.MarkFlagRequired("category")
	accountCmd.AddCommand(accountAddCmd)
	accountCmd.AddCommand(accountListCmd)

	sessionsListCmd.Flags().Int64("category", 0, "category id")
	_ = sessionsListCmd.MarkFlagRequired("category")
	sessionsRecommendCmd.Flags().Int64("category", 0, "category id")
	_ = sessionsRecommendCmd.MarkFlagRequired("category")

	sessionsReassignCmd.Flags().Int64("category", 0, "target category id")
	sessionsReassignCmd.Flags().Int64("account", 0, "target account id")
	sessionsReassignCmd.Flags().Bool("admin", false, "skip ownership checks")
	sessionsDeleteCmd.Flags().Bool("admin", false, "skip ownership checks")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsRecommendCmd)
	sessionsCmd.AddCommand(sessionsReassignCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}
