package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/macro-cli/internal/config"
	"github.com/sells-group/macro-cli/internal/model"
	"github.com/sells-group/macro-cli/internal/store"
)

var mealsCmd = &cobra.Command{
	Use:   "meals",
	Short: "List logged meals with totals",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(config.ModeStore); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt("limit")

		meals, err := st.ListMeals(ctx, mealFilter(since, limit, time.Now()))
		if err != nil {
			return eris.Wrap(err, "meals list")
		}

		if len(meals) == 0 {
			fmt.Fprintln(os.Stderr, "No meals found.")
			return nil
		}

		formatMealsList(os.Stdout, meals)
		return nil
	},
}

var mealsDeleteCmd = &cobra.Command{
	Use:   "delete <meal-id>",
	Short: "Delete a logged meal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(config.ModeStore); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteMeal(ctx, args[0]); err != nil {
			return eris.Wrap(err, "meals delete")
		}
		fmt.Fprintf(os.Stderr, "Deleted meal %s\n", args[0])
		return nil
	},
}

func init() {
	mealsCmd.Flags().Duration("since", 24*time.Hour, "time window to list (0 for all)")
	mealsCmd.Flags().Int("limit", 50, "max number of meals to display")

	mealsCmd.AddCommand(mealsDeleteCmd)
	rootCmd.AddCommand(mealsCmd)
}

func mealFilter(since time.Duration, limit int, now time.Time) store.MealFilter {
	f := store.MealFilter{Limit: limit}
	if since > 0 {
		f.Since = now.Add(-since)
	}
	return f
}

// formatMealsList writes a table of meals followed by their summed macros.
func formatMealsList(out io.Writer, meals []model.Meal) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tEATEN\tQUERY\tKCAL\tPROTEIN\tCARBS\tFAT\tSOURCE\tCONF")
	_, _ = fmt.Fprintln(w, "--\t-----\t-----\t----\t-------\t-----\t---\t------\t----")

	for _, m := range meals {
		query := m.Query
		if len(query) > 30 {
			query = query[:27] + "..."
		}
		if m.Servings != 1 {
			query = fmt.Sprintf("%s (x%g)", query, m.Servings)
		}

		t := m.Totals()
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.1f\t%.1f\t%.1f\t%.1f\t%s\t%.0f\n",
			truncateID(m.ID),
			m.EatenAt.Local().Format("2006-01-02 15:04"),
			query,
			t.Calories, t.ProteinG, t.CarbsG, t.FatG,
			m.Result.Source,
			m.Result.Confidence,
		)
	}

	total := model.SumMeals(meals)
	_, _ = fmt.Fprintf(w, "\t\tTOTAL (%d meals)\t%.1f\t%.1f\t%.1f\t%.1f\t\t\n",
		len(meals), total.Calories, total.ProteinG, total.CarbsG, total.FatG)
	_ = w.Flush()
}

// truncateID shortens a UUID for table display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
