package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/macro-cli/internal/config"
	"github.com/sells-group/macro-cli/internal/fusion"
	"github.com/sells-group/macro-cli/internal/model"
	"github.com/sells-group/macro-cli/internal/resolver"
	"github.com/sells-group/macro-cli/internal/store"
)

var (
	logServings float64
	logAt       string
	logOutput   string
)

var logCmd = &cobra.Command{
	Use:   "log <meal description>",
	Short: "Resolve a meal and save it to the meal log",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(config.ModeStore); err != nil {
			return err
		}
		if err := checkOutputFormat(logOutput); err != nil {
			return err
		}

		eatenAt, err := parseEatenAt(logAt, time.Now())
		if err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		eng := initEngine(cfg.Providers)
		meal, err := logMeal(ctx, eng.Resolver, st, strings.Join(args, " "), logServings, eatenAt)
		if err != nil {
			return err
		}
		return writeOutput(os.Stdout, logOutput, meal)
	},
}

func init() {
	logCmd.Flags().Float64Var(&logServings, "servings", 1, "servings multiplier applied to the resolved macros")
	logCmd.Flags().StringVar(&logAt, "at", "", "when the meal was eaten (RFC 3339, default now)")
	logCmd.Flags().StringVarP(&logOutput, "output", "o", "json", "output format (json or yaml)")
	rootCmd.AddCommand(logCmd)
}

// logMeal resolves query and persists it scaled by servings.
func logMeal(ctx context.Context, r *resolver.Resolver, st store.MealStore, query string, servings float64, eatenAt time.Time) (*model.Meal, error) {
	result, err := r.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}

	meal := model.NewMeal(query, servings, *result, fusion.ItemBreakdown(result), eatenAt)
	if err := st.SaveMeal(ctx, &meal); err != nil {
		return nil, eris.Wrap(err, "log meal")
	}
	return &meal, nil
}

// parseEatenAt accepts RFC 3339 timestamps or a bare date. Empty means now.
func parseEatenAt(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, eris.Errorf("invalid time %q (use RFC 3339 or YYYY-MM-DD)", s)
}
