package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/macro-cli/internal/config"
	"github.com/sells-group/macro-cli/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the meal log to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(config.ModeStore); err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("out")
		since, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		meals, err := st.ListMeals(ctx, mealFilter(since, limit, time.Now()))
		if err != nil {
			return eris.Wrap(err, "export meals")
		}

		if err := export.WriteXLSX(out, meals, time.Local); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Exported %d meals to %s\n", len(meals), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "meals.xlsx", "output workbook path")
	exportCmd.Flags().Duration("since", 0, "only export meals from this window (0 for all)")
	exportCmd.Flags().Int("limit", 10000, "max number of meals to export")
	rootCmd.AddCommand(exportCmd)
}
