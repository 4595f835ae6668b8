package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/macro-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "macro-cli",
	Short: "Meal macro resolution engine",
	Long:  "Estimates calories, protein, carbs, and fat for free-text meal descriptions by querying Nutritionix, USDA FoodData Central, and Open Food Facts, then validates and fuses their answers.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
