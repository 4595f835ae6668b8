package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/macro-cli/internal/config"
	"github.com/sells-group/macro-cli/internal/fusion"
	"github.com/sells-group/macro-cli/internal/model"
	"github.com/sells-group/macro-cli/internal/queryfile"
)

var (
	batchFile   string
	batchOutput string
	batchLog    bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Resolve every meal description in a YAML, CSV, or XLSX file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mode := config.ModeResolve
		if batchLog {
			mode = config.ModeStore
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}
		if err := checkOutputFormat(batchOutput); err != nil {
			return err
		}

		items, err := queryfile.Read(batchFile)
		if err != nil {
			return err
		}

		eng := initEngine(cfg.Providers)
		outcomes, err := processBatch(ctx, items, cfg.Batch.MaxConcurrent, eng.Resolver.Resolve)
		if err != nil {
			return err
		}

		if batchLog {
			st, err := initStore(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			meals := batchMeals(outcomes, time.Now())
			if err := st.SaveMeals(ctx, meals); err != nil {
				return eris.Wrap(err, "batch: save meals")
			}
			zap.L().Info("batch meals logged", zap.Int("meals", len(meals)))
		}

		return writeOutput(os.Stdout, batchOutput, outcomes)
	},
}

func init() {
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "queries.yaml", "file of meal descriptions (.yaml, .csv, .xlsx)")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "yaml", "output format (json or yaml)")
	batchCmd.Flags().BoolVar(&batchLog, "log", false, "save resolved meals to the meal log")
	rootCmd.AddCommand(batchCmd)
}

// batchOutcome is the result of one batch entry.
type batchOutcome struct {
	Query    string             `yaml:"query" json:"query"`
	Servings float64            `yaml:"servings,omitempty" json:"servings,omitempty"`
	Result   *model.MacroResult `yaml:"result,omitempty" json:"result,omitempty"`
	Error    string             `yaml:"error,omitempty" json:"error,omitempty"`
}

// resolveFunc is the callback signature for resolving one query.
type resolveFunc func(ctx context.Context, query string) (*model.MacroResult, error)

// processBatch resolves items concurrently, keeping input order. Per-query
// failures are recorded on the outcome; only cancellation aborts the batch.
func processBatch(ctx context.Context, items []queryfile.Item, concurrency int, resolve resolveFunc) ([]batchOutcome, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("queries", len(items)),
		zap.Int("concurrency", concurrency),
	)

	outcomes := make([]batchOutcome, len(items))
	var succeeded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, it := range items {
		g.Go(func() error {
			outcomes[i] = batchOutcome{Query: it.Query, Servings: it.Servings}

			result, err := resolve(gctx, it.Query)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				outcomes[i].Error = err.Error()
				zap.L().Warn("batch query failed", zap.String("query", it.Query), zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			outcomes[i].Result = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return outcomes, nil
}

// batchMeals converts successful outcomes to meal log entries.
func batchMeals(outcomes []batchOutcome, eatenAt time.Time) []*model.Meal {
	var meals []*model.Meal
	for _, o := range outcomes {
		if o.Result == nil {
			continue
		}
		m := model.NewMeal(o.Query, o.Servings, *o.Result, fusion.ItemBreakdown(o.Result), eatenAt)
		meals = append(meals, &m)
	}
	return meals
}
