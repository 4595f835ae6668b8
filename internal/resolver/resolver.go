// Package resolver turns a free-text meal description into a single macro
// estimate: preprocess, route, fan out to providers, filter, fuse.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/macro-cli/internal/fusion"
	"github.com/sells-group/macro-cli/internal/model"
	"github.com/sells-group/macro-cli/internal/preprocess"
	"github.com/sells-group/macro-cli/internal/routing"
	"github.com/sells-group/macro-cli/internal/validate"
	"github.com/sells-group/macro-cli/pkg/nutrition"
)

// DefaultCallTimeout bounds each provider call within a pass.
const DefaultCallTimeout = 11 * time.Second

// NoDataFoundError is returned when no provider produced usable data for a query.
type NoDataFoundError struct {
	Query string
}

func (e *NoDataFoundError) Error() string {
	return fmt.Sprintf("no nutrition data found for %q: try adding a portion size or preparation method", e.Query)
}

// IsNoData reports whether err is (or wraps) a NoDataFoundError.
func IsNoData(err error) bool {
	var nd *NoDataFoundError
	return errors.As(err, &nd)
}

// Stage names a pass of the resolution.
type Stage string

// Resolution passes, in execution order.
const (
	StagePrimary  Stage = "primary"
	StageFallback Stage = "fallback"
	StageRetry    Stage = "retry"
)

// Outcome is what one provider call produced.
type Outcome string

// Provider call outcomes.
const (
	OutcomeOK           Outcome = "ok"
	OutcomeNoData       Outcome = "no_data"
	OutcomeUnavailable  Outcome = "unavailable"
	OutcomeZeroCalories Outcome = "zero_calories"
	OutcomeSkipped      Outcome = "skipped"
)

// Attempt records one provider call.
type Attempt struct {
	Source     model.Source `json:"source"`
	Stage      Stage        `json:"stage"`
	Outcome    Outcome      `json:"outcome"`
	Confidence float64      `json:"confidence,omitempty"`
	Error      string       `json:"error,omitempty"`
	DurationMs int64        `json:"duration_ms"`
}

// Resolution is the full trace of one resolve call.
type Resolution struct {
	Query    preprocess.Query   `json:"query"`
	Plan     routing.Plan       `json:"plan"`
	Attempts []Attempt          `json:"attempts"`
	Result   *model.MacroResult `json:"result,omitempty"`
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCallTimeout sets the per-provider call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// Resolver orchestrates provider calls for meal descriptions. It holds no
// per-call state and is safe for concurrent use.
type Resolver struct {
	providers *nutrition.Registry
	timeout   time.Duration
}

// New creates a Resolver over the given providers.
func New(providers *nutrition.Registry, opts ...Option) *Resolver {
	r := &Resolver{
		providers: providers,
		timeout:   DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the fused macro estimate for query.
func (r *Resolver) Resolve(ctx context.Context, query string) (*model.MacroResult, error) {
	res, err := r.ResolveDetailed(ctx, query)
	if err != nil {
		return nil, err
	}
	return res.Result, nil
}

// ResolveDetailed is Resolve plus the per-provider trace. On NoDataFound the
// trace is still returned alongside the error.
func (r *Resolver) ResolveDetailed(ctx context.Context, query string) (*Resolution, error) {
	q := preprocess.Preprocess(query)
	plan := routing.Select(query, q)
	res := &Resolution{Query: q, Plan: plan}

	passes := []struct {
		stage   Stage
		sources []model.Source
	}{
		{StagePrimary, plan.FirstPass()},
		{StageFallback, plan.Fallback},
		{StageRetry, plan.Retry},
	}

	var results []*model.MacroResult
	for _, pass := range passes {
		if len(results) > 0 {
			break
		}
		if len(pass.sources) == 0 {
			continue
		}
		var attempts []Attempt
		results, attempts = r.runPass(ctx, pass.stage, pass.sources, query)
		res.Attempts = append(res.Attempts, attempts...)

		if ctx.Err() != nil {
			return res, eris.Wrap(context.Cause(ctx), "resolver: resolve")
		}
	}

	if len(results) == 0 {
		zap.L().Warn("no nutrition data found",
			zap.String("query", query),
			zap.Int("providers_tried", len(res.Attempts)),
		)
		return res, &NoDataFoundError{Query: query}
	}

	fused, err := fusion.Fuse(results)
	if err != nil {
		return res, eris.Wrap(err, "resolver: fuse")
	}
	fused.Round()
	fused.Confidence = model.Clamp(fused.Confidence, validate.MinConfidence, validate.MaxConfidence)
	if fused.ValidationFlags == nil {
		fused.ValidationFlags = []string{}
	}
	res.Result = fused

	zap.L().Info("resolved meal",
		zap.String("query", query),
		zap.String("source", string(fused.Source)),
		zap.Float64("calories", fused.Calories),
		zap.Float64("confidence", fused.Confidence),
		zap.Int("providers_tried", len(res.Attempts)),
	)
	return res, nil
}

// runPass calls every source concurrently and waits for all of them. Results
// keep the order of sources.
func (r *Resolver) runPass(ctx context.Context, stage Stage, sources []model.Source, query string) ([]*model.MacroResult, []Attempt) {
	attempts := make([]Attempt, len(sources))
	found := make([]*model.MacroResult, len(sources))

	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			attempts[i], found[i] = r.call(ctx, stage, src, query)
			return nil
		})
	}
	_ = g.Wait()

	var results []*model.MacroResult
	for _, f := range found {
		if f != nil {
			results = append(results, f)
		}
	}
	return results, attempts
}

func (r *Resolver) call(ctx context.Context, stage Stage, src model.Source, query string) (Attempt, *model.MacroResult) {
	a := Attempt{Source: src, Stage: stage}

	p := r.providers.Get(src)
	if p == nil {
		a.Outcome = OutcomeSkipped
		return a, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	result, err := p.Fetch(callCtx, query)
	a.DurationMs = time.Since(start).Milliseconds()

	switch {
	case err != nil:
		a.Outcome = OutcomeUnavailable
		a.Error = err.Error()
		zap.L().Warn("provider unavailable",
			zap.String("provider", string(src)),
			zap.String("query", query),
			zap.Error(err),
		)
		return a, nil
	case result == nil:
		a.Outcome = OutcomeNoData
		zap.L().Debug("provider returned no data",
			zap.String("provider", string(src)),
			zap.String("query", query),
		)
		return a, nil
	case result.Calories <= 0:
		a.Outcome = OutcomeZeroCalories
		return a, nil
	}

	a.Outcome = OutcomeOK
	a.Confidence = result.Confidence
	return a, result
}
