package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/macro-cli/internal/config"
	"github.com/sells-group/macro-cli/internal/model"
	"github.com/sells-group/macro-cli/internal/resilience"
	"github.com/sells-group/macro-cli/internal/resolver"
	"github.com/sells-group/macro-cli/internal/store"
	"github.com/sells-group/macro-cli/pkg/nutrition"
)

// clientIDHeader keys in-flight resolves so a newer query from the same
// client cancels the older one.
const clientIDHeader = "X-Client-ID"

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for macro resolution and the meal log",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := resolvePort(servePort, cfg.Server.Port)
		cfg.Server.Port = port
		if err := cfg.Validate(config.ModeServe); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		eng := initEngine(cfg.Providers)
		a := newAPI(eng, st)

		return startServer(ctx, buildMux(a, cfg.Server.CORSOrigins), port)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// resolvePort prefers the flag value over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// api holds the dependencies of the HTTP handlers.
type api struct {
	resolver  *resolver.Resolver
	providers *nutrition.Registry
	breakers  *resilience.ServiceBreakers
	store     store.MealStore
	inflight  *resolver.Inflight
}

func newAPI(eng *engine, st store.MealStore) *api {
	return &api{
		resolver:  eng.Resolver,
		providers: eng.Providers,
		breakers:  eng.Breakers,
		store:     st,
		inflight:  resolver.NewInflight(),
	}
}

// buildMux wires the routes and middleware.
func buildMux(a *api, corsOrigins []string) http.Handler {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", clientIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/resolve", a.handleResolve)
		r.Get("/providers", a.handleProviders)
		r.Route("/meals", func(r chi.Router) {
			r.Post("/", a.handleLogMeal)
			r.Get("/", a.handleListMeals)
			r.Get("/{id}", a.handleGetMeal)
			r.Delete("/{id}", a.handleDeleteMeal)
		})
	})

	r.Post("/mcp/tools/call", a.handleMCPToolCall)

	return r
}

// startServer serves handler until ctx is cancelled, then shuts down gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- eris.Wrap(err, "server listen")
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return <-errCh
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type resolveRequest struct {
	Query string `json:"query"`
	Trace bool   `json:"trace"`
}

func (a *api) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	ctx := r.Context()
	if id := r.Header.Get(clientIDHeader); id != "" {
		var done func()
		ctx, done = a.inflight.Begin(ctx, id)
		defer done()
	}

	res, err := a.resolver.ResolveDetailed(ctx, req.Query)
	if err != nil {
		writeResolveError(w, req.Query, err)
		return
	}
	if req.Trace {
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, http.StatusOK, res.Result)
}

func (a *api) handleProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": a.providers.List(),
		"circuits":  a.breakers.States(),
	})
}

type logMealRequest struct {
	Query    string  `json:"query"`
	Servings float64 `json:"servings"`
	EatenAt  string  `json:"eaten_at"`
}

func (a *api) handleLogMeal(w http.ResponseWriter, r *http.Request) {
	var req logMealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	eatenAt, err := parseEatenAt(req.EatenAt, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	meal, err := logMeal(r.Context(), a.resolver, a.store, req.Query, req.Servings, eatenAt)
	if err != nil {
		writeResolveError(w, req.Query, err)
		return
	}
	writeJSON(w, http.StatusCreated, meal)
}

type mealsResponse struct {
	Meals  []model.Meal `json:"meals"`
	Totals model.Macros `json:"totals"`
}

func (a *api) handleListMeals(w http.ResponseWriter, r *http.Request) {
	filter, err := parseMealFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	meals, err := a.store.ListMeals(r.Context(), filter)
	if err != nil {
		zap.L().Error("list meals failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list meals failed")
		return
	}
	if meals == nil {
		meals = []model.Meal{}
	}
	writeJSON(w, http.StatusOK, mealsResponse{Meals: meals, Totals: model.SumMeals(meals)})
}

func (a *api) handleGetMeal(w http.ResponseWriter, r *http.Request) {
	meal, err := a.store.GetMeal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meal)
}

func (a *api) handleDeleteMeal(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteMeal(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseMealFilter(r *http.Request) (store.MealFilter, error) {
	var f store.MealFilter
	q := r.URL.Query()
	if s := q.Get("since"); s != "" {
		t, err := parseEatenAt(s, time.Time{})
		if err != nil {
			return f, err
		}
		f.Since = t
	}
	if s := q.Get("until"); s != "" {
		t, err := parseEatenAt(s, time.Time{})
		if err != nil {
			return f, err
		}
		f.Until = t
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return f, eris.Errorf("invalid limit %q", s)
		}
		f.Limit = n
	}
	return f, nil
}

// resolveStatus maps a resolve failure to an HTTP status.
func resolveStatus(err error) int {
	switch {
	case resolver.IsNoData(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, resolver.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeResolveError(w http.ResponseWriter, query string, err error) {
	status := resolveStatus(err)
	msg := err.Error()
	switch status {
	case http.StatusConflict:
		msg = "superseded by a newer query"
	case http.StatusServiceUnavailable:
		msg = "request cancelled"
	case http.StatusInternalServerError:
		zap.L().Error("resolve failed", zap.String("query", query), zap.Error(err))
		msg = "resolve failed"
	}
	writeJSON(w, status, map[string]string{"error": msg, "query": query})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrMealNotFound) {
		writeError(w, http.StatusNotFound, "meal not found")
		return
	}
	zap.L().Error("meal store failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "meal store failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
