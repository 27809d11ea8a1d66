package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"marketScope/internal/filters"
	"marketScope/internal/history"
)

// FilterSource reports the state of the filter registry.
type FilterSource interface {
	Snapshot() map[string]filters.Entry
	AllFiltersRemoved() bool
}

// PriceSource serves accumulated fill prices.
type PriceSource interface {
	Markets() []string
	Market(id string) history.OutcomeHistory
}

// Options configures the status server. Nil sources disable their routes.
type Options struct {
	Filters  FilterSource
	Prices   PriceSource
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Server exposes health, filter state, price history and metrics over HTTP.
type Server struct {
	opts    Options
	logger  *zap.Logger
	router  chi.Router
	server  *http.Server
	started time.Time
}

func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		opts:    opts,
		logger:  logger,
		router:  chi.NewRouter(),
		started: time.Now(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(10 * time.Second))

	s.router.Get("/health", s.handleHealth)
	if opts.Filters != nil {
		s.router.Get("/filters", s.handleFilters)
	}
	if opts.Prices != nil {
		s.router.Get("/markets", s.handleMarkets)
		s.router.Get("/markets/{id}/prices", s.handlePrices)
	}
	if opts.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", zap.String("addr", s.server.Addr))
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}
	if s.opts.Filters != nil {
		body["all_filters_removed"] = s.opts.Filters.AllFiltersRemoved()
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.opts.Filters.Snapshot())
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	markets := s.opts.Prices.Markets()
	sort.Strings(markets)
	s.writeJSON(w, http.StatusOK, markets)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	prices := s.opts.Prices.Market(id)
	if len(prices) == 0 {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "no fills for market " + id})
		return
	}
	s.writeJSON(w, http.StatusOK, prices)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}
