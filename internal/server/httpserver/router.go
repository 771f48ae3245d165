// Package httpserver exposes the operational HTTP endpoints: liveness,
// readiness, prometheus metrics and a read-only leaderboard.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/sporthack/internal/logging"
	"github.com/dmitrijs2005/sporthack/internal/server/leaderboard"
)

const defaultTop = 10

type Pinger interface {
	Ping(ctx context.Context) error
}

// Board is the read side of the leaderboard.
type Board interface {
	Top(ctx context.Context, sectionID string, n int64) ([]leaderboard.Entry, error)
}

// NewRouter builds the ops router. board may be nil.
func NewRouter(store Pinger, gatherer prometheus.Gatherer, board Board, logger logging.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			logger.Warn(ctx, "readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if board != nil {
		r.Get("/leaderboard", func(w http.ResponseWriter, req *http.Request) {
			n := int64(defaultTop)
			if v := req.URL.Query().Get("limit"); v != "" {
				parsed, err := strconv.ParseInt(v, 10, 64)
				if err != nil || parsed <= 0 || parsed > 100 {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be in 1..100"})
					return
				}
				n = parsed
			}

			entries, err := board.Top(req.Context(), req.URL.Query().Get("section"), n)
			if err != nil {
				logger.Error(req.Context(), "leaderboard query failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "leaderboard unavailable"})
				return
			}

			type row struct {
				UserID string `json:"user_id"`
				Rating int64  `json:"rating"`
			}
			out := make([]row, 0, len(entries))
			for _, e := range entries {
				out = append(out, row{UserID: e.UserID, Rating: e.Rating})
			}
			writeJSON(w, http.StatusOK, out)
		})
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Server runs the ops router until its context is cancelled.
type Server struct {
	srv    *http.Server
	logger logging.Logger
}

func NewServer(addr string, h http.Handler, logger logging.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With("module", "http"),
	}
}

// Run listens on the configured address and shuts down gracefully when ctx
// is done, waiting at most shutdownTimeout for in-flight requests.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	lis, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis, shutdownTimeout)
}

func (s *Server) Serve(ctx context.Context, lis net.Listener, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "ops http listening", "addr", lis.Addr().String())
		errCh <- s.srv.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
