// Package adminhttp serves the operator endpoints: health and manual broadcast.
package adminhttp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/m3rciful/finbot/core/buildinfo"
	"github.com/m3rciful/finbot/core/logger"
)

const maxBodyBytes = 64 << 10

// Broadcaster sends text to every active chat and reports the recipient count.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string) (int, error)
}

// Options configures the router.
type Options struct {
	Token       string
	Broadcaster Broadcaster
	// RequestsPerMinute limits each client IP; zero selects 30.
	RequestsPerMinute int
	AllowedOrigins    []string
	// TrustProxy takes the client IP from X-Forwarded-For and X-Real-IP.
	// Enable it only behind a proxy that overwrites those headers.
	TrustProxy bool
}

type broadcastRequest struct {
	Text string `json:"text"`
}

type broadcastResponse struct {
	Recipients int `json:"recipients"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter builds the admin HTTP handler.
func NewRouter(opts Options) http.Handler {
	rpm := opts.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}

	r := chi.NewRouter()
	if opts.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer, requestLogger)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		}))
	}
	r.Use(httprate.LimitByIP(rpm, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": buildinfo.Version,
		})
	})

	r.With(bearerAuth(opts.Token)).Post("/broadcast", broadcastHandler(opts.Broadcaster))
	return r
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			got, ok := strings.CutPrefix(h, "Bearer ")
			if token == "" || !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func broadcastHandler(b Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if b == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "broadcast unavailable"})
			return
		}
		var req broadcastRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
			return
		}
		text := strings.TrimSpace(req.Text)
		if text == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "text is required"})
			return
		}
		n, err := b.Broadcast(r.Context(), text)
		if err != nil {
			logger.Error(r.Context(), "http.admin", "broadcast",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "broadcast failed"})
			return
		}
		writeJSON(w, http.StatusAccepted, broadcastResponse{Recipients: n})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Info(r.Context(), "http.admin", "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.String("remote", r.RemoteAddr),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// Server runs the admin router on its own listener.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, h http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start serves in the background. Listener errors other than a clean
// shutdown are logged.
func (s *Server) Start() {
	go func() {
		logger.Info(context.Background(), "http.admin", "listen",
			slog.String("addr", s.srv.Addr),
		)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http.admin", "listen",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
