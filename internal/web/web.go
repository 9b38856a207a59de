package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/justinas/alice"

	"starlingcal/internal/config"
	"starlingcal/internal/feed"
	appLog "starlingcal/internal/log"
	"starlingcal/internal/schedule"
	"starlingcal/internal/starling"
)

const tokenParam = "personalToken"

// BankFactory builds an upstream client bound to one caller's token.
type BankFactory func(token string) feed.Bank

// Server serves the calendar feed. It holds no per-request state.
type Server struct {
	cfg   *config.Config
	mux   *http.ServeMux
	feed  feed.Orchestrator
	banks BankFactory
}

// NewServer constructs a new Server. A nil banks factory uses the real
// Starling client configured from cfg.
func NewServer(cfg *config.Config, banks BankFactory) *Server {
	if banks == nil {
		opts := starling.Options{BaseURL: cfg.APIBaseURL, Timeout: cfg.RequestTimeout}
		banks = func(token string) feed.Bank {
			return starling.New(token, opts)
		}
	}

	s := &Server{
		cfg: cfg,
		mux: http.NewServeMux(),
		feed: feed.Orchestrator{
			ProductID:    cfg.ProductID,
			CalendarName: cfg.CalendarName,
			Resolver: schedule.Resolver{
				Location:   schedule.LoadLocation(cfg.Timezone),
				WindowDays: cfg.WindowDays,
			},
		},
		banks: banks,
	}
	s.registerRoutes()
	return s
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	chain := alice.New(requestID, accessLog)
	if s.cfg.RedirectHTTPS {
		chain = chain.Append(RedirectToHTTPS)
	}
	return chain.Then(s.mux)
}

// StartServer serves until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config) error {
	s := NewServer(cfg, nil)
	srv := &http.Server{
		Addr:              cfg.Listen(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", cfg.Listen(), "redirect_https", cfg.RedirectHTTPS)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleCalendar)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleCalendar renders the caller's payment schedule as iCalendar.
//
// GET /?personalToken=<token>
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get(tokenParam)
	if token == "" {
		http.Error(w, "Error! Please provide an API key.", http.StatusUnauthorized)
		return
	}

	body, err := s.feed.Calendar(r.Context(), s.banks(token))
	if err != nil {
		status := statusFor(err)
		appLog.Error("calendar build failed", err, "status", status, "request_id", RequestIDFrom(r.Context()))
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="starling.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		appLog.Error("failed to write calendar response", err)
	}
}

// statusFor maps a feed error to an HTTP status. Rejected tokens keep the
// upstream status; other upstream HTTP failures are a bad gateway.
func statusFor(err error) int {
	var apiErr *starling.APIError
	if errors.As(err, &apiErr) {
		if errors.Is(apiErr, starling.ErrUnauthorized) {
			return apiErr.StatusCode
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
