package http

import (
	"net/http"
)

type RouterConfig struct {
	Sessions     *SessionHandler
	Availability *AvailabilityHandler
	Calendar     *CalendarHandler
	// Identity guards every route except health, metrics and the calendar callback.
	Identity   func(http.Handler) http.Handler
	Metrics    http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	protect := func(h http.HandlerFunc) http.Handler {
		if cfg.Identity == nil {
			return h
		}
		return cfg.Identity(h)
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	if cfg.Sessions != nil {
		mux.Handle("POST /sessions", protect(cfg.Sessions.Book))
		mux.Handle("GET /sessions", protect(cfg.Sessions.List))
		mux.Handle("GET /sessions/{id}", protect(cfg.Sessions.Get))
		mux.Handle("POST /sessions/{id}/cancel", protect(cfg.Sessions.Cancel))
	}

	if cfg.Availability != nil {
		mux.Handle("GET /speakers/{id}/availability", protect(cfg.Availability.List))
		mux.Handle("GET /speakers/{id}/slots", protect(cfg.Availability.Slots))
		mux.Handle("PUT /availability", protect(cfg.Availability.Replace))
	}

	if cfg.Calendar != nil {
		mux.Handle("GET /calendar/connect", protect(cfg.Calendar.Connect))
		mux.HandleFunc("GET /calendar/callback", cfg.Calendar.Callback)
		mux.Handle("DELETE /calendar/connection", protect(cfg.Calendar.Disconnect))
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}
