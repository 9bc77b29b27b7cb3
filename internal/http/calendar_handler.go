package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/tutorbook/internal/application"
)

type calendarConnectionService interface {
	ConnectURL(ctx context.Context, principal application.Principal) (string, error)
	CompleteConnection(ctx context.Context, code, state string) (string, error)
	Disconnect(ctx context.Context, principal application.Principal) error
}

// CalendarHandler serves the speaker calendar connection flow.
type CalendarHandler struct {
	service   calendarConnectionService
	responder responder
	logger    *slog.Logger
}

func NewCalendarHandler(service calendarConnectionService, logger *slog.Logger) *CalendarHandler {
	base := defaultLogger(logger)
	return &CalendarHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *CalendarHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CalendarHandler", operation, attrs...)
}

// Connect handles GET /calendar/connect.
func (h *CalendarHandler) Connect(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	url, err := h.service.ConnectURL(r.Context(), principal)
	if err != nil {
		h.log(r.Context(), "Connect").ErrorContext(r.Context(), "failed to build consent url", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, connectResponse{URL: url})
}

// Callback handles GET /calendar/callback?code=&state=. It is reached by the
// provider redirect, so the caller is identified by state rather than a bearer token.
func (h *CalendarHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		h.log(r.Context(), "Callback", "error_kind", "consent_denied").WarnContext(r.Context(), "calendar consent denied", "provider_error", providerErr)
		h.responder.writeJSON(r.Context(), w, http.StatusBadRequest, errorResponse{
			ErrorCode: "consent_denied",
			Message:   "calendar access was not granted",
			Details:   map[string]any{"providerError": providerErr},
		})
		return
	}

	speakerID, err := h.service.CompleteConnection(r.Context(), query.Get("code"), query.Get("state"))
	if err != nil {
		h.log(r.Context(), "Callback").ErrorContext(r.Context(), "calendar connection failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Callback", "speaker_id", speakerID).InfoContext(r.Context(), "calendar connected")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, connectedResponse{Connected: true})
}

// Disconnect handles DELETE /calendar/connection.
func (h *CalendarHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.Disconnect(r.Context(), principal); err != nil {
		h.log(r.Context(), "Disconnect").ErrorContext(r.Context(), "failed to disconnect calendar", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type connectResponse struct {
	URL string `json:"url"`
}

type connectedResponse struct {
	Connected bool `json:"connected"`
}
