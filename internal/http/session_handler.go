package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/tutorbook/internal/application"
)

type bookingService interface {
	Book(ctx context.Context, params application.BookParams) (application.BookingResult, error)
}

type cancellationService interface {
	Cancel(ctx context.Context, params application.CancelParams) (application.Session, error)
}

type sessionQueries interface {
	ListSessions(ctx context.Context, params application.ListSessionsParams) ([]application.Session, error)
	GetSession(ctx context.Context, principal application.Principal, sessionID string) (application.Session, error)
}

// SessionHandler serves booking, listing and cancellation of sessions.
type SessionHandler struct {
	bookings      bookingService
	cancellations cancellationService
	queries       sessionQueries
	responder     responder
	logger        *slog.Logger
}

func NewSessionHandler(bookings bookingService, cancellations cancellationService, queries sessionQueries, logger *slog.Logger) *SessionHandler {
	base := defaultLogger(logger)
	return &SessionHandler{
		bookings:      bookings,
		cancellations: cancellations,
		queries:       queries,
		responder:     newResponder(base),
		logger:        base,
	}
}

func (h *SessionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SessionHandler", operation, attrs...)
}

// Book handles POST /sessions.
func (h *SessionHandler) Book(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.bookings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Book", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode booking request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "bad_request", errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Book", "speaker_id", req.SpeakerID)

	result, err := h.bookings.Book(r.Context(), application.BookParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "booking failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("session_id", result.Session.ID).InfoContext(r.Context(), "session booked")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookingResponse{
		Session: toSessionDTO(result.Session),
		Calendar: calendarOutcomeDTO{
			Created: result.Calendar.Created,
			EventID: result.Calendar.EventID,
			Error:   result.Calendar.Error,
		},
	})
}

// List handles GET /sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.queries == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	status := r.URL.Query().Get("status")
	logger := h.log(r.Context(), "List", "status", status)

	sessions, err := h.queries.ListSessions(r.Context(), application.ListSessionsParams{
		Principal: principal,
		Status:    application.SessionStatus(status),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to list sessions", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(sessions)).InfoContext(r.Context(), "sessions listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listSessionsResponse{Sessions: toSessionDTOs(sessions)})
}

// Get handles GET /sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.queries == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	sessionID := r.PathValue("id")

	session, err := h.queries.GetSession(r.Context(), principal, sessionID)
	if err != nil {
		h.log(r.Context(), "Get", "session_id", sessionID).ErrorContext(r.Context(), "failed to load session", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

// Cancel handles POST /sessions/{id}/cancel.
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.cancellations == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	sessionID := r.PathValue("id")

	// The body is optional.
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.log(r.Context(), "Cancel", "session_id", sessionID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode cancel request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "bad_request", errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Cancel", "session_id", sessionID)

	session, err := h.cancellations.Cancel(r.Context(), application.CancelParams{
		Principal: principal,
		SessionID: sessionID,
		Reason:    req.Reason,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "cancellation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Session: toSessionDTO(session)})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

type bookingRequest struct {
	SpeakerID string   `json:"speakerId"`
	Title     string   `json:"title"`
	Date      string   `json:"date"`
	Time      string   `json:"time"`
	Topics    []string `json:"topics"`
}

func (r bookingRequest) toInput() application.BookingInput {
	return application.BookingInput{
		SpeakerID: r.SpeakerID,
		Title:     r.Title,
		Date:      r.Date,
		Time:      r.Time,
		Topics:    r.Topics,
	}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type bookingResponse struct {
	Session  sessionDTO         `json:"session"`
	Calendar calendarOutcomeDTO `json:"calendar"`
}

type calendarOutcomeDTO struct {
	Created bool   `json:"created"`
	EventID string `json:"eventId,omitempty"`
	Error   string `json:"error,omitempty"`
}

type sessionResponse struct {
	Session sessionDTO `json:"session"`
}

type listSessionsResponse struct {
	Sessions []sessionDTO `json:"sessions"`
}

type sessionDTO struct {
	ID                 string   `json:"id"`
	SpeakerID          string   `json:"speakerId"`
	LearnerID          string   `json:"learnerId"`
	Title              string   `json:"title"`
	Date               string   `json:"date"`
	Time               string   `json:"time"`
	Duration           int      `json:"duration"`
	Status             string   `json:"status"`
	Topics             []string `json:"topics"`
	Icebreaker         string   `json:"icebreaker"`
	MeetingLink        string   `json:"meetingLink"`
	CalendarEventID    string   `json:"calendarEventId,omitempty"`
	CalendarSynced     bool     `json:"calendarSynced"`
	CancellationReason string   `json:"cancellationReason,omitempty"`
	CancelledAt        string   `json:"cancelledAt,omitempty"`
	CancelledBy        string   `json:"cancelledBy,omitempty"`
	CreatedAt          string   `json:"createdAt"`
	UpdatedAt          string   `json:"updatedAt"`
}

func toSessionDTO(session application.Session) sessionDTO {
	topics := session.Topics
	if topics == nil {
		topics = []string{}
	}
	dto := sessionDTO{
		ID:                 session.ID,
		SpeakerID:          session.SpeakerID,
		LearnerID:          session.LearnerID,
		Title:              session.Title,
		Date:               session.Date,
		Time:               session.Time,
		Duration:           session.DurationMinutes,
		Status:             string(session.Status),
		Topics:             topics,
		Icebreaker:         session.Icebreaker,
		MeetingLink:        session.MeetingLink,
		CalendarEventID:    session.CalendarEventID,
		CalendarSynced:     session.CalendarSynced,
		CancellationReason: session.CancellationReason,
		CancelledBy:        session.CancelledBy,
		CreatedAt:          session.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:          session.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if session.CancelledAt != nil {
		dto.CancelledAt = session.CancelledAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}

func toSessionDTOs(sessions []application.Session) []sessionDTO {
	out := make([]sessionDTO, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, toSessionDTO(session))
	}
	return out
}
