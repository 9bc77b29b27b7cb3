package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/example/tutorbook/internal/application"
	"github.com/example/tutorbook/internal/scheduler"
)

type availabilityService interface {
	ListAvailability(ctx context.Context, speakerID string) ([]application.AvailabilityEntry, error)
	ReplaceAvailability(ctx context.Context, params application.ReplaceAvailabilityParams) ([]application.AvailabilityEntry, error)
}

type slotService interface {
	ListSlots(ctx context.Context, params application.ListSlotsParams) ([]application.Slot, error)
}

// AvailabilityHandler serves weekly availability and open slots.
type AvailabilityHandler struct {
	availability availabilityService
	slots        slotService
	responder    responder
	logger       *slog.Logger
}

func NewAvailabilityHandler(availability availabilityService, slots slotService, logger *slog.Logger) *AvailabilityHandler {
	base := defaultLogger(logger)
	return &AvailabilityHandler{availability: availability, slots: slots, responder: newResponder(base), logger: base}
}

func (h *AvailabilityHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AvailabilityHandler", operation, attrs...)
}

// List handles GET /speakers/{id}/availability.
func (h *AvailabilityHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.availability == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	speakerID := r.PathValue("id")
	entries, err := h.availability.ListAvailability(r.Context(), speakerID)
	if err != nil {
		h.log(r.Context(), "List", "speaker_id", speakerID).ErrorContext(r.Context(), "failed to list availability", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{Availability: toAvailabilityDTOs(entries)})
}

// Replace handles PUT /availability.
func (h *AvailabilityHandler) Replace(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.availability == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req replaceAvailabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Replace", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode availability request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, "bad_request", errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Replace", "entry_count", len(req.Availability))

	entries, err := h.availability.ReplaceAvailability(r.Context(), application.ReplaceAvailabilityParams{
		Principal: principal,
		Entries:   req.toInputs(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "availability update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "availability replaced")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{Availability: toAvailabilityDTOs(entries)})
}

// Slots handles GET /speakers/{id}/slots?from=YYYY-MM-DD&days=N.
func (h *AvailabilityHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.slots == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	speakerID := r.PathValue("id")
	query := r.URL.Query()
	params := application.ListSlotsParams{SpeakerID: speakerID, From: query.Get("from")}
	if raw := query.Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			h.responder.handleServiceError(r.Context(), w, &application.ValidationError{
				FieldErrors: map[string]string{"days": "must be an integer"},
			})
			return
		}
		params.Days = days
	}

	slots, err := h.slots.ListSlots(r.Context(), params)
	if err != nil {
		h.log(r.Context(), "Slots", "speaker_id", speakerID).ErrorContext(r.Context(), "failed to list slots", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, slotsResponse{Slots: toSlotDTOs(slots)})
}

type availabilityEntryDTO struct {
	ID          string `json:"id,omitempty"`
	Day         string `json:"day"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	IsAvailable bool   `json:"isAvailable"`
}

type replaceAvailabilityRequest struct {
	Availability []availabilityEntryDTO `json:"availability"`
}

func (r replaceAvailabilityRequest) toInputs() []application.AvailabilityInput {
	inputs := make([]application.AvailabilityInput, 0, len(r.Availability))
	for _, entry := range r.Availability {
		inputs = append(inputs, application.AvailabilityInput{
			Day:         entry.Day,
			StartTime:   entry.StartTime,
			EndTime:     entry.EndTime,
			IsAvailable: entry.IsAvailable,
		})
	}
	return inputs
}

type availabilityResponse struct {
	Availability []availabilityEntryDTO `json:"availability"`
}

func toAvailabilityDTOs(entries []application.AvailabilityEntry) []availabilityEntryDTO {
	out := make([]availabilityEntryDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, availabilityEntryDTO{
			ID:          entry.ID,
			Day:         scheduler.DayName(entry.Day),
			StartTime:   entry.StartTime,
			EndTime:     entry.EndTime,
			IsAvailable: entry.IsAvailable,
		})
	}
	return out
}

type slotDTO struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type slotsResponse struct {
	Slots []slotDTO `json:"slots"`
}

func toSlotDTOs(slots []application.Slot) []slotDTO {
	out := make([]slotDTO, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slotDTO{
			Date:  slot.Date,
			Time:  slot.Time,
			Start: slot.Start.UTC().Format(time.RFC3339),
			End:   slot.End.UTC().Format(time.RFC3339),
		})
	}
	return out
}
