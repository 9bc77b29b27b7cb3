package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/example/tutorbook/internal/retry"
)

type capturedInsert struct {
	auth     string
	query    string
	body     map[string]any
	deletes  []string
	deleteTo int
	// existing holds event ids already stored, so inserting one again conflicts.
	existing map[string]bool
	inserts  int
	gets     []string
}

func newCalendarServer(t *testing.T, captured *capturedInsert) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/calendars/primary/events":
			captured.auth = r.Header.Get("Authorization")
			captured.query = r.URL.RawQuery
			captured.inserts++
			if err := json.NewDecoder(r.Body).Decode(&captured.body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			id, _ := captured.body["id"].(string)
			if id != "" && captured.existing[id] {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":{"code":409,"message":"The requested identifier already exists."}}`))
				return
			}
			if id == "" {
				id = "evt-1"
			}
			_, _ = fmt.Fprintf(w, `{"id":%q,"hangoutLink":"https://meet.google.com/abc-defg-hij"}`, id)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/calendars/primary/events/"):
			id := strings.TrimPrefix(r.URL.Path, "/calendars/primary/events/")
			captured.gets = append(captured.gets, id)
			if !captured.existing[id] {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = fmt.Fprintf(w, `{"id":%q,"hangoutLink":"https://meet.google.com/abc-defg-hij"}`, id)
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/calendars/primary/events/"):
			id := strings.TrimPrefix(r.URL.Path, "/calendars/primary/events/")
			captured.deletes = append(captured.deletes, id)
			if captured.deleteTo != 0 {
				w.WriteHeader(captured.deleteTo)
				_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"Resource has been deleted"}}`, captured.deleteTo)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGoogleGateway_CreateEvent(t *testing.T) {
	t.Parallel()

	captured := &capturedInsert{}
	server := newCalendarServer(t, captured)
	gateway := NewGoogleGateway("", WithHTTPClient(server.Client()), WithEndpoint(server.URL+"/"))

	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	start := time.Date(2025, time.March, 12, 10, 0, 0, 0, berlin)

	event, err := gateway.CreateEvent(context.Background(), "access-1", EventSpec{
		Summary:     "Go generics",
		Description: "Icebreaker: hello",
		Start:       start,
		End:         start.Add(30 * time.Minute),
		Attendees:   []string{"speaker@example.com", "", "learner@example.com"},
		RequestID:   "session-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "evt-1", event.ID)
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", event.MeetingLink)
	assert.Equal(t, "Bearer access-1", captured.auth)
	assert.Contains(t, captured.query, "conferenceDataVersion=1")
	assert.Contains(t, captured.query, "sendUpdates=all")

	startField := captured.body["start"].(map[string]any)
	assert.Equal(t, "2025-03-12T09:00:00Z", startField["dateTime"])
	attendees := captured.body["attendees"].([]any)
	assert.Len(t, attendees, 2)
	conference := captured.body["conferenceData"].(map[string]any)["createRequest"].(map[string]any)
	assert.Equal(t, "session-1", conference["requestId"])
}

func TestGoogleGateway_CreateEventWithExistingID(t *testing.T) {
	t.Parallel()

	eventID := EventIDFor("session-7")
	captured := &capturedInsert{existing: map[string]bool{eventID: true}}
	server := newCalendarServer(t, captured)
	gateway := NewGoogleGateway("primary", WithHTTPClient(server.Client()), WithEndpoint(server.URL+"/"))

	start := time.Date(2025, time.March, 12, 9, 0, 0, 0, time.UTC)
	event, err := gateway.CreateEvent(context.Background(), "access-1", EventSpec{
		Summary:   "Retried insert",
		Start:     start,
		End:       start.Add(30 * time.Minute),
		RequestID: "session-7",
		EventID:   eventID,
	})
	require.NoError(t, err)

	assert.Equal(t, eventID, event.ID)
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", event.MeetingLink)
	assert.Equal(t, eventID, captured.body["id"])
	assert.Equal(t, 1, captured.inserts)
	assert.Equal(t, []string{eventID}, captured.gets)
}

func TestEventIDFor(t *testing.T) {
	t.Parallel()

	id := EventIDFor("0b6f1c1e-8d3a-4c55-9a55-0d1f0c7f3a10")
	assert.Equal(t, id, EventIDFor("0b6f1c1e-8d3a-4c55-9a55-0d1f0c7f3a10"))
	assert.NotEqual(t, id, EventIDFor("session-2"))
	assert.GreaterOrEqual(t, len(id), 5)
	for _, r := range id {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'v'), "unexpected rune %q in %s", r, id)
	}
	assert.Empty(t, EventIDFor(""))
}

func TestGoogleGateway_DeleteEvent(t *testing.T) {
	t.Parallel()

	captured := &capturedInsert{}
	server := newCalendarServer(t, captured)
	gateway := NewGoogleGateway("primary", WithHTTPClient(server.Client()), WithEndpoint(server.URL+"/"))

	require.NoError(t, gateway.DeleteEvent(context.Background(), "access-1", "evt-1"))

	captured.deleteTo = http.StatusGone
	err := gateway.DeleteEvent(context.Background(), "access-1", "evt-2")
	require.ErrorIs(t, err, ErrEventGone)
	assert.Equal(t, []string{"evt-1", "evt-2"}, captured.deletes)
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, retry.Transient, ClassifyError(&googleapi.Error{Code: http.StatusServiceUnavailable}))
	assert.Equal(t, retry.Transient, ClassifyError(&googleapi.Error{Code: http.StatusTooManyRequests}))
	assert.Equal(t, retry.Terminal, ClassifyError(&googleapi.Error{Code: http.StatusForbidden}))
	assert.Equal(t, retry.Transient, ClassifyError(context.DeadlineExceeded))
}
