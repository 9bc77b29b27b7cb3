package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/example/tutorbook/internal/retry"
)

// GoogleGateway creates events with Google Meet conferences on a speaker's calendar.
type GoogleGateway struct {
	calendarID string
	baseClient *http.Client
	endpoint   string
}

// GoogleOption customises a GoogleGateway.
type GoogleOption func(*GoogleGateway)

// WithHTTPClient sets the transport used beneath the bearer token.
func WithHTTPClient(client *http.Client) GoogleOption {
	return func(g *GoogleGateway) { g.baseClient = client }
}

// WithEndpoint points the client at an alternative API base URL.
func WithEndpoint(endpoint string) GoogleOption {
	return func(g *GoogleGateway) { g.endpoint = endpoint }
}

// NewGoogleGateway returns a gateway writing to calendarID ("primary" when empty).
func NewGoogleGateway(calendarID string, opts ...GoogleOption) *GoogleGateway {
	if calendarID == "" {
		calendarID = "primary"
	}
	g := &GoogleGateway{calendarID: calendarID}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CreateEvent inserts an event and asks Google to attach a Meet link.
func (g *GoogleGateway) CreateEvent(ctx context.Context, accessToken string, spec EventSpec) (Event, error) {
	svc, err := g.service(ctx, accessToken)
	if err != nil {
		return Event{}, err
	}

	attendees := make([]*gcal.EventAttendee, 0, len(spec.Attendees))
	for _, email := range spec.Attendees {
		if email != "" {
			attendees = append(attendees, &gcal.EventAttendee{Email: email})
		}
	}

	event := &gcal.Event{
		Id:          spec.EventID,
		Summary:     spec.Summary,
		Description: spec.Description,
		Start:       &gcal.EventDateTime{DateTime: spec.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:         &gcal.EventDateTime{DateTime: spec.End.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		Attendees:   attendees,
		ConferenceData: &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             spec.RequestID,
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
		Reminders: &gcal.EventReminders{UseDefault: true},
	}

	created, err := svc.Events.Insert(g.calendarID, event).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(ctx).
		Do()
	var apiErr *googleapi.Error
	if err != nil && spec.EventID != "" && errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		// An earlier attempt went through before its response was lost.
		created, err = svc.Events.Get(g.calendarID, spec.EventID).Context(ctx).Do()
	}
	if err != nil {
		return Event{}, fmt.Errorf("calendar: insert event: %w", err)
	}
	return Event{ID: created.Id, MeetingLink: meetingLink(created)}, nil
}

// DeleteEvent removes an event and notifies attendees.
func (g *GoogleGateway) DeleteEvent(ctx context.Context, accessToken, eventID string) error {
	svc, err := g.service(ctx, accessToken)
	if err != nil {
		return err
	}
	err = svc.Events.Delete(g.calendarID, eventID).SendUpdates("all").Context(ctx).Do()
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return ErrEventGone
	}
	return fmt.Errorf("calendar: delete event: %w", err)
}

func (g *GoogleGateway) service(ctx context.Context, accessToken string) (*gcal.Service, error) {
	if g.baseClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, g.baseClient)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create service: %w", err)
	}
	return svc, nil
}

func meetingLink(event *gcal.Event) string {
	if event == nil {
		return ""
	}
	if event.HangoutLink != "" {
		return event.HangoutLink
	}
	if event.ConferenceData != nil {
		for _, entry := range event.ConferenceData.EntryPoints {
			if entry != nil && entry.EntryPointType == "video" && entry.Uri != "" {
				return entry.Uri
			}
		}
	}
	return ""
}

// ClassifyError treats rate limiting and 5xx API responses as transient, along
// with the network failures recognised by retry.NetworkClassifier.
func ClassifyError(err error) retry.Class {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError {
			return retry.Transient
		}
		return retry.Terminal
	}
	return retry.NetworkClassifier(err)
}
