package testfixtures

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/example/tutorbook/internal/calendar"
	"github.com/example/tutorbook/internal/oauth"
)

// FakeProvider is a scripted oauth.Provider that counts its calls.
type FakeProvider struct {
	mu sync.Mutex

	ExchangeToken oauth.Token
	ExchangeErr   error
	RefreshToken  oauth.Token
	RefreshErrs   []error

	Exchanges int
	Refreshes int
	Codes     []string
}

// AuthCodeURL returns a consent URL on a fake host carrying state.
func (p *FakeProvider) AuthCodeURL(state string) string {
	return "https://consent.example.test/auth?state=" + url.QueryEscape(state)
}

func (p *FakeProvider) Exchange(ctx context.Context, code string) (oauth.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Exchanges++
	p.Codes = append(p.Codes, code)
	if p.ExchangeErr != nil {
		return oauth.Token{}, p.ExchangeErr
	}
	return p.ExchangeToken, nil
}

// Refresh pops the next scripted error, if any, before returning RefreshToken.
func (p *FakeProvider) Refresh(ctx context.Context, refreshToken string) (oauth.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Refreshes++
	if len(p.RefreshErrs) > 0 {
		err := p.RefreshErrs[0]
		p.RefreshErrs = p.RefreshErrs[1:]
		if err != nil {
			return oauth.Token{}, err
		}
	}
	return p.RefreshToken, nil
}

// FakeGateway is an in-memory calendar.Gateway.
type FakeGateway struct {
	mu sync.Mutex

	CreateErr error
	DeleteErr error

	Created []calendar.EventSpec
	Deleted []string
	Tokens  []string
}

func (g *FakeGateway) CreateEvent(ctx context.Context, accessToken string, spec calendar.EventSpec) (calendar.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Tokens = append(g.Tokens, accessToken)
	if g.CreateErr != nil {
		return calendar.Event{}, g.CreateErr
	}
	g.Created = append(g.Created, spec)
	return calendar.Event{
		ID:          fmt.Sprintf("event-%d", len(g.Created)),
		MeetingLink: "https://meet.google.com/abc-def-ghi",
	}, nil
}

func (g *FakeGateway) DeleteEvent(ctx context.Context, accessToken, eventID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Tokens = append(g.Tokens, accessToken)
	if g.DeleteErr != nil {
		return g.DeleteErr
	}
	g.Deleted = append(g.Deleted, eventID)
	return nil
}

// DeletedEvents returns a copy of the deleted event IDs.
func (g *FakeGateway) DeletedEvents() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.Deleted...)
}
