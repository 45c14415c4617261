package presentation

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-narration-backend/internal/avatar"
	"github.com/tbourn/go-narration-backend/internal/domain"
	"github.com/tbourn/go-narration-backend/internal/services"
)

type fakeDecks struct {
	decks map[string]*domain.Deck
}

func (f fakeDecks) Get(_ context.Context, id string) (*domain.Deck, error) {
	d, ok := f.decks[id]
	if !ok {
		return nil, services.ErrDeckNotFound
	}
	return d, nil
}

func newManager(scripts *fakeScripts) *Manager {
	return &Manager{
		Decks: fakeDecks{decks: map[string]*domain.Deck{
			"deck-1": {ID: "deck-1", Title: "Q3", Avatar: "Anna", Slides: mkSlides(2)},
		}},
		Deps: Deps{
			Avatar:  &avatar.Recorder{},
			Scripts: scripts,
			Writer:  &fakeWriter{},
			Clock:   &fakeClock{},
			Log:     zerolog.Nop(),
		},
	}
}

func TestManager_CreateGetRemove(t *testing.T) {
	m := newManager(&fakeScripts{texts: map[string][]string{"en": script("en", 2)}})
	before := testutil.ToFloat64(activeSessions)

	c, err := m.Create(context.Background(), "deck-1", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	s := c.Snapshot()
	if s.DeckID != "deck-1" || s.Language != "en" || !s.Ready || s.SlideCount != 2 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if got := testutil.ToFloat64(activeSessions); got != before+1 {
		t.Fatalf("active sessions = %v; want %v", got, before+1)
	}

	got, err := m.Get(c.ID())
	if err != nil || got != c {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if err := m.Remove(c.ID()); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := m.Get(c.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound, got %v", err)
	}
	if err := m.Remove(c.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second remove: want ErrSessionNotFound, got %v", err)
	}
	if testutil.ToFloat64(activeSessions) != before {
		t.Fatalf("gauge not decremented")
	}
}

func TestManager_CreateUnknownDeck(t *testing.T) {
	m := newManager(&fakeScripts{})
	if _, err := m.Create(context.Background(), "nope", "en"); !errors.Is(err, services.ErrDeckNotFound) {
		t.Fatalf("want ErrDeckNotFound, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("no session expected")
	}
}

func TestManager_CreateWithoutNarrations(t *testing.T) {
	m := newManager(&fakeScripts{err: errors.New("db gone")})
	c, err := m.Create(context.Background(), "deck-1", "en")
	if err != nil {
		t.Fatalf("load failures should not prevent the session: %v", err)
	}
	if s := c.Snapshot(); s.Ready || s.LastError != "db gone" {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	m.Shutdown()
}

func TestManager_MaxSessions(t *testing.T) {
	m := newManager(&fakeScripts{})
	m.MaxSessions = 1
	if _, err := m.Create(context.Background(), "deck-1", "en"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Create(context.Background(), "deck-1", "en"); !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("want ErrTooManySessions, got %v", err)
	}
	m.Shutdown()
	if m.Len() != 0 {
		t.Fatalf("Shutdown should drop all sessions")
	}
}

func TestManager_ReloadDeck(t *testing.T) {
	scripts := &fakeScripts{texts: map[string][]string{}}
	m := newManager(scripts)
	defer m.Shutdown()

	c, _ := m.Create(context.Background(), "deck-1", "en")
	if c.Snapshot().Ready {
		t.Fatalf("no narrations yet")
	}

	scripts.mu.Lock()
	scripts.texts["en"] = script("en", 2)
	scripts.mu.Unlock()

	m.ReloadDeck(context.Background(), "other-deck")
	if c.Snapshot().Ready {
		t.Fatalf("other decks must not reload this session")
	}
	m.ReloadDeck(context.Background(), "deck-1")
	if !c.Snapshot().Ready {
		t.Fatalf("session should be ready after reload")
	}
}

func TestManager_Options(t *testing.T) {
	m := newManager(&fakeScripts{texts: map[string][]string{"en": script("en", 2)}})
	defer m.Shutdown()
	m.AdvanceDelay = 42
	c, _ := m.Create(context.Background(), "deck-1", "en")
	if c.opts.AdvanceDelay != 42 || c.opts.AvatarName != "Anna" || c.opts.ConnectRetryDelay != DefaultConnectRetryDelay {
		t.Fatalf("unexpected options %+v", c.opts)
	}
}
