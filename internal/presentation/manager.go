package presentation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-narration-backend/internal/domain"
	"github.com/tbourn/go-narration-backend/internal/services"
)

// Session errors.
var (
	ErrSessionNotFound = errors.New("presentation session not found")
	ErrTooManySessions = errors.New("too many presentation sessions")
)

// DefaultMaxSessions caps concurrent sessions per process.
const DefaultMaxSessions = 100

// DeckLoader loads a deck with its ordered slides (services.DeckService).
type DeckLoader interface {
	Get(ctx context.Context, id string) (*domain.Deck, error)
}

// Manager owns the presentation sessions of this process.
type Manager struct {
	Decks DeckLoader
	Deps  Deps

	AdvanceDelay      time.Duration
	ConnectRetryDelay time.Duration
	MaxSessions       int

	mu       sync.Mutex
	sessions map[string]*Controller
}

// Create starts an idle session for deckID and loads its narrations.
func (m *Manager) Create(ctx context.Context, deckID, language string) (*Controller, error) {
	deck, err := m.Decks.Get(ctx, deckID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.sessions == nil {
		m.sessions = make(map[string]*Controller)
	}
	limit := m.MaxSessions
	if limit <= 0 {
		limit = DefaultMaxSessions
	}
	if len(m.sessions) >= limit {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	id := uuid.NewString()
	c := NewController(id, Options{
		DeckID:            deck.ID,
		AvatarName:        deck.Avatar,
		Language:          language,
		Slides:            deck.Slides,
		AdvanceDelay:      m.AdvanceDelay,
		ConnectRetryDelay: m.ConnectRetryDelay,
	}, m.Deps)
	m.sessions[id] = c
	activeSessions.Inc()
	m.mu.Unlock()

	if err := c.Reload(ctx); err != nil {
		m.Deps.Log.Warn().Err(err).Str("session_id", id).Msg("initial narration load failed")
	}
	m.Deps.Log.Info().Str("session_id", id).Str("deck_id", deck.ID).Int("slides", len(deck.Slides)).Msg("presentation session created")
	return c, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

// Remove stops and forgets the session.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	c, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		activeSessions.Dec()
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	c.Close()
	return nil
}

// Len returns the number of sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ReloadDeck refreshes the narrations of every session presenting deckID,
// e.g. after a generation run.
func (m *Manager) ReloadDeck(ctx context.Context, deckID string) {
	m.mu.Lock()
	var targets []*Controller
	for _, c := range m.sessions {
		if c.opts.DeckID == deckID {
			targets = append(targets, c)
		}
	}
	m.mu.Unlock()
	for _, c := range targets {
		if err := c.Reload(ctx); err != nil {
			m.Deps.Log.Warn().Err(err).Str("session_id", c.ID()).Msg("narration reload failed")
		}
	}
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = nil
	m.mu.Unlock()
	for range all {
		activeSessions.Dec()
	}
	for _, c := range all {
		c.Close()
	}
}

// ----------------------------------------------------------------------------
// Commands

// Command is a playback request.
type Command struct {
	Name     string `json:"command"`
	Index    *int   `json:"index,omitempty"`
	Language string `json:"language,omitempty"`
	Text     string `json:"text,omitempty"`
	SlideID  int    `json:"slideId,omitempty"`
}

// Event is an avatar event relayed by the browser.
type Event struct {
	Name      string `json:"event"`
	SpeechSeq uint64 `json:"speechSeq,omitempty"`
}

// Result reports the outcome of a command or event. Applied is false when
// the request was a no-op in the current state.
type Result struct {
	Applied  bool                    `json:"applied"`
	Reason   string                  `json:"reason,omitempty"`
	Answer   string                  `json:"answer,omitempty"`
	Results  []services.UpsertResult `json:"results,omitempty"`
	Staged   []Entry                 `json:"staged,omitempty"`
	Snapshot Snapshot                `json:"snapshot"`
}

// Do executes cmd. No-op outcomes are returned as Applied=false with a nil
// error.
func (c *Controller) Do(ctx context.Context, cmd Command) (Result, error) {
	var (
		res Result
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cmd.Name)) {
	case "connect":
		err = c.Connect()
	case "start":
		err = c.Start()
	case "next":
		err = c.Next()
	case "prev", "previous":
		err = c.Prev()
	case "goto":
		if cmd.Index == nil {
			return Result{}, &services.ValidationError{Field: "index", Message: "required for goto"}
		}
		err = c.GoTo(*cmd.Index)
	case "pause":
		err = c.Pause()
	case "resume":
		err = c.Resume()
	case "stop", "disconnect":
		err = c.Stop()
	case "language":
		err = c.SetLanguage(ctx, cmd.Language)
	case "reload":
		err = c.Reload(ctx)
	case "ask":
		res.Answer, err = c.Ask(ctx, cmd.Text)
	case "edit":
		err = c.Edit(cmd.SlideID, cmd.Text)
		res.Staged = c.Staged()
	case "commit":
		res.Results, err = c.Commit(ctx)
		res.Staged = c.Staged()
	default:
		return Result{}, ErrUnknownCommand
	}
	return c.finish(res, err)
}

// HandleEvent applies an avatar event.
func (c *Controller) HandleEvent(ev Event) (Result, error) {
	var err error
	switch strings.TrimSpace(ev.Name) {
	case "streamReady":
		err = c.StreamReady()
	case "streamDisconnected":
		err = c.StreamDisconnected()
	case "speechEnded":
		err = c.SpeechEnded(ev.SpeechSeq)
	default:
		return Result{}, ErrUnknownCommand
	}
	return c.finish(Result{}, err)
}

func (c *Controller) finish(res Result, err error) (Result, error) {
	res.Snapshot = c.Snapshot()
	if err == nil {
		res.Applied = true
		return res, nil
	}
	if IsNoop(err) {
		res.Reason = err.Error()
		return res, nil
	}
	return res, err
}
