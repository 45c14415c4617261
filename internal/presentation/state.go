// Package presentation implements the playback state machine that drives an
// avatar through a deck: slide index, pause and resume, questions that
// interrupt the narration, and auto-advance when speech ends.
//
// Every mutation of a Controller goes through its mutex. Delayed work
// (auto-advance, connect retry) is scheduled on a Clock and re-enters the
// controller with a generation token, so a timer that lost a race against a
// manual action does nothing.
package presentation

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-narration-backend/internal/avatar"
)

// State is a playback state.
type State string

// Playback states.
const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateSpeaking     State = "speaking"
	StatePaused       State = "paused"
	StateAnswering    State = "answering_question"
	StateDisconnected State = "disconnected"
)

// Presenting reports whether the deck is being presented.
func (s State) Presenting() bool {
	return s == StateSpeaking || s == StatePaused || s == StateAnswering
}

// Live reports whether an avatar connection is expected in this state.
func (s State) Live() bool {
	return s == StateConnected || s.Presenting()
}

// Defaults for Options.
const (
	DefaultAdvanceDelay      = 1500 * time.Millisecond
	DefaultConnectRetryDelay = 2 * time.Second
)

// Apology is spoken when a question cannot be answered.
const Apology = "Sorry, I encountered an error while trying to answer your question. Let's continue with the lecture."

// Errors returned by controller operations.
var (
	ErrNotReady       = errors.New("narrations are not loaded for every slide")
	ErrConnectFailed  = errors.New("avatar connection failed")
	ErrEmptyQuestion  = errors.New("question is empty")
	ErrUnknownCommand = errors.New("unknown command")
	ErrClosed         = errors.New("presentation closed")

	// No-op outcomes; reported as applied=false.
	ErrOutOfRange   = errors.New("slide index out of range")
	ErrStaleEvent   = errors.New("stale speech event")
	ErrSameLanguage = errors.New("language unchanged")
)

// StateError reports an operation that is not valid in the current state.
// It never changes state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s not allowed while %s", e.Op, e.State)
}

// IsNoop reports whether err means "nothing happened" rather than a failure.
func IsNoop(err error) bool {
	var se *StateError
	return errors.As(err, &se) ||
		errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrStaleEvent) ||
		errors.Is(err, ErrSameLanguage)
}

// Snapshot is the externally visible state of a controller.
type Snapshot struct {
	SessionID  string          `json:"sessionId"`
	DeckID     string          `json:"deckId"`
	Language   string          `json:"language"`
	State      State           `json:"state"`
	Presenting bool            `json:"presenting"`
	Paused     bool            `json:"paused"`
	Index      int             `json:"slideIndex"`
	SlideID    int             `json:"slideId,omitempty"`
	SlideCount int             `json:"slideCount"`
	Ready      bool            `json:"ready"`
	Narration  string          `json:"narration,omitempty"`
	SpeechSeq  uint64          `json:"speechSeq"`
	Status     string          `json:"status,omitempty"`
	LastError  string          `json:"lastError,omitempty"`
	Avatar     *avatar.Session `json:"avatar,omitempty"`
	Dirty      int             `json:"dirty"`
	Seq        uint64          `json:"seq"`
}

var (
	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presentation_transitions_total",
			Help: "Total number of presentation state transitions.",
		},
		[]string{"from", "to"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "presentation_sessions_active",
			Help: "Number of live presentation sessions.",
		},
	)
)

func init() {
	prometheus.MustRegister(transitions, activeSessions)
}
