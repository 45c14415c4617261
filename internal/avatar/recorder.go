package avatar

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrConnectRefused is returned by Recorder.Connect while FailConnects > 0.
var ErrConnectRefused = errors.New("avatar: connect refused")

// Recorder is an in-memory avatar that records every call. It is used when
// no HeyGen key is configured and in tests.
type Recorder struct {
	mu sync.Mutex

	// FailConnects makes the next N Connect calls fail.
	FailConnects int
	// SpeakErr is returned by Speak when set.
	SpeakErr error

	Voices map[string]string

	seq        int
	connects   []Options
	spoken     []string
	interrupts int
	stopped    []string
	live       map[string]bool
}

// Connect opens a fake session.
func (r *Recorder) Connect(ctx context.Context, opts Options) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects = append(r.connects, opts)
	if r.FailConnects > 0 {
		r.FailConnects--
		return Session{}, ErrConnectRefused
	}
	r.seq++
	id := fmt.Sprintf("rec-%d", r.seq)
	if r.live == nil {
		r.live = make(map[string]bool)
	}
	r.live[id] = true
	voice, lang := Voice(r.Voices, opts.Language)
	return Session{ID: id, Language: lang, VoiceID: voice}, nil
}

// Speak records text.
func (r *Recorder) Speak(_ context.Context, sessionID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.live[sessionID] {
		return ErrUnknownSession
	}
	if r.SpeakErr != nil {
		return r.SpeakErr
	}
	r.spoken = append(r.spoken, text)
	return nil
}

// Interrupt counts interrupts.
func (r *Recorder) Interrupt(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.live[sessionID] {
		return ErrUnknownSession
	}
	r.interrupts++
	return nil
}

// Disconnect closes the fake session.
func (r *Recorder) Disconnect(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.live[sessionID] {
		return ErrUnknownSession
	}
	delete(r.live, sessionID)
	r.stopped = append(r.stopped, sessionID)
	return nil
}

// Spoken returns a copy of every text spoken so far.
func (r *Recorder) Spoken() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.spoken...)
}

// Connects returns a copy of the options of every Connect call.
func (r *Recorder) Connects() []Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Options(nil), r.connects...)
}

// Interrupts returns the number of Interrupt calls.
func (r *Recorder) Interrupts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interrupts
}

// Stopped returns the ids of disconnected sessions.
func (r *Recorder) Stopped() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.stopped...)
}
