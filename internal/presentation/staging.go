package presentation

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tbourn/go-narration-backend/internal/services"
)

// NarrationWriter persists narration batches (services.NarrationService).
type NarrationWriter interface {
	UpsertBatch(ctx context.Context, items []services.NarrationItem, overwrite bool, deckID string) ([]services.UpsertResult, error)
}

// Entry is a locally edited narration.
type Entry struct {
	SlideID int    `json:"slideId"`
	Text    string `json:"text"`
	Dirty   bool   `json:"dirty"`
	Saved   bool   `json:"saved"`
	Version int    `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Staging holds unsaved narration edits for one language, keyed by slide id.
// Entries overlay the stored script during playback until committed.
type Staging struct {
	mu      sync.Mutex
	entries map[int]*Entry
}

// NewStaging returns an empty staging area.
func NewStaging() *Staging {
	return &Staging{entries: make(map[int]*Entry)}
}

// Edit stages text for slideID and marks it dirty.
func (s *Staging) Edit(slideID int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[slideID]
	if !ok {
		e = &Entry{SlideID: slideID}
		s.entries[slideID] = e
	}
	e.Text = text
	e.Dirty = true
	e.Saved = false
	e.Error = ""
}

// Text returns the staged text for slideID.
func (s *Staging) Text(slideID int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[slideID]
	if !ok {
		return "", false
	}
	return e.Text, true
}

// Entries returns a copy of all entries ordered by slide id.
func (s *Staging) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlideID < out[j].SlideID })
	return out
}

// DirtyCount returns the number of unsaved entries.
func (s *Staging) DirtyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.Dirty {
			n++
		}
	}
	return n
}

// DropSaved forgets entries that are already stored, so a reloaded script
// is not masked by them.
func (s *Staging) DropSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if !e.Dirty {
			delete(s.entries, id)
		}
	}
}

// Commit writes every dirty entry with overwrite=false. Entries whose item
// succeeded become saved unless they were edited again meanwhile; failed
// entries stay dirty and carry the error.
func (s *Staging) Commit(ctx context.Context, w NarrationWriter, deckID, language string) ([]services.UpsertResult, error) {
	s.mu.Lock()
	items := make([]services.NarrationItem, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Dirty {
			items = append(items, services.NarrationItem{SlideID: e.SlideID, Text: e.Text, Language: language})
		}
	}
	s.mu.Unlock()

	if len(items) == 0 {
		return []services.UpsertResult{}, nil
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SlideID < items[j].SlideID })
	sent := make([]string, len(items))
	for i, it := range items {
		sent[i] = it.Text
	}

	res, err := w.UpsertBatch(ctx, items, false, deckID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		for _, it := range items {
			if e, ok := s.entries[it.SlideID]; ok && e.Dirty {
				e.Error = err.Error()
			}
		}
		return nil, err
	}
	for i, r := range res {
		if i >= len(items) {
			break
		}
		e, ok := s.entries[items[i].SlideID]
		if !ok {
			continue
		}
		if r.Status != services.ResultOK {
			e.Error = strings.TrimSpace(r.Error)
			continue
		}
		if e.Text != sent[i] {
			continue
		}
		e.Dirty = false
		e.Saved = true
		e.Version = r.Version
		e.Error = ""
	}
	return res, nil
}
