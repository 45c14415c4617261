package presentation

import (
	"context"
	"errors"
	"testing"
)

func TestStaging_EditAndEntries(t *testing.T) {
	s := NewStaging()
	s.Edit(3, "three")
	s.Edit(1, "one")
	s.Edit(3, "three again")

	es := s.Entries()
	if len(es) != 2 || es[0].SlideID != 1 || es[1].SlideID != 3 {
		t.Fatalf("entries not ordered by slide id: %+v", es)
	}
	if txt, ok := s.Text(3); !ok || txt != "three again" {
		t.Fatalf("Text(3) = %q, %v", txt, ok)
	}
	if _, ok := s.Text(2); ok {
		t.Fatalf("slide 2 was never edited")
	}
	if s.DirtyCount() != 2 {
		t.Fatalf("DirtyCount = %d", s.DirtyCount())
	}
}

func TestStaging_CommitPartialFailure(t *testing.T) {
	s := NewStaging()
	s.Edit(1, "ok")
	s.Edit(2, "rejected")
	w := &fakeWriter{failSlide: 2}

	res, err := s.Commit(context.Background(), w, "deck-1", "fr")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(res) != 2 || w.overwrite || w.deckID != "deck-1" {
		t.Fatalf("unexpected call: res=%+v writer=%+v", res, w)
	}
	for _, it := range w.items {
		if it.Language != "fr" {
			t.Fatalf("item language = %q", it.Language)
		}
	}

	es := s.Entries()
	if es[0].Dirty || !es[0].Saved || es[0].Version != 2 {
		t.Fatalf("slide 1 should be saved: %+v", es[0])
	}
	if !es[1].Dirty || es[1].Saved || es[1].Error != "text: too long" {
		t.Fatalf("slide 2 should stay dirty with its error: %+v", es[1])
	}

	// only the failed entry is resent
	w.failSlide = 0
	if _, err := s.Commit(context.Background(), w, "deck-1", "fr"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(w.items) != 1 || w.items[0].SlideID != 2 {
		t.Fatalf("resent items = %+v", w.items)
	}
	if s.DirtyCount() != 0 {
		t.Fatalf("all entries should be saved")
	}
}

func TestStaging_EditDuringCommitStaysDirty(t *testing.T) {
	s := NewStaging()
	s.Edit(1, "first")
	w := &fakeWriter{}
	w.during = func() { s.Edit(1, "second") }

	if _, err := s.Commit(context.Background(), w, "d", "en"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	es := s.Entries()
	if !es[0].Dirty || es[0].Text != "second" {
		t.Fatalf("a newer edit must not be marked saved: %+v", es[0])
	}
}

func TestStaging_CommitErrorAndNothingToDo(t *testing.T) {
	s := NewStaging()
	w := &fakeWriter{err: errors.New("boom")}

	res, err := s.Commit(context.Background(), w, "d", "en")
	if err != nil || len(res) != 0 || w.items != nil {
		t.Fatalf("empty staging should not call the writer: %+v %v", res, err)
	}

	s.Edit(1, "x")
	if _, err := s.Commit(context.Background(), w, "d", "en"); err == nil {
		t.Fatalf("expected writer error")
	}
	if e := s.Entries()[0]; !e.Dirty || e.Error != "boom" {
		t.Fatalf("entry after failed commit: %+v", e)
	}
}

func TestStaging_DropSaved(t *testing.T) {
	s := NewStaging()
	s.Edit(1, "a")
	s.Edit(2, "b")
	w := &fakeWriter{failSlide: 2}
	_, _ = s.Commit(context.Background(), w, "d", "en")

	s.DropSaved()
	es := s.Entries()
	if len(es) != 1 || es[0].SlideID != 2 {
		t.Fatalf("only the unsaved entry should remain: %+v", es)
	}
}
