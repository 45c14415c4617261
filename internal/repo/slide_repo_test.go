package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-narration-backend/internal/domain"
)

func TestListSlides_OrderedByAltNumber(t *testing.T) {
	db := newTestDB(t, allModels()...)
	now := time.Now().UTC()
	d := &domain.Deck{ID: "d", Title: "T", Avatar: "a", CreatedAt: now, UpdatedAt: now, Slides: []domain.Slide{
		{Position: 0, Alt: "T - Slide 3"},
		{Position: 1, Alt: "T - Slide 1"},
		{Position: 2, Alt: "T - Slide 2"},
	}}
	if err := CreateDeck(context.Background(), db, d); err != nil {
		t.Fatalf("CreateDeck: %v", err)
	}

	got, err := ListSlides(context.Background(), db, "d")
	if err != nil {
		t.Fatalf("ListSlides: %v", err)
	}
	want := []string{"T - Slide 1", "T - Slide 2", "T - Slide 3"}
	for i := range want {
		if got[i].Alt != want[i] {
			t.Fatalf("order[%d] = %q; want %q", i, got[i].Alt, want[i])
		}
	}

	empty, err := ListSlides(context.Background(), db, "missing")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list for unknown deck, got %v %v", empty, err)
	}
}

func TestGetSlide_AndOwnership(t *testing.T) {
	db := newTestDB(t, allModels()...)
	a := seedDeck(t, db, "A", 1)
	b := seedDeck(t, db, "B", 1)

	s, err := GetSlide(context.Background(), db, a[0])
	if err != nil || s.DeckID != "A" {
		t.Fatalf("GetSlide = %+v, %v", s, err)
	}
	if _, err := GetSlide(context.Background(), db, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	owners, err := SlideDeckIDs(context.Background(), db, []int{a[0], b[0], 9999})
	if err != nil {
		t.Fatalf("SlideDeckIDs: %v", err)
	}
	if owners[a[0]] != "A" || owners[b[0]] != "B" {
		t.Fatalf("unexpected owners: %v", owners)
	}
	if _, ok := owners[9999]; ok {
		t.Fatalf("missing slide must be absent")
	}

	in, _ := SlideInDeck(context.Background(), db, a[0], "A")
	out, _ := SlideInDeck(context.Background(), db, a[0], "B")
	if !in || out {
		t.Fatalf("SlideInDeck mismatch: in=%v out=%v", in, out)
	}
}
