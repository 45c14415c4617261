package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-narration-backend/internal/domain"
)

func TestNarrationLifecycle(t *testing.T) {
	db := newTestDB(t, allModels()...)
	ctx := context.Background()
	ids := seedDeck(t, db, "D", 2)

	if _, err := GetActiveNarration(ctx, db, ids[0], "en"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty slide, got %v", err)
	}
	if v, err := MaxNarrationVersion(ctx, db, ids[0], "en"); err != nil || v != 0 {
		t.Fatalf("MaxNarrationVersion on empty = %d, %v", v, err)
	}

	v1 := &domain.Narration{SlideID: ids[0], Language: "en", Text: "one", IsActive: true, Version: 1, Status: "ready"}
	if err := InsertNarration(ctx, db, v1); err != nil {
		t.Fatalf("InsertNarration v1: %v", err)
	}
	n, err := DeactivateNarrations(ctx, db, ids[0], "en")
	if err != nil || n != 1 {
		t.Fatalf("DeactivateNarrations = %d, %v", n, err)
	}
	v2 := &domain.Narration{SlideID: ids[0], Language: "en", Text: "two", IsActive: true, Version: 2, Status: "ready"}
	if err := InsertNarration(ctx, db, v2); err != nil {
		t.Fatalf("InsertNarration v2: %v", err)
	}

	active, err := GetActiveNarration(ctx, db, ids[0], "en")
	if err != nil || active.ID != v2.ID {
		t.Fatalf("active = %+v, %v", active, err)
	}
	if v, _ := MaxNarrationVersion(ctx, db, ids[0], "en"); v != 2 {
		t.Fatalf("max version = %d; want 2", v)
	}

	if err := UpdateNarrationText(ctx, db, v2.ID, "two!", 3, "manual"); err != nil {
		t.Fatalf("UpdateNarrationText: %v", err)
	}
	got, _ := GetNarration(ctx, db, v2.ID)
	if got.Text != "two!" || got.Version != 3 || got.Model != "manual" || !got.IsActive {
		t.Fatalf("unexpected after update: %+v", got)
	}
	if err := UpdateNarrationText(ctx, db, 9999, "x", 1, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing row, got %v", err)
	}

	hist, err := ListNarrationVersions(ctx, db, ids[0], "en")
	if err != nil || len(hist) != 2 || hist[0].Version != 3 || hist[1].Version != 1 {
		t.Fatalf("unexpected history: %+v %v", hist, err)
	}

	// Revert to v1.
	if _, err := DeactivateNarrations(ctx, db, ids[0], "en"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := SetNarrationActive(ctx, db, v1.ID); err != nil {
		t.Fatalf("SetNarrationActive: %v", err)
	}
	active, _ = GetActiveNarration(ctx, db, ids[0], "en")
	if active.ID != v1.ID {
		t.Fatalf("expected v1 active after revert, got %+v", active)
	}
	if err := SetNarrationActive(ctx, db, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListActiveNarrations_OrderingAndFilters(t *testing.T) {
	db := newTestDB(t, allModels()...)
	ctx := context.Background()
	a := seedDeck(t, db, "A", 3)
	b := seedDeck(t, db, "B", 1)

	seed := []domain.Narration{
		{SlideID: a[2], Language: "en", Text: "3", IsActive: true, Version: 1, Status: "ready"},
		{SlideID: a[0], Language: "en", Text: "1", IsActive: true, Version: 4, Status: "ready"},
		{SlideID: a[0], Language: "en", Text: "1-old", IsActive: false, Version: 3, Status: "ready"},
		{SlideID: a[0], Language: "es", Text: "1-es", IsActive: true, Version: 1, Status: "ready"},
		{SlideID: b[0], Language: "en", Text: "other", IsActive: true, Version: 1, Status: "ready"},
	}
	for i := range seed {
		if err := InsertNarration(ctx, db, &seed[i]); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}

	en, err := ListActiveNarrations(ctx, db, "A", "en", false)
	if err != nil {
		t.Fatalf("ListActiveNarrations: %v", err)
	}
	if len(en) != 2 || en[0].SlideID != a[0] || en[1].SlideID != a[2] {
		t.Fatalf("unexpected en list: %+v", en)
	}
	if en[0].Slide != nil {
		t.Fatalf("slide should not be preloaded")
	}

	all, err := ListActiveNarrations(ctx, db, "A", "", true)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 active rows, got %d %v", len(all), err)
	}
	if all[0].Slide == nil || all[0].Slide.DeckID != "A" {
		t.Fatalf("expected preloaded slide, got %+v", all[0].Slide)
	}

	none, err := ListActiveNarrations(ctx, db, "missing", "en", false)
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v %v", none, err)
	}
}
