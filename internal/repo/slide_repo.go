// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read helpers for the Slide model.
// Slides are written together with their deck (see CreateDeck) and removed
// only through DeleteDeck/DeleteDecks.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-narration-backend/internal/domain"
)

// ListSlides returns the slides of a deck in playback order (see
// domain.SortSlides). It returns an empty slice for unknown decks.
func ListSlides(ctx context.Context, db *gorm.DB, deckID string) ([]domain.Slide, error) {
	var out []domain.Slide
	err := db.WithContext(ctx).
		Where("deck_id = ?", deckID).
		Order("position asc").
		Order("id asc").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	domain.SortSlides(out)
	return out, nil
}

// GetSlide fetches one slide by ID, or ErrNotFound.
func GetSlide(ctx context.Context, db *gorm.DB, id int) (*domain.Slide, error) {
	var s domain.Slide
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// SlideDeckIDs maps each existing slide in ids to its owning deck id.
// Slides that do not exist are absent from the result.
func SlideDeckIDs(ctx context.Context, db *gorm.DB, ids []int) (map[int]string, error) {
	out := make(map[int]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		ID     int
		DeckID string
	}
	err := db.WithContext(ctx).
		Model(&domain.Slide{}).
		Select("id", "deck_id").
		Where("id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r.DeckID
	}
	return out, nil
}

// SlideInDeck reports whether slide id exists and belongs to deckID.
func SlideInDeck(ctx context.Context, db *gorm.DB, id int, deckID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Slide{}).
		Where("id = ? AND deck_id = ?", id, deckID).
		Count(&n).Error
	return n > 0, err
}
