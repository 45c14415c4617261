// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Question
// model. Questions are append-only; the only mutation is a moderator delete.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-narration-backend/internal/domain"
)

// CreateQuestion inserts a question for deckID. slideID may be nil.
// The ID is a random UUID and CreatedAt is set to UTC now.
func CreateQuestion(ctx context.Context, db *gorm.DB, deckID string, slideID *int, text string) (*domain.Question, error) {
	q := &domain.Question{
		ID:        uuid.NewString(),
		DeckID:    deckID,
		SlideID:   slideID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Omit("Slide").Create(q).Error; err != nil {
		return nil, err
	}
	return q, nil
}

// ListQuestionsByDeck returns all questions of a deck, newest first.
func ListQuestionsByDeck(ctx context.Context, db *gorm.DB, deckID string) ([]domain.Question, error) {
	out := []domain.Question{}
	err := db.WithContext(ctx).
		Where("deck_id = ?", deckID).
		Order("created_at desc").
		Order("id").
		Find(&out).Error
	return out, err
}

// DeleteQuestion removes one question. It returns ErrNotFound if nothing
// was deleted.
func DeleteQuestion(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Question{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
