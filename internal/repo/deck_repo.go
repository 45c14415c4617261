// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Deck model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a deck is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateDeck(ctx, db, deck) -> error
//     Inserts a Deck row together with its Slides.
//
//   - GetDeck(ctx, db, id) -> *domain.Deck, error
//     Fetches a single deck (without slides), or ErrNotFound.
//
//   - CountDecks(ctx, db) -> (int64, error)
//
//   - ListDecksPage(ctx, db, offset, limit) -> []domain.Deck, error
//     Returns a page of decks, newest first.
//
//   - DeleteDeck(ctx, db, id) -> error
//     Removes a deck with its slides, narrations and questions.
//
//   - DeleteDecks(ctx, db, ids) -> (int64, error)
//     Bulk variant of DeleteDeck; returns the number of decks removed.
//
// Deletes remove child rows explicitly inside one transaction so the cascade
// holds even on connections where SQLite foreign keys are off.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-narration-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateDeck inserts d and any slides attached to d.Slides. Slide IDs are
// assigned by the database and written back into d.Slides.
func CreateDeck(ctx context.Context, db *gorm.DB, d *domain.Deck) error {
	return db.WithContext(ctx).Create(d).Error
}

// GetDeck fetches a single deck by ID. If the record does not exist, it
// returns ErrNotFound.
func GetDeck(ctx context.Context, db *gorm.DB, id string) (*domain.Deck, error) {
	var d domain.Deck
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// DeckExists reports whether a deck with id exists.
func DeckExists(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Deck{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// CountDecks returns the total number of decks.
func CountDecks(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Deck{}).Count(&total).Error
	return total, err
}

// ListDecksPage returns a paginated slice of decks ordered by creation time
// descending. Use CountDecks to obtain the total for pagination metadata.
func ListDecksPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Deck, error) {
	var out []domain.Deck
	err := db.WithContext(ctx).
		Order("created_at desc").
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeleteDeck removes the deck identified by id and everything it owns.
// It returns ErrNotFound when no such deck exists.
func DeleteDeck(ctx context.Context, db *gorm.DB, id string) error {
	n, err := DeleteDecks(ctx, db, []string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDecks removes every deck in ids together with its slides, narrations
// and questions. Unknown ids are ignored.
func DeleteDecks(ctx context.Context, db *gorm.DB, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var removed int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		slideIDs := tx.Model(&domain.Slide{}).Select("id").Where("deck_id IN ?", ids)
		if err := tx.Where("slide_id IN (?)", slideIDs).Delete(&domain.Narration{}).Error; err != nil {
			return err
		}
		if err := tx.Where("deck_id IN ?", ids).Delete(&domain.Question{}).Error; err != nil {
			return err
		}
		if err := tx.Where("deck_id IN ?", ids).Delete(&domain.Slide{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&domain.Deck{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return nil
	})
	return removed, err
}

// DeckStore binds the deck and slide functions of this package to the
// method set services.DeckRepo expects.
type DeckStore struct{}

func (DeckStore) CreateDeck(ctx context.Context, db *gorm.DB, d *domain.Deck) error {
	return CreateDeck(ctx, db, d)
}

func (DeckStore) GetDeck(ctx context.Context, db *gorm.DB, id string) (*domain.Deck, error) {
	return GetDeck(ctx, db, id)
}

func (DeckStore) CountDecks(ctx context.Context, db *gorm.DB) (int64, error) {
	return CountDecks(ctx, db)
}

func (DeckStore) ListDecksPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Deck, error) {
	return ListDecksPage(ctx, db, offset, limit)
}

func (DeckStore) DeleteDecks(ctx context.Context, db *gorm.DB, ids []string) (int64, error) {
	return DeleteDecks(ctx, db, ids)
}

func (DeckStore) ListSlides(ctx context.Context, db *gorm.DB, deckID string) ([]domain.Slide, error) {
	return ListSlides(ctx, db, deckID)
}
