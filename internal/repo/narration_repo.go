// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Narration
// model.
//
// The functions are building blocks for the single-active-row protocol
// implemented by services.NarrationService: callers run
// DeactivateNarrations + InsertNarration (or UpdateNarrationText) inside one
// transaction per (slide, language). Nothing here deletes narration rows.
//
// Functions:
//
//   - ListActiveNarrations(ctx, db, deckID, language, withSlide) -> []domain.Narration, error
//     Active rows for every slide of a deck, ordered slide_id asc, version desc.
//
//   - GetActiveNarration(ctx, db, slideID, language) -> *domain.Narration, error
//
//   - MaxNarrationVersion(ctx, db, slideID, language) -> int, error
//
//   - DeactivateNarrations(ctx, db, slideID, language) -> int64, error
//
//   - InsertNarration(ctx, db, n) -> error
//
//   - UpdateNarrationText(ctx, db, id, text, version, model) -> error
//
//   - ListNarrationVersions(ctx, db, slideID, language) -> []domain.Narration, error
//
//   - GetNarration(ctx, db, id) -> *domain.Narration, error
//
//   - SetNarrationActive(ctx, db, id) -> error
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-narration-backend/internal/domain"
)

// ListActiveNarrations returns active narrations for all slides of deckID.
// An empty language matches every language. With withSlide the owning slide
// is preloaded into Narration.Slide.
func ListActiveNarrations(ctx context.Context, db *gorm.DB, deckID, language string, withSlide bool) ([]domain.Narration, error) {
	q := db.WithContext(ctx).
		Model(&domain.Narration{}).
		Joins("JOIN slides ON slides.id = narrations.slide_id").
		Where("slides.deck_id = ? AND narrations.is_active = ?", deckID, true)
	if language != "" {
		q = q.Where("narrations.language = ?", language)
	}
	if withSlide {
		q = q.Preload("Slide")
	}
	out := []domain.Narration{}
	err := q.
		Order("narrations.slide_id asc").
		Order("narrations.version desc").
		Find(&out).Error
	return out, err
}

// GetActiveNarration returns the active row for (slideID, language), or
// ErrNotFound.
func GetActiveNarration(ctx context.Context, db *gorm.DB, slideID int, language string) (*domain.Narration, error) {
	var n domain.Narration
	err := db.WithContext(ctx).
		Where("slide_id = ? AND language = ? AND is_active = ?", slideID, language, true).
		First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// MaxNarrationVersion returns the highest version stored for (slideID,
// language) across active and inactive rows, or 0 when there are none.
func MaxNarrationVersion(ctx context.Context, db *gorm.DB, slideID int, language string) (int, error) {
	var row struct{ V int }
	err := db.WithContext(ctx).
		Model(&domain.Narration{}).
		Select("COALESCE(MAX(version), 0) AS v").
		Where("slide_id = ? AND language = ?", slideID, language).
		Scan(&row).Error
	return row.V, err
}

// DeactivateNarrations clears is_active on every active row of (slideID,
// language) and returns how many rows changed.
func DeactivateNarrations(ctx context.Context, db *gorm.DB, slideID int, language string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Narration{}).
		Where("slide_id = ? AND language = ? AND is_active = ?", slideID, language, true).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// InsertNarration persists n. The ID is assigned by the database.
func InsertNarration(ctx context.Context, db *gorm.DB, n *domain.Narration) error {
	return db.WithContext(ctx).Omit("Slide").Create(n).Error
}

// UpdateNarrationText rewrites text, version and model of row id in place.
// It returns ErrNotFound if the row does not exist.
func UpdateNarrationText(ctx context.Context, db *gorm.DB, id int, text string, version int, model string) error {
	res := db.WithContext(ctx).
		Model(&domain.Narration{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"text":       text,
			"version":    version,
			"model":      model,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListNarrationVersions returns every row of (slideID, language), newest
// version first.
func ListNarrationVersions(ctx context.Context, db *gorm.DB, slideID int, language string) ([]domain.Narration, error) {
	out := []domain.Narration{}
	err := db.WithContext(ctx).
		Where("slide_id = ? AND language = ?", slideID, language).
		Order("version desc").
		Order("id desc").
		Find(&out).Error
	return out, err
}

// GetNarration fetches a narration row by ID, or ErrNotFound.
func GetNarration(ctx context.Context, db *gorm.DB, id int) (*domain.Narration, error) {
	var n domain.Narration
	if err := db.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// SetNarrationActive marks row id active. Callers must deactivate the
// current active row of the same (slide, language) first.
func SetNarrationActive(ctx context.Context, db *gorm.DB, id int) error {
	res := db.WithContext(ctx).
		Model(&domain.Narration{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
