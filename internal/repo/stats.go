package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-narration-backend/internal/domain"
)

// Fingerprint summarises a result set for conditional GETs. Adding or
// removing a row changes Count; editing one moves LastModified.
type Fingerprint struct {
	Count        int64
	LastModified time.Time // zero when Count is 0
}

// ETag renders f as a weak entity tag namespaced by prefix.
func (f Fingerprint) ETag(prefix string) string {
	var ts int64
	if !f.LastModified.IsZero() {
		ts = f.LastModified.UnixNano()
	}
	return fmt.Sprintf(`W/"%s:%d:%d"`, prefix, f.Count, ts)
}

// fingerprint counts the rows of q() and reads the newest value of column.
// The newest value is fetched by ORDER BY rather than MAX() because SQLite
// returns MAX over a datetime column as TEXT.
func fingerprint(q func() *gorm.DB, column string) (Fingerprint, error) {
	var fp Fingerprint
	if err := q().Count(&fp.Count).Error; err != nil || fp.Count == 0 {
		return Fingerprint{}, err
	}
	var row struct{ UpdatedAt time.Time }
	if err := q().Select(column + " AS updated_at").Order(column + " DESC").Limit(1).Scan(&row).Error; err != nil {
		return Fingerprint{}, err
	}
	fp.LastModified = row.UpdatedAt
	return fp, nil
}

// DecksFingerprint covers the whole deck list.
func DecksFingerprint(ctx context.Context, db *gorm.DB) (Fingerprint, error) {
	return fingerprint(func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.Deck{})
	}, "updated_at")
}

// ActiveNarrationsFingerprint covers the active narrations of a deck,
// optionally restricted to one language.
func ActiveNarrationsFingerprint(ctx context.Context, db *gorm.DB, deckID, language string) (Fingerprint, error) {
	return fingerprint(func() *gorm.DB {
		q := db.WithContext(ctx).
			Model(&domain.Narration{}).
			Joins("JOIN slides ON slides.id = narrations.slide_id").
			Where("slides.deck_id = ? AND narrations.is_active = ?", deckID, true)
		if language != "" {
			q = q.Where("narrations.language = ?", language)
		}
		return q
	}, "narrations.updated_at")
}
