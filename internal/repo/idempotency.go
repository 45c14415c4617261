package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-narration-backend/internal/domain"
)

// ErrDuplicate is returned by Remember when a live record already holds the
// (client, scope, key) slot.
var ErrDuplicate = errors.New("duplicate idempotency key")

// DefaultReplayTTL is used when an IdempotencyStore has no TTL.
const DefaultReplayTTL = 24 * time.Hour

// IdempotencyStore remembers POST results so retries can be answered
// without repeating the write.
type IdempotencyStore struct {
	DB  *gorm.DB
	TTL time.Duration
	// Now defaults to time.Now; records are stamped in UTC.
	Now func() time.Time
}

// NewIdempotencyStore returns a store keeping results for ttl.
func NewIdempotencyStore(db *gorm.DB, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{DB: db, TTL: ttl}
}

func (s *IdempotencyStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *IdempotencyStore) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultReplayTTL
}

func (s *IdempotencyStore) slot(ctx context.Context, clientID, scope, key string) *gorm.DB {
	return s.DB.WithContext(ctx).Model(&domain.Idempotency{}).
		Where("client_id = ? AND scope = ? AND key = ?", clientID, scope, key)
}

// Find returns the live record for the slot, or ErrNotFound. A blank scope
// never matches.
func (s *IdempotencyStore) Find(ctx context.Context, clientID, scope, key string) (*domain.Idempotency, error) {
	if strings.TrimSpace(scope) == "" || key == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := s.slot(ctx, clientID, scope, key).Where("expires_at > ?", s.now()).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Seen has the signature middleware.IdempotencyValidator expects. Any
// failure reads as "not seen".
func (s *IdempotencyStore) Seen(ctx context.Context, clientID, scope, key string, now time.Time) (bool, error) {
	var n int64
	err := s.slot(ctx, clientID, scope, key).Where("expires_at > ?", now).Count(&n).Error
	return n > 0, err
}

// Remember stores result for the slot. An expired record in the same slot
// is replaced; a live one wins and ErrDuplicate is returned.
func (s *IdempotencyStore) Remember(ctx context.Context, clientID, scope, key string, status int, result string) error {
	now := s.now()
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ? AND scope = ? AND key = ? AND expires_at <= ?", clientID, scope, key, now).
			Delete(&domain.Idempotency{}).Error; err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&domain.Idempotency{
			ID:        uuid.NewString(),
			ClientID:  clientID,
			Scope:     scope,
			Key:       key,
			Status:    status,
			Result:    result,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl()),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrDuplicate
		}
		return nil
	})
}

// Purge deletes expired records and returns how many were removed.
func (s *IdempotencyStore) Purge(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
