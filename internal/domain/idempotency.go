package domain

import "time"

// Idempotency is a remembered POST result. A retry carrying the same
// (client, scope, key) within the TTL gets Result back instead of running
// the write again. Result holds whatever the route needs to rebuild its
// response: a deck id for deck creation, the JSON upsert report for
// narration batches.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey" json:"id"`
	ClientID  string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_client_scope_key,priority:1" json:"client_id"`
	Scope     string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_client_scope_key,priority:2" json:"scope"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_client_scope_key,priority:3" json:"key"`
	Status    int       `gorm:"type:INTEGER NOT NULL" json:"status"`
	Result    string    `gorm:"type:TEXT NOT NULL" json:"result"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// Live reports whether the record may still be replayed at now.
func (r Idempotency) Live(now time.Time) bool {
	return now.Before(r.ExpiresAt)
}
