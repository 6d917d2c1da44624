package models

import "time"

// Record is a row of a named collection in the hosted store.
type Record interface {
	TableName() string
}

// Insertable is a Record created through the store with an idempotency key.
// Retried inserts that carry the same key resolve to the same row.
type Insertable interface {
	Record
	GetIdempotencyKey() string
	SetIdempotencyKey(key string)
}

// Base carries the columns every inserted collection shares.
type Base struct {
	ID             string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id,omitempty"`
	IdempotencyKey string    `gorm:"type:varchar(64);uniqueIndex" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

func (b *Base) GetIdempotencyKey() string    { return b.IdempotencyKey }
func (b *Base) SetIdempotencyKey(key string) { b.IdempotencyKey = key }

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences p, treating nil as empty.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
