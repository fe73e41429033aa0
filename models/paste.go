package models

import (
	"time"
)

// Paste represents a stored text paste
type Paste struct {
	ID        string     `json:"id" bson:"_id" db:"id"`
	Content   string     `json:"content" bson:"content" db:"content"`
	MaxViews  *int       `json:"max_views,omitempty" bson:"max_views,omitempty" db:"max_views"`
	ViewCount int        `json:"view_count" bson:"view_count" db:"view_count"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty" db:"expires_at"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at" db:"created_at"`
}

// IsExpired reports whether the paste is past its expiry at now.
// A paste is available during [CreatedAt, ExpiresAt).
func (p *Paste) IsExpired(now time.Time) bool {
	if p.ExpiresAt == nil {
		return false
	}
	return !now.Before(*p.ExpiresAt)
}

// IsViewLimitExceeded reports whether the stored view count has reached the limit.
func (p *Paste) IsViewLimitExceeded() bool {
	if p.MaxViews == nil {
		return false
	}
	return p.ViewCount >= *p.MaxViews
}

// ViewOverrun reports whether the view count is strictly past the limit.
// Checked against a post-increment record to detect a view that was
// committed after the limit had already been spent.
func (p *Paste) ViewOverrun() bool {
	if p.MaxViews == nil {
		return false
	}
	return p.ViewCount > *p.MaxViews
}

// IsAvailable checks if the paste may still be served at now
func (p *Paste) IsAvailable(now time.Time) bool {
	if p == nil {
		return false
	}
	return !p.IsExpired(now) && !p.IsViewLimitExceeded()
}

// RemainingViews returns nil for unlimited pastes
func (p *Paste) RemainingViews() *int {
	if p.MaxViews == nil {
		return nil
	}
	remaining := *p.MaxViews - p.ViewCount
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}
