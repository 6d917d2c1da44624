package models

import "time"

// NewsletterSubscription is keyed by email; the store rejects a second row
// for the same address with a unique violation.
type NewsletterSubscription struct {
	Base

	Email          string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name           *string    `gorm:"type:varchar(100)" json:"name,omitempty"`
	IsActive       bool       `gorm:"default:true" json:"is_active"`
	SubscribedAt   *time.Time `json:"subscribed_at,omitempty"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty"`
}

func (NewsletterSubscription) TableName() string { return "newsletter_subscriptions" }
