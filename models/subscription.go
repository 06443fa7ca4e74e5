package models

import (
	"time"
)

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

type SubscriptionProvider string

const (
	ProviderYooKassa SubscriptionProvider = "yookassa"
	ProviderPromo    SubscriptionProvider = "promo"
)

// Subscription is the single billing record of a user (one row per user).
// Cancellation only disables auto-renewal: access lasts until the period end.
type Subscription struct {
	ID               string               `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	UserID           string               `json:"userId" gorm:"type:uuid;uniqueIndex;not null"`
	Status           SubscriptionStatus   `json:"status" gorm:"type:varchar(20);default:'canceled'"`
	CurrentPeriodEnd *time.Time           `json:"currentPeriodEnd"`
	Provider         SubscriptionProvider `json:"provider" gorm:"type:varchar(20)"`
	PaymentMethodID  string               `json:"paymentMethodId"`
	ExternalID       string               `json:"externalId"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

// HasAccess reports whether the subscription grants paid access at the given
// moment. past_due revokes access immediately, even inside the grace window.
func (s *Subscription) HasAccess(now time.Time) bool {
	if s == nil || s.CurrentPeriodEnd == nil {
		return false
	}
	if s.Status == SubscriptionPastDue {
		return false
	}
	return s.CurrentPeriodEnd.After(now)
}

// HasSavedCard reports whether automatic renewal can charge a saved method.
func (s *Subscription) HasSavedCard() bool {
	return s != nil && s.Provider == ProviderYooKassa && s.PaymentMethodID != ""
}
