package models

import (
	"time"
)

// PromoCode codes are stored upper-case; lookups normalize before matching.
type PromoCode struct {
	ID         string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Code       string     `json:"code" gorm:"uniqueIndex;not null"`
	Active     bool       `json:"active" gorm:"default:true"`
	PercentOff *int       `json:"percentOff"`
	ExpiresAt  *time.Time `json:"expiresAt"`
	MaxUses    *int       `json:"maxUses"`
	UsedCount  int        `json:"usedCount" gorm:"default:0"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Redeemable reports whether the code itself can still be applied.
// Per-user reuse is checked separately against redemptions.
func (p *PromoCode) Redeemable(now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
		return false
	}
	if p.MaxUses != nil && p.UsedCount >= *p.MaxUses {
		return false
	}
	return true
}

// PromoRedemption records one successful redemption per user and code,
// so a code cannot be reused after the promo period lapses.
type PromoRedemption struct {
	ID         string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	UserID     string    `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_promo_redemptions_user_code"`
	Code       string    `json:"code" gorm:"not null;uniqueIndex:idx_promo_redemptions_user_code"`
	RedeemedAt time.Time `json:"redeemedAt" gorm:"default:CURRENT_TIMESTAMP"`
}
