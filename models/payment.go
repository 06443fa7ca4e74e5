package models

import (
	"time"
)

// Payment is an append-only ledger entry. ProviderPaymentID is the
// idempotency key: duplicate webhook deliveries collapse on its unique index.
type Payment struct {
	ID                string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	UserID            string    `json:"userId" gorm:"type:uuid;not null;index"`
	Provider          string    `json:"provider" gorm:"type:varchar(20);default:'yookassa'"`
	ProviderPaymentID string    `json:"providerPaymentId" gorm:"uniqueIndex;not null"`
	Amount            int       `json:"amount"` // kopeks
	Currency          string    `json:"currency" gorm:"type:varchar(3);default:'RUB'"`
	Status            string    `json:"status" gorm:"type:varchar(20)"`
	CreatedAt         time.Time `json:"createdAt"`
}
