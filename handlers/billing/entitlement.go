package billing

import (
	"time"

	"github.com/Wladyslaw13/ScanBotan/db"
	"github.com/Wladyslaw13/ScanBotan/models"
)

// HasAccess reports whether the user currently has paid access. Canceled
// subscriptions keep access until the period end; past_due never grants it.
// Every gated route (scan limit, history, PDF export) goes through here.
func HasAccess(userID string) bool {
	var sub models.Subscription
	if err := db.DB.First(&sub, "user_id = ?", userID).Error; err != nil {
		return false
	}
	return sub.HasAccess(time.Now())
}
