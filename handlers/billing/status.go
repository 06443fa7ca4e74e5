package billing

import (
	"errors"
	"net/http"
	"time"

	"github.com/Wladyslaw13/ScanBotan/db"
	"github.com/Wladyslaw13/ScanBotan/models"
	"github.com/Wladyslaw13/ScanBotan/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetBillingStatus returns the subscription summary and the ten most recent
// ledger entries. A user without a row gets one lazily, defaulted to
// canceled (no access).
func GetBillingStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var sub models.Subscription
	err := db.DB.First(&sub, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		sub = models.Subscription{UserID: userID, Status: models.SubscriptionCanceled}
		if err := db.DB.Create(&sub).Error; err != nil {
			utils.LogErrorWithUser(userID, err, "Failed to create default subscription")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка получения статуса подписки"})
			return
		}
	} else if err != nil {
		utils.LogErrorWithUser(userID, err, "Failed to load subscription")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка получения статуса подписки"})
		return
	}

	var payments []models.Payment
	if err := db.DB.Where("user_id = ?", userID).Order("created_at DESC").Limit(10).Find(&payments).Error; err != nil {
		utils.LogErrorWithUser(userID, err, "Failed to load payments")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка получения платежей"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subscription": gin.H{
			"status":           sub.Status,
			"currentPeriodEnd": sub.CurrentPeriodEnd,
			"createdAt":        sub.CreatedAt,
			"updatedAt":        sub.UpdatedAt,
			"hasSavedCard":     sub.HasSavedCard(),
		},
		"payments": payments,
	})
}

// CancelSubscription disables auto-renewal. Access survives until the end
// of the already paid period.
func CancelSubscription(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	sub := models.Subscription{
		UserID:   userID,
		Status:   models.SubscriptionCanceled,
		Provider: models.ProviderYooKassa,
	}
	err := db.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":     models.SubscriptionCanceled,
			"updated_at": time.Now(),
		}),
	}).Create(&sub).Error
	if err != nil {
		utils.LogErrorWithUser(userID, err, "Failed to cancel subscription")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось отменить подписку"})
		return
	}

	utils.LogSuccessWithUser(userID, "Subscription canceled")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
