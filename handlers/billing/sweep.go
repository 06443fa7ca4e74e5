package billing

import (
	"net/http"
	"time"

	"github.com/Wladyslaw13/ScanBotan/db"
	"github.com/Wladyslaw13/ScanBotan/models"
	"github.com/Wladyslaw13/ScanBotan/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// graceDays is the window after a failed renewal during which access is
// already revoked (past_due) but the subscription is not yet canceled.
const graceDays = 3

// RenewSubscriptions charges saved cards for subscriptions whose period has
// ended. Triggered by the external scheduler; idempotent and safe to re-run.
func RenewSubscriptions(c *gin.Context) {
	gw, err := getGateway()
	if err != nil {
		utils.LogError(err, "YooKassa is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ЮKassa не настроена"})
		return
	}

	var due []models.Subscription
	err = db.DB.Where("status IN ? AND payment_method_id <> '' AND current_period_end IS NOT NULL AND current_period_end <= ?",
		[]models.SubscriptionStatus{models.SubscriptionActive, models.SubscriptionPastDue},
		time.Now()).
		Find(&due).Error
	if err != nil {
		utils.LogError(err, "Failed to select subscriptions due for renewal")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка выборки подписок"})
		return
	}

	renewed, failed := 0, 0
	for i := range due {
		// each subscription is processed and committed independently,
		// one failure must not abort the batch
		if renewOne(gw, &due[i]) {
			renewed++
		} else {
			failed++
		}
	}

	utils.LogSuccess("Renewal sweep finished")
	c.JSON(http.StatusOK, gin.H{"ok": true, "renewed": renewed, "failed": failed})
}

func renewOne(gw paymentGateway, sub *models.Subscription) bool {
	payment, err := gw.CreatePayment(utils.YooKassaCreatePayment{
		Amount:          utils.YooKassaAmount{Value: utils.KopeksToValue(BasePriceKopeks), Currency: "RUB"},
		Capture:         true,
		PaymentMethodID: sub.PaymentMethodID,
		Description:     "Продление подписки",
		Metadata:        map[string]string{"userId": sub.UserID},
	})
	if err != nil || payment.Status != "succeeded" {
		if err != nil {
			utils.LogErrorWithUser(sub.UserID, err, "Renewal charge failed")
		} else {
			utils.LogErrorWithUser(sub.UserID, nil, "Renewal charge not succeeded: "+payment.Status)
		}
		// first failure demotes to past_due; repeated failures leave the
		// subscription alone until the expiry sweep picks it up
		if sub.Status == models.SubscriptionActive {
			if dbErr := db.DB.Model(sub).Update("status", models.SubscriptionPastDue).Error; dbErr != nil {
				utils.LogErrorWithUser(sub.UserID, dbErr, "Failed to demote subscription to past_due")
			}
		}
		return false
	}

	// extend from the prior boundary, not from now, so renewal time drift
	// does not shorten the paid period
	nextEnd := sub.CurrentPeriodEnd.AddDate(0, 1, 0)

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(sub).Updates(map[string]interface{}{
			"status":             models.SubscriptionActive,
			"current_period_end": nextEnd,
			"external_id":        payment.ID,
		}).Error; err != nil {
			return err
		}
		ledger := models.Payment{
			UserID:            sub.UserID,
			Provider:          "yookassa",
			ProviderPaymentID: payment.ID,
			Amount:            BasePriceKopeks,
			Currency:          "RUB",
			Status:            "succeeded",
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_payment_id"}},
			DoNothing: true,
		}).Create(&ledger).Error
	})
	if err != nil {
		utils.LogErrorWithUser(sub.UserID, err, "Failed to persist renewal")
		return false
	}

	utils.LogSuccessWithUser(sub.UserID, "Subscription renewed, payment "+payment.ID)
	return true
}

// ExpireSubscriptions cancels past_due subscriptions whose grace window has
// elapsed, finally revoking access.
func ExpireSubscriptions(c *gin.Context) {
	graceLimit := time.Now().AddDate(0, 0, -graceDays)

	res := db.DB.Model(&models.Subscription{}).
		Where("status = ? AND current_period_end IS NOT NULL AND current_period_end <= ?",
			models.SubscriptionPastDue, graceLimit).
		Update("status", models.SubscriptionCanceled)
	if res.Error != nil {
		utils.LogError(res.Error, "Expiry sweep failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка завершения подписок"})
		return
	}

	utils.LogSuccess("Expiry sweep finished")
	c.JSON(http.StatusOK, gin.H{"ok": true, "expired": res.RowsAffected})
}
