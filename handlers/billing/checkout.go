package billing

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Wladyslaw13/ScanBotan/db"
	"github.com/Wladyslaw13/ScanBotan/models"
	"github.com/Wladyslaw13/ScanBotan/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateCheckout starts a subscription purchase. A 100%-off promo activates
// the subscription immediately; anything else goes through the gateway.
// The promo is always re-evaluated server-side, the client-sent discount is
// never trusted.
func CreateCheckout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var body struct {
		PromoCode string `json:"promoCode"`
	}
	_ = c.ShouldBindJSON(&body)

	finalPrice := BasePriceKopeks
	appliedPromo := ""
	if strings.TrimSpace(body.PromoCode) != "" {
		eval := EvaluatePromo(body.PromoCode, userID)
		if eval.Valid {
			finalPrice = eval.FinalPrice
			appliedPromo = eval.Code
		} else if eval.Error == errPromoAlreadyUsed {
			c.JSON(http.StatusBadRequest, gin.H{"error": eval.Error})
			return
		}
		// other invalid codes fall through to the full price
	}

	if finalPrice == 0 {
		if err := activatePromoSubscription(userID, appliedPromo); err != nil {
			utils.LogErrorWithUser(userID, err, "Failed to activate promo subscription")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось активировать подписку"})
			return
		}
		utils.LogSuccessWithUser(userID, "Subscription activated with promo code "+appliedPromo)
		c.JSON(http.StatusOK, gin.H{"free": true})
		return
	}

	gw, err := getGateway()
	if err != nil {
		utils.LogError(err, "YooKassa is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ЮKassa не настроена"})
		return
	}

	metadata := map[string]string{"userId": userID}
	if appliedPromo != "" {
		metadata["promoCode"] = appliedPromo
	}

	payment, err := gw.CreatePayment(utils.YooKassaCreatePayment{
		Amount:            utils.YooKassaAmount{Value: utils.KopeksToValue(finalPrice), Currency: "RUB"},
		Capture:           true,
		Confirmation:      &utils.YooKassaConfirmation{Type: "redirect", ReturnURL: siteURL() + "/billing/success"},
		PaymentMethodData: &utils.YooKassaPaymentMethodData{Type: "bank_card"},
		SavePaymentMethod: true,
		Description:       "СканБотан — подписка 1 месяц",
		Metadata:          metadata,
	})
	if err != nil {
		var apiErr *utils.YooKassaError
		if errors.As(err, &apiErr) && apiErr.RecurringUnavailable() {
			utils.LogErrorWithUser(userID, err, "Shop cannot save payment methods")
			c.JSON(http.StatusForbidden, gin.H{"error": "Магазин не поддерживает автоплатежи. Обратитесь в поддержку ЮKassa, чтобы включить сохранение карт."})
			return
		}
		utils.LogErrorWithUser(userID, err, "YooKassa payment creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка создания платежа"})
		return
	}

	url := ""
	if payment.Confirmation != nil {
		url = payment.Confirmation.ConfirmationURL
		if url == "" {
			url = payment.Confirmation.ReturnURL
		}
	}
	if url == "" {
		utils.LogErrorWithUser(userID, nil, "YooKassa payment has no confirmation URL")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка создания платежа"})
		return
	}

	utils.LogSuccessWithUser(userID, "Checkout session created")
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// activatePromoSubscription applies a free activation: the period always
// resets to one month from now, it never stacks on a remaining period.
func activatePromoSubscription(userID, code string) error {
	now := time.Now()
	periodEnd := now.AddDate(0, 1, 0)

	return db.DB.Transaction(func(tx *gorm.DB) error {
		sub := models.Subscription{
			UserID:           userID,
			Status:           models.SubscriptionActive,
			Provider:         models.ProviderPromo,
			CurrentPeriodEnd: &periodEnd,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"status":             models.SubscriptionActive,
				"provider":           models.ProviderPromo,
				"current_period_end": periodEnd,
				"updated_at":         now,
			}),
		}).Create(&sub).Error; err != nil {
			return err
		}

		if code != "" {
			if err := tx.Model(&models.PromoCode{}).Where("code = ?", code).
				UpdateColumn("used_count", gorm.Expr("used_count + ?", 1)).Error; err != nil {
				return err
			}
			redemption := models.PromoRedemption{UserID: userID, Code: code, RedeemedAt: now}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&redemption).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
