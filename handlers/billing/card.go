package billing

import (
	"errors"
	"net/http"

	"github.com/Wladyslaw13/ScanBotan/db"
	"github.com/Wladyslaw13/ScanBotan/models"
	"github.com/Wladyslaw13/ScanBotan/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ChangeCard starts a minimal verification charge (1 ₽) that saves a new
// payment method. The webhook recognizes it by the changeCard metadata and
// updates only the saved method.
func ChangeCard(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	gw, err := getGateway()
	if err != nil {
		utils.LogError(err, "YooKassa is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ЮKassa не настроена"})
		return
	}

	payment, err := gw.CreatePayment(utils.YooKassaCreatePayment{
		Amount:            utils.YooKassaAmount{Value: "1.00", Currency: "RUB"},
		Capture:           true,
		Confirmation:      &utils.YooKassaConfirmation{Type: "redirect", ReturnURL: siteURL() + "/billing/change-card/success"},
		PaymentMethodData: &utils.YooKassaPaymentMethodData{Type: "bank_card"},
		SavePaymentMethod: true,
		Description:       "Смена карты для подписки",
		Metadata:          map[string]string{"userId": userID, "changeCard": "true"},
	})
	if err != nil {
		var apiErr *utils.YooKassaError
		if errors.As(err, &apiErr) && apiErr.RecurringUnavailable() {
			utils.LogErrorWithUser(userID, err, "Shop cannot save payment methods")
			c.JSON(http.StatusForbidden, gin.H{"error": "Магазин не поддерживает автоплатежи. Обратитесь в поддержку ЮKassa, чтобы включить сохранение карт."})
			return
		}
		utils.LogErrorWithUser(userID, err, "Card change payment creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось создать платеж для смены карты"})
		return
	}

	url := ""
	if payment.Confirmation != nil {
		url = payment.Confirmation.ConfirmationURL
	}
	if url == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось создать платеж для смены карты"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// UnbindCard disables the saved method at the gateway and clears it locally.
// A 400/404 gateway answer means the method is already inactive there, which
// must not block clearing the local state.
func UnbindCard(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var sub models.Subscription
	err := db.DB.First(&sub, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	if err != nil {
		utils.LogErrorWithUser(userID, err, "Failed to load subscription")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка получения подписки"})
		return
	}

	if sub.PaymentMethodID == "" {
		// nothing bound, just make sure auto-renewal is off
		if sub.Status != models.SubscriptionCanceled {
			if err := db.DB.Model(&sub).Update("status", models.SubscriptionCanceled).Error; err != nil {
				utils.LogErrorWithUser(userID, err, "Failed to cancel subscription")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось отвязать карту"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	gw, err := getGateway()
	if err != nil {
		utils.LogError(err, "YooKassa is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ЮKassa не настроена"})
		return
	}

	if err := gw.DisablePaymentMethod(sub.PaymentMethodID); err != nil {
		var apiErr *utils.YooKassaError
		alreadyInactive := errors.As(err, &apiErr) &&
			(apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusNotFound)
		if !alreadyInactive {
			utils.LogErrorWithUser(userID, err, "Failed to disable payment method at the gateway")
			c.JSON(http.StatusBadGateway, gin.H{"error": "Не удалось отвязать карту"})
			return
		}
	}

	if err := db.DB.Model(&sub).Updates(map[string]interface{}{
		"payment_method_id": "",
		"status":            models.SubscriptionCanceled,
	}).Error; err != nil {
		utils.LogErrorWithUser(userID, err, "Failed to clear saved payment method")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось отвязать карту"})
		return
	}

	utils.LogSuccessWithUser(userID, "Payment method unbound")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
