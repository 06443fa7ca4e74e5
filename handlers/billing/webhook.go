package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Wladyslaw13/ScanBotan/db"
	"github.com/Wladyslaw13/ScanBotan/models"
	"github.com/Wladyslaw13/ScanBotan/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxWebhookBodyBytes = int64(65536)

// HandleWebhook processes payment gateway notifications. Delivery is
// at-least-once and possibly concurrent for the same payment id: the unique
// index on provider_payment_id is the sole dedup mechanism.
func HandleWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot read request body"})
		return
	}

	secret := os.Getenv("YOOKASSA_WEBHOOK_SECRET")
	if secret == "" {
		utils.LogError(nil, "Webhook secret is not configured")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook secret is not configured"})
		return
	}

	sig := c.GetHeader("X-Webhook-Signature")
	if !verifyWebhookSignature(payload, sig, secret) {
		utils.LogError(nil, "Webhook signature verification failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	event, payment, err := normalizeWebhook(payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch event {
	case "payment.succeeded":
		handlePaymentSucceeded(c, payment)
	case "payment.canceled":
		utils.LogInfo("Payment canceled: " + payment.ID)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	default:
		// unknown events are acknowledged so the gateway does not retry-storm
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// verifyWebhookSignature checks an HMAC-SHA256 hex signature over the raw
// body in constant time.
func verifyWebhookSignature(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

type webhookEnvelope struct {
	Event   string                 `json:"event"`
	Type    string                 `json:"type"`
	Object  *utils.YooKassaPayment `json:"object"`
	Payment *utils.YooKassaPayment `json:"payment"`
	Data    struct {
		Object *utils.YooKassaPayment `json:"object"`
	} `json:"data"`
}

// normalizeWebhook folds the accepted payload shapes (event/object,
// type/payment, type/data.object) into one canonical event record.
func normalizeWebhook(payload []byte) (string, *utils.YooKassaPayment, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", nil, fmt.Errorf("invalid JSON body")
	}

	event := env.Event
	if event == "" {
		event = env.Type
	}

	object := env.Object
	if object == nil {
		object = env.Payment
	}
	if object == nil {
		object = env.Data.Object
	}

	if event == "" || object == nil {
		return "", nil, fmt.Errorf("unrecognized webhook payload shape")
	}
	return event, object, nil
}

func metaString(m map[string]interface{}, key string) string {
	if m == nil || m[key] == nil {
		return ""
	}
	return fmt.Sprint(m[key])
}

func metaBool(m map[string]interface{}, key string) bool {
	if m == nil {
		return false
	}
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1"
	}
	return false
}

func kopeksFromValue(value string) int {
	amount, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return int(math.Round(amount * 100))
}

func handlePaymentSucceeded(c *gin.Context, p *utils.YooKassaPayment) {
	userID := metaString(p.Metadata, "userId")
	promoCode := metaString(p.Metadata, "promoCode")
	changeCard := metaBool(p.Metadata, "changeCard")

	if p.ID == "" || userID == "" {
		// not a payment this system created; ack so the gateway stops retrying
		utils.LogError(nil, "payment.succeeded without payment id or userId metadata")
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	paymentMethodID := ""
	if p.PaymentMethod != nil {
		paymentMethodID = p.PaymentMethod.ID
	}

	if changeCard {
		// card verification charge: only the saved method and status change,
		// the ledger and the paid period stay untouched
		if err := applyCardChange(userID, paymentMethodID); err != nil {
			utils.LogErrorWithUser(userID, err, "Failed to apply card change")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось обновить карту"})
			return
		}
		utils.LogSuccessWithUser(userID, "Payment method updated via card verification charge")
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	amount := kopeksFromValue(p.Amount.Value)

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		ledger := models.Payment{
			UserID:            userID,
			Provider:          "yookassa",
			ProviderPaymentID: p.ID,
			Amount:            amount,
			Currency:          "RUB",
			Status:            "succeeded",
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_payment_id"}},
			DoNothing: true,
		}).Create(&ledger)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// duplicate delivery, the whole effect was already applied
			utils.LogInfo("Payment already processed: " + p.ID)
			return nil
		}

		now := time.Now()
		periodEnd := now.AddDate(0, 1, 0)
		assignments := map[string]interface{}{
			"status":             models.SubscriptionActive,
			"provider":           models.ProviderYooKassa,
			"current_period_end": periodEnd,
			"external_id":        p.ID,
			"updated_at":         now,
		}
		if paymentMethodID != "" {
			assignments["payment_method_id"] = paymentMethodID
		}

		sub := models.Subscription{
			UserID:           userID,
			Status:           models.SubscriptionActive,
			Provider:         models.ProviderYooKassa,
			CurrentPeriodEnd: &periodEnd,
			PaymentMethodID:  paymentMethodID,
			ExternalID:       p.ID,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(assignments),
		}).Create(&sub).Error; err != nil {
			return err
		}

		if promoCode != "" {
			if err := tx.Model(&models.PromoCode{}).Where("code = ?", promoCode).
				UpdateColumn("used_count", gorm.Expr("used_count + ?", 1)).Error; err != nil {
				return err
			}
			redemption := models.PromoRedemption{UserID: userID, Code: promoCode, RedeemedAt: now}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&redemption).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		utils.LogErrorWithUser(userID, err, "Failed to process payment.succeeded")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось обработать платеж"})
		return
	}

	utils.LogSuccessWithUser(userID, "Subscription activated, payment "+p.ID)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func applyCardChange(userID, paymentMethodID string) error {
	if paymentMethodID == "" {
		return nil
	}
	now := time.Now()
	sub := models.Subscription{
		UserID:          userID,
		Status:          models.SubscriptionActive,
		Provider:        models.ProviderYooKassa,
		PaymentMethodID: paymentMethodID,
	}
	return db.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"payment_method_id": paymentMethodID,
			"status":            models.SubscriptionActive,
			"updated_at":        now,
		}),
	}).Create(&sub).Error
}
