package billing

import (
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/Wladyslaw13/ScanBotan/db"
	"github.com/Wladyslaw13/ScanBotan/models"

	"github.com/gin-gonic/gin"
)

const (
	errPromoMissing     = "Промокод не указан"
	errPromoNotFound    = "Промокод не найден"
	errPromoInactive    = "Промокод неактивен"
	errPromoExpired     = "Промокод истек"
	errPromoExhausted   = "Промокод уже использован максимальное количество раз"
	errPromoInvalid     = "Неверный промокод"
	errPromoAlreadyUsed = "Вы уже использовали промокод для этого аккаунта. Каждый промокод можно использовать только один раз."
)

// PromoEvaluation is the result of checking a code against the current
// subscription state of a user. It never mutates anything.
type PromoEvaluation struct {
	Valid      bool
	Code       string
	PercentOff int
	FinalPrice int
	Error      string
}

// EvaluatePromo normalizes and validates a promo code. userID may be empty
// for anonymous visitors; the per-account reuse check is skipped then.
func EvaluatePromo(rawCode, userID string) PromoEvaluation {
	code := strings.ToUpper(strings.TrimSpace(rawCode))
	if code == "" {
		return PromoEvaluation{Error: errPromoMissing}
	}

	var promo models.PromoCode
	if err := db.DB.First(&promo, "code = ?", code).Error; err != nil {
		return PromoEvaluation{Error: errPromoNotFound}
	}

	now := time.Now()
	switch {
	case !promo.Active:
		return PromoEvaluation{Error: errPromoInactive}
	case promo.ExpiresAt != nil && !promo.ExpiresAt.After(now):
		return PromoEvaluation{Error: errPromoExpired}
	case promo.MaxUses != nil && promo.UsedCount >= *promo.MaxUses:
		return PromoEvaluation{Error: errPromoExhausted}
	case promo.PercentOff == nil:
		return PromoEvaluation{Error: errPromoInvalid}
	}

	if userID != "" && promoAlreadyUsed(userID, code) {
		return PromoEvaluation{Error: errPromoAlreadyUsed}
	}

	percent := *promo.PercentOff
	final := int(math.Round(float64(BasePriceKopeks) * (1 - float64(percent)/100)))
	if final < 0 {
		final = 0
	}

	return PromoEvaluation{
		Valid:      true,
		Code:       promo.Code,
		PercentOff: percent,
		FinalPrice: final,
	}
}

// promoAlreadyUsed blocks a second redemption while the promo-derived period
// is still running, and permanently via the redemption ledger.
func promoAlreadyUsed(userID, code string) bool {
	var sub models.Subscription
	if err := db.DB.First(&sub, "user_id = ?", userID).Error; err == nil {
		if sub.Provider == models.ProviderPromo {
			periodValid := sub.CurrentPeriodEnd != nil && sub.CurrentPeriodEnd.After(time.Now())
			if periodValid || sub.Status == models.SubscriptionActive {
				return true
			}
		}
	}

	var redemption models.PromoRedemption
	if err := db.DB.First(&redemption, "user_id = ? AND code = ?", userID, code).Error; err == nil {
		return true
	}
	return false
}

// ValidatePromo checks a promo code for the checkout form.
// Works for anonymous visitors too; invalid codes answer 200 with valid:false.
func ValidatePromo(c *gin.Context) {
	var body struct {
		PromoCode string `json:"promoCode"`
	}
	_ = c.ShouldBindJSON(&body)

	userID, _ := currentUserID(c)

	eval := EvaluatePromo(body.PromoCode, userID)
	if !eval.Valid {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": eval.Error})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":           true,
		"discountPercent": eval.PercentOff,
		"originalPrice":   BasePriceKopeks,
		"finalPrice":      eval.FinalPrice,
	})
}
