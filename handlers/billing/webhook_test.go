package billing

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Wladyslaw13/ScanBotan/testutils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

const webhookTestSecret = "test-webhook-secret"

func signWebhookBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookTestSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(r http.Handler, body []byte, signature string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, "/billing/webhook", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Webhook-Signature", signature)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func webhookRouter() *gin.Engine {
	r := testutils.SetupTestRouter()
	r.POST("/billing/webhook", HandleWebhook)
	return r
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	t.Setenv("YOOKASSA_WEBHOOK_SECRET", webhookTestSecret)
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	body := []byte(`{"event":"payment.succeeded","object":{"id":"pay-1"}}`)
	resp := postWebhook(webhookRouter(), body, "deadbeef")

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	// nothing may touch the database before the signature check passes
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhook_MissingSecretConfig(t *testing.T) {
	t.Setenv("YOOKASSA_WEBHOOK_SECRET", "")
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	body := []byte(`{"event":"payment.succeeded","object":{"id":"pay-1"}}`)
	resp := postWebhook(webhookRouter(), body, signWebhookBody(body))

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhook_UnrecognizedPayloadShape(t *testing.T) {
	t.Setenv("YOOKASSA_WEBHOOK_SECRET", webhookTestSecret)
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	body := []byte(`{"hello":"world"}`)
	resp := postWebhook(webhookRouter(), body, signWebhookBody(body))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhook_UnknownEventAcked(t *testing.T) {
	t.Setenv("YOOKASSA_WEBHOOK_SECRET", webhookTestSecret)
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	body := []byte(`{"event":"refund.succeeded","object":{"id":"ref-1"}}`)
	resp := postWebhook(webhookRouter(), body, signWebhookBody(body))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"ok":true`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhook_PaymentSucceeded(t *testing.T) {
	t.Setenv("YOOKASSA_WEBHOOK_SECRET", webhookTestSecret)
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "payments" (.+) ON CONFLICT \("provider_payment_id"\) DO NOTHING RETURNING "id"`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("payment-uuid"))
	mock.ExpectQuery(`INSERT INTO "subscriptions" (.+) ON CONFLICT \("user_id"\) DO UPDATE SET (.+) RETURNING "id"`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("sub-uuid"))
	mock.ExpectCommit()

	body := []byte(`{
		"event": "payment.succeeded",
		"object": {
			"id": "pay-1",
			"status": "succeeded",
			"amount": {"value": "99.00", "currency": "RUB"},
			"payment_method": {"id": "pm-1", "saved": true},
			"metadata": {"userId": "user-uuid"}
		}
	}`)
	resp := postWebhook(webhookRouter(), body, signWebhookBody(body))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"ok":true`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhook_DuplicateDeliveryAckedWithoutEffect(t *testing.T) {
	t.Setenv("YOOKASSA_WEBHOOK_SECRET", webhookTestSecret)
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	// the unique index swallows the insert, so the subscription upsert
	// never runs and the transaction commits empty
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "payments" (.+) ON CONFLICT \("provider_payment_id"\) DO NOTHING RETURNING "id"`).
		WillReturnRows(mock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	body := []byte(`{
		"event": "payment.succeeded",
		"object": {
			"id": "pay-1",
			"status": "succeeded",
			"amount": {"value": "99.00", "currency": "RUB"},
			"metadata": {"userId": "user-uuid"}
		}
	}`)
	resp := postWebhook(webhookRouter(), body, signWebhookBody(body))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhook_CardChangeOnlyUpdatesMethod(t *testing.T) {
	t.Setenv("YOOKASSA_WEBHOOK_SECRET", webhookTestSecret)
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	// no ledger entry and no period extension for the verification charge
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "subscriptions" (.+) ON CONFLICT \("user_id"\) DO UPDATE SET (.+) RETURNING "id"`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("sub-uuid"))
	mock.ExpectCommit()

	body := []byte(`{
		"event": "payment.succeeded",
		"object": {
			"id": "pay-verify-1",
			"status": "succeeded",
			"amount": {"value": "1.00", "currency": "RUB"},
			"payment_method": {"id": "pm-new", "saved": true},
			"metadata": {"userId": "user-uuid", "changeCard": "true"}
		}
	}`)
	resp := postWebhook(webhookRouter(), body, signWebhookBody(body))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhook_PromoMetadataIncrementsCounter(t *testing.T) {
	t.Setenv("YOOKASSA_WEBHOOK_SECRET", webhookTestSecret)
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "payments" (.+) ON CONFLICT \("provider_payment_id"\) DO NOTHING RETURNING "id"`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("payment-uuid"))
	mock.ExpectQuery(`INSERT INTO "subscriptions" (.+) ON CONFLICT \("user_id"\) DO UPDATE SET (.+) RETURNING "id"`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("sub-uuid"))
	mock.ExpectExec(`UPDATE "promo_codes" SET "used_count"=used_count \+ \$1 WHERE code = \$2`).
		WithArgs(1, "WELCOME50").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "promo_redemptions" (.+) RETURNING "id"`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("red-uuid"))
	mock.ExpectCommit()

	body := []byte(`{
		"event": "payment.succeeded",
		"object": {
			"id": "pay-3",
			"status": "succeeded",
			"amount": {"value": "49.50", "currency": "RUB"},
			"payment_method": {"id": "pm-1"},
			"metadata": {"userId": "user-uuid", "promoCode": "WELCOME50"}
		}
	}`)
	resp := postWebhook(webhookRouter(), body, signWebhookBody(body))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhook_AlternatePayloadShape(t *testing.T) {
	t.Setenv("YOOKASSA_WEBHOOK_SECRET", webhookTestSecret)
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "payments" (.+) ON CONFLICT \("provider_payment_id"\) DO NOTHING RETURNING "id"`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("payment-uuid"))
	mock.ExpectQuery(`INSERT INTO "subscriptions" (.+) ON CONFLICT \("user_id"\) DO UPDATE SET (.+) RETURNING "id"`).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("sub-uuid"))
	mock.ExpectCommit()

	body := []byte(`{
		"type": "payment.succeeded",
		"data": {
			"object": {
				"id": "pay-4",
				"status": "succeeded",
				"amount": {"value": "99.00", "currency": "RUB"},
				"metadata": {"userId": "user-uuid"}
			}
		}
	}`)
	resp := postWebhook(webhookRouter(), body, signWebhookBody(body))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleWebhook_ForeignPaymentAcked(t *testing.T) {
	t.Setenv("YOOKASSA_WEBHOOK_SECRET", webhookTestSecret)
	_, mock, cleanup := testutils.SetupTestDB(t)
	defer cleanup()

	// no userId metadata means the payment was not created by this system
	body := []byte(`{"event":"payment.succeeded","object":{"id":"pay-5","status":"succeeded"}}`)
	resp := postWebhook(webhookRouter(), body, signWebhookBody(body))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKopeksFromValue(t *testing.T) {
	assert.Equal(t, 9900, kopeksFromValue("99.00"))
	assert.Equal(t, 4950, kopeksFromValue("49.50"))
	assert.Equal(t, 100, kopeksFromValue("1.00"))
	assert.Equal(t, 0, kopeksFromValue("garbage"))
}
