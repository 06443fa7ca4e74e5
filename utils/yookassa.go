package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Thin client for the YooKassa v3 REST API. Requests are authenticated
// with shop credentials over Basic auth; every write carries an
// Idempotence-Key as the API requires.

var yooKassaBaseURL = "https://api.yookassa.ru/v3"

type YooKassaAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type YooKassaConfirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type YooKassaPaymentMethodData struct {
	Type string `json:"type"`
}

type YooKassaPaymentMethod struct {
	ID    string `json:"id"`
	Type  string `json:"type,omitempty"`
	Saved bool   `json:"saved,omitempty"`
}

// YooKassaPayment is the payment object shape shared by API responses and
// webhook notifications. Metadata values arrive untyped.
type YooKassaPayment struct {
	ID            string                 `json:"id"`
	Status        string                 `json:"status"`
	Amount        YooKassaAmount         `json:"amount"`
	Confirmation  *YooKassaConfirmation  `json:"confirmation,omitempty"`
	PaymentMethod *YooKassaPaymentMethod `json:"payment_method,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

type YooKassaCreatePayment struct {
	Amount            YooKassaAmount             `json:"amount"`
	Capture           bool                       `json:"capture"`
	Confirmation      *YooKassaConfirmation      `json:"confirmation,omitempty"`
	PaymentMethodData *YooKassaPaymentMethodData `json:"payment_method_data,omitempty"`
	PaymentMethodID   string                     `json:"payment_method_id,omitempty"`
	SavePaymentMethod bool                       `json:"save_payment_method,omitempty"`
	Description       string                     `json:"description,omitempty"`
	Metadata          map[string]string          `json:"metadata,omitempty"`
}

// YooKassaError carries the gateway error body for support diagnosis.
type YooKassaError struct {
	StatusCode  int
	Code        string `json:"code"`
	Description string `json:"description"`
	Parameter   string `json:"parameter"`
}

func (e *YooKassaError) Error() string {
	return fmt.Sprintf("yookassa: status=%d code=%s description=%s", e.StatusCode, e.Code, e.Description)
}

// RecurringUnavailable reports whether the shop cannot save payment methods,
// which the UI explains separately (the merchant must contact YooKassa).
func (e *YooKassaError) RecurringUnavailable() bool {
	if e.Parameter == "save_payment_method" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Description), "save_payment_method") ||
		strings.Contains(strings.ToLower(e.Description), "saving payment methods")
}

type YooKassaClient struct {
	shopID     string
	secret     string
	httpClient *http.Client
}

// NewYooKassaClient builds a client from YOOKASSA_SHOP_ID / YOOKASSA_SECRET.
func NewYooKassaClient() (*YooKassaClient, error) {
	shopID := os.Getenv("YOOKASSA_SHOP_ID")
	secret := os.Getenv("YOOKASSA_SECRET")
	if shopID == "" || secret == "" {
		return nil, fmt.Errorf("YOOKASSA_SHOP_ID and YOOKASSA_SECRET are required in environment variables")
	}
	return &YooKassaClient{
		shopID:     shopID,
		secret:     secret,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}, nil
}

func (c *YooKassaClient) do(method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("error encoding request: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, yooKassaBaseURL+path, body)
	if err != nil {
		return fmt.Errorf("error creating request: %v", err)
	}
	req.SetBasicAuth(c.shopID, c.secret)
	req.Header.Set("Content-Type", "application/json")
	if method == http.MethodPost {
		req.Header.Set("Idempotence-Key", uuid.NewString())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error making request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &YooKassaError{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, apiErr); err != nil {
			apiErr.Description = string(raw)
		}
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("error decoding response: %v", err)
		}
	}
	return nil
}

// CreatePayment creates a payment (checkout redirect or off-session charge).
func (c *YooKassaClient) CreatePayment(params YooKassaCreatePayment) (*YooKassaPayment, error) {
	var payment YooKassaPayment
	if err := c.do(http.MethodPost, "/payments", params, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetPayment fetches a payment by its external id.
func (c *YooKassaClient) GetPayment(id string) (*YooKassaPayment, error) {
	var payment YooKassaPayment
	if err := c.do(http.MethodGet, "/payments/"+id, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// DisablePaymentMethod unbinds a saved card. The gateway answers 400/404
// when the method is already inactive; callers decide how to treat that.
func (c *YooKassaClient) DisablePaymentMethod(id string) error {
	return c.do(http.MethodPost, "/payment_methods/"+id+"/disable", struct{}{}, nil)
}

// KopeksToValue formats a kopek amount the way the API expects ("99.00").
func KopeksToValue(kopeks int) string {
	return fmt.Sprintf("%d.%02d", kopeks/100, kopeks%100)
}
