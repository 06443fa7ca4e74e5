package billing

import (
	"io"
	"log"
	"os"
	"testing"

	"github.com/Wladyslaw13/ScanBotan/testutils"
	"github.com/Wladyslaw13/ScanBotan/utils"

	"github.com/gin-gonic/gin"
)

func TestMain(m *testing.M) {
	testutils.InitTestMain()

	log.SetOutput(io.Discard)

	exitCode := m.Run()

	log.SetOutput(os.Stdout)

	os.Exit(exitCode)
}

// stubGateway replaces the YooKassa client in tests.
type stubGateway struct {
	payment     *utils.YooKassaPayment
	createErr   error
	disableErr  error
	created     []utils.YooKassaCreatePayment
	disabledIDs []string
}

func (s *stubGateway) CreatePayment(params utils.YooKassaCreatePayment) (*utils.YooKassaPayment, error) {
	s.created = append(s.created, params)
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.payment, nil
}

func (s *stubGateway) DisablePaymentMethod(id string) error {
	s.disabledIDs = append(s.disabledIDs, id)
	return s.disableErr
}

func useGateway(t *testing.T, s paymentGateway) {
	t.Helper()
	gateway = s
	t.Cleanup(func() { gateway = nil })
}

// asUser injects the authenticated user id the JWT middleware would set.
func asUser(userID string, handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		handler(c)
	}
}

var subscriptionColumns = []string{
	"id", "user_id", "status", "current_period_end",
	"provider", "payment_method_id", "external_id", "created_at", "updated_at",
}

var promoColumns = []string{
	"id", "code", "active", "percent_off", "expires_at", "max_uses", "used_count",
}
