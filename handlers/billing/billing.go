package billing

import (
	"os"

	"github.com/Wladyslaw13/ScanBotan/utils"

	"github.com/gin-gonic/gin"
)

// BasePriceKopeks is the monthly subscription price (99 ₽).
const BasePriceKopeks = 9900

// paymentGateway is the part of the YooKassa client the handlers use.
// Tests swap the package variable for a stub.
type paymentGateway interface {
	CreatePayment(params utils.YooKassaCreatePayment) (*utils.YooKassaPayment, error)
	DisablePaymentMethod(id string) error
}

var gateway paymentGateway

func getGateway() (paymentGateway, error) {
	if gateway != nil {
		return gateway, nil
	}
	client, err := utils.NewYooKassaClient()
	if err != nil {
		return nil, err
	}
	gateway = client
	return gateway, nil
}

func currentUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func siteURL() string {
	if url := os.Getenv("SITE_URL"); url != "" {
		return url
	}
	return "http://localhost:3000"
}
