package routes

import (
	"github.com/Wladyslaw13/ScanBotan/handlers/billing"
	"github.com/Wladyslaw13/ScanBotan/middleware"

	"github.com/gin-gonic/gin"
)

func BillingRoutes(r *gin.Engine) {
	billingRoutes := r.Group("/billing")
	{
		// promo validation also works for anonymous visitors
		billingRoutes.POST("/validate-promo", middleware.OptionalJWTAuth(), billing.ValidatePromo)

		authed := billingRoutes.Group("")
		authed.Use(middleware.JWTAuth())
		{
			authed.POST("/create-checkout", billing.CreateCheckout)
			authed.GET("/status", billing.GetBillingStatus)
			authed.POST("/cancel", billing.CancelSubscription)
			authed.POST("/change-card", billing.ChangeCard)
			authed.POST("/unbind-card", billing.UnbindCard)
		}

		// gateway notifications, verified by signature inside the handler
		billingRoutes.POST("/webhook", billing.HandleWebhook)

		// sweeps are triggered by the external scheduler
		cron := billingRoutes.Group("")
		cron.Use(middleware.CronAuth())
		{
			cron.POST("/renew", billing.RenewSubscriptions)
			cron.POST("/expire", billing.ExpireSubscriptions)
		}
	}
}
