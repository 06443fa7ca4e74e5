package routes

import (
	"github.com/Wladyslaw13/ScanBotan/handlers/ping"

	"github.com/gin-gonic/gin"
)

func PingRoutes(r *gin.Engine) {
	handler := ping.New()
	r.GET("/ping", handler.HandlePing)
}
