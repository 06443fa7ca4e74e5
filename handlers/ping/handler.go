package ping

import (
	"github.com/Wladyslaw13/ScanBotan/utils"

	"github.com/gin-gonic/gin"
)

type Handler struct{}

func New() *Handler {
	return &Handler{}
}

// HandlePing answers pong, used as the health check.
func (h *Handler) HandlePing(c *gin.Context) {
	utils.SendSuccess(c, 200, "Ping successful", gin.H{
		"message": "pong",
	})
}
