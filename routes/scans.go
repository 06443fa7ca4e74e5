package routes

import (
	"github.com/Wladyslaw13/ScanBotan/handlers/scans"
	"github.com/Wladyslaw13/ScanBotan/middleware"

	"github.com/gin-gonic/gin"
)

func ScansRoutes(r *gin.Engine) {
	r.POST("/analyze", middleware.JWTAuth(), scans.AnalyzeScan)

	scanRoutes := r.Group("/scans")
	scanRoutes.Use(middleware.JWTAuth())
	{
		scanRoutes.GET("", scans.GetScanHistory)
		scanRoutes.PATCH("/:id/favorite", scans.ToggleFavorite)
		scanRoutes.GET("/:id/pdf", scans.DownloadScanPDF)
	}
}
