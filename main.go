package main

import (
	"log"
	"os"

	"github.com/Wladyslaw13/ScanBotan/db"
	"github.com/Wladyslaw13/ScanBotan/routes"
	"github.com/Wladyslaw13/ScanBotan/utils"

	"github.com/gin-gonic/gin"
)

func main() {

	gin.SetMode(gin.ReleaseMode)

	db.InitDB()

	if err := utils.InitCloudinary(); err != nil {
		log.Printf("Warning: Cloudinary initialization failed: %v", err)
		log.Println("Scan image upload will fall back to inline storage.")
	}

	r := routes.SetupRouter()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Error starting the server:", err)
	}
}
