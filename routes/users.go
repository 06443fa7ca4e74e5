package routes

import (
	"github.com/Wladyslaw13/ScanBotan/handlers/users"
	"github.com/Wladyslaw13/ScanBotan/middleware"

	"github.com/gin-gonic/gin"
)

func UsersRoutes(r *gin.Engine) {
	userRoutes := r.Group("/users")
	userRoutes.Use(middleware.JWTAuth())
	{
		userRoutes.GET("/me", users.GetMe)
		userRoutes.PATCH("/me", users.UpdateMe)
	}
}
