package routes

import (
	"github.com/Wladyslaw13/ScanBotan/handlers/contacts"
	"github.com/Wladyslaw13/ScanBotan/middleware"

	"github.com/gin-gonic/gin"
)

func ContactsRoutes(r *gin.Engine) {
	r.POST("/contact", contacts.CreateContact)
	r.GET("/contact", middleware.AdminAuth(), contacts.GetContacts)
}
