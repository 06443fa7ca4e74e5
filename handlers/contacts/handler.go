package contacts

import (
	"fmt"
	"net/http"
	"os"

	"github.com/Wladyslaw13/ScanBotan/db"
	"github.com/Wladyslaw13/ScanBotan/models"
	"github.com/Wladyslaw13/ScanBotan/utils"

	"github.com/gin-gonic/gin"
)

// CreateContact stores a contact-form message and notifies support by mail.
func CreateContact(c *gin.Context) {
	var input models.ContactCreate
	if !utils.ValidateRequestBody(c, &input) {
		return
	}

	contact := models.Contact{
		Email:   input.Email,
		Subject: input.Subject,
		Message: input.Message,
	}

	if err := db.DB.Create(&contact).Error; err != nil {
		utils.LogError(err, "Failed to save contact message")
		utils.SendError(c, http.StatusInternalServerError, "Error saving the message")
		return
	}

	if supportEmail := os.Getenv("SUPPORT_EMAIL"); supportEmail != "" {
		message := []byte(fmt.Sprintf(
			"Subject: [СканБотан] %s\r\n\r\nОт: %s\r\n\r\n%s\r\n",
			contact.Subject, contact.Email, contact.Message,
		))
		go utils.SendMail(supportEmail, message)
	}

	utils.LogSuccess("Contact message received")
	utils.SendSuccess(c, http.StatusCreated, "Message sent successfully", gin.H{"id": contact.ID})
}

// GetContacts lists the contact messages, newest first (admin only).
func GetContacts(c *gin.Context) {
	var contacts []models.Contact
	if err := db.DB.Order("created_at DESC").Find(&contacts).Error; err != nil {
		utils.LogError(err, "Failed to load contact messages")
		utils.SendError(c, http.StatusInternalServerError, "Error fetching the messages")
		return
	}

	utils.SendSuccess(c, http.StatusOK, "Messages fetched successfully", contacts)
}
