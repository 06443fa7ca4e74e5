package utils

import (
	"os"

	"net/smtp"
)

// SendMail sends a raw RFC 822 message through the configured SMTP relay.
func SendMail(email string, message []byte) {
	from := os.Getenv("SMTP_FROM")
	password := os.Getenv("SMTP_PASSWORD")
	smtpHost := os.Getenv("SMTP_HOST")
	smtpPort := os.Getenv("SMTP_PORT")
	if smtpHost == "" {
		smtpHost = "smtp.gmail.com"
	}
	if smtpPort == "" {
		smtpPort = "587"
	}

	auth := smtp.PlainAuth("", from, password, smtpHost)

	err := smtp.SendMail(smtpHost+":"+smtpPort, auth, from, []string{email}, message)
	if err != nil {
		LogError(err, "Failed to send mail")
		return
	}

	LogSuccess("Mail sent to " + email)
}
