package scans

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/Wladyslaw13/ScanBotan/db"
	"github.com/Wladyslaw13/ScanBotan/handlers/billing"
	"github.com/Wladyslaw13/ScanBotan/models"
	"github.com/Wladyslaw13/ScanBotan/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// freeScanLimit is the number of successful (plant recognized) scans a user
// gets without a subscription.
const freeScanLimit = 10

// external collaborators, swappable in tests
var (
	analyzeImage = utils.AnalyzePlantImage
	uploadImage  = utils.UploadScanImage
)

func currentUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// AnalyzeScan accepts a plant photo, runs the vision analysis and stores the
// scan. Failed recognitions do not count against the free tier.
func AnalyzeScan(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Вы не авторизованы. Войдите в аккаунт, чтобы продолжить."})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Файл не найден или имеет неверный формат"})
		return
	}

	src, err := file.Open()
	if err != nil {
		utils.LogErrorWithUser(userID, err, "Cannot open uploaded scan file")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Невозможно обработать форму"})
		return
	}
	raw, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		utils.LogErrorWithUser(userID, err, "Cannot read uploaded scan file")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Невозможно обработать форму"})
		return
	}

	mime := file.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(raw))

	result, err := analyzeImage(dataURL)
	if err != nil {
		utils.LogErrorWithUser(userID, err, "Vision analysis failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось распознать ответ модели"})
		return
	}

	// free tier: only scans with a recognized plant count against the limit
	if result.PlantFound && !billing.HasAccess(userID) {
		var count int64
		if err := db.DB.Model(&models.Scan{}).Where("user_id = ? AND plant_found = ?", userID, true).Count(&count).Error; err != nil {
			utils.LogErrorWithUser(userID, err, "Failed to count free scans")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка анализа"})
			return
		}
		if count >= freeScanLimit {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "Достигнут лимит 10 бесплатных сканов с растением. Оформите подписку, чтобы продолжить."})
			return
		}
	}

	imageURL, err := uploadImage(file)
	if err != nil {
		// storage fallback: keep the scan usable by saving the data URL
		utils.LogErrorWithUser(userID, err, "Cloudinary upload failed, storing inline image")
		imageURL = dataURL
	}

	scan := models.Scan{
		UserID:     userID,
		ImageURL:   imageURL,
		PlantFound: result.PlantFound,
		Result:     *result,
	}
	if err := db.DB.Create(&scan).Error; err != nil {
		utils.LogErrorWithUser(userID, err, "Failed to save scan")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка анализа"})
		return
	}

	utils.LogSuccessWithUser(userID, "Scan analyzed")
	c.JSON(http.StatusOK, gin.H{
		"id":         scan.ID,
		"plantFound": scan.PlantFound,
		"result":     scan.Result,
	})
}

// GetScanHistory lists the recognized scans of the user, newest first.
// History is a paid feature.
func GetScanHistory(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	if !billing.HasAccess(userID) {
		c.JSON(http.StatusPaymentRequired, gin.H{"subscribed": false, "scans": []models.Scan{}})
		return
	}

	var scans []models.Scan
	if err := db.DB.Where("user_id = ? AND plant_found = ?", userID, true).
		Order("created_at DESC").Find(&scans).Error; err != nil {
		utils.LogErrorWithUser(userID, err, "Failed to load scan history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка получения истории"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscribed": true, "scans": scans})
}

// ToggleFavorite flips the favorite flag on the user's own scan.
func ToggleFavorite(c *gin.Context) {
	scanID := c.Param("id")
	if _, err := uuid.Parse(scanID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scan ID"})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var scan models.Scan
	if err := db.DB.First(&scan, "id = ?", scanID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Scan not found"})
		return
	}
	if scan.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Scan not found"})
		return
	}

	if err := db.DB.Model(&scan).Update("favorite", !scan.Favorite).Error; err != nil {
		utils.LogErrorWithUser(userID, err, "Failed to toggle favorite")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ошибка обновления"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "favorite": !scan.Favorite})
}
