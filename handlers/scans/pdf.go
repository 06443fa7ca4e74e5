package scans

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Wladyslaw13/ScanBotan/db"
	"github.com/Wladyslaw13/ScanBotan/handlers/billing"
	"github.com/Wladyslaw13/ScanBotan/models"
	"github.com/Wladyslaw13/ScanBotan/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
)

// The report is rendered with a Cyrillic-capable font fetched once per
// process and memoized; the cache is only invalidated by a restart.
const reportFontURL = "https://github.com/googlefonts/noto-fonts/raw/main/hinted/ttf/NotoSans/NotoSans-Regular.ttf"

var (
	fontMu    sync.Mutex
	fontBytes []byte
)

func getFontBytes() ([]byte, error) {
	fontMu.Lock()
	defer fontMu.Unlock()

	if fontBytes != nil {
		return fontBytes, nil
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(reportFontURL)
	if err != nil {
		return nil, fmt.Errorf("error fetching report font: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error fetching report font: status=%d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading report font: %v", err)
	}
	fontBytes = raw
	return fontBytes, nil
}

func safeText(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	s := strings.Join(strings.Fields(*value), " ")
	if s == "" {
		return fallback
	}
	return s
}

// scanImageBytes resolves the stored image (data URL or remote URL) to raw
// bytes plus a gofpdf image type.
func scanImageBytes(imageURL string) ([]byte, string) {
	url := strings.TrimSpace(imageURL)
	if url == "" {
		return nil, ""
	}

	if strings.HasPrefix(url, "data:") {
		rest := strings.TrimPrefix(url, "data:")
		parts := strings.SplitN(rest, ";base64,", 2)
		if len(parts) != 2 {
			return nil, ""
		}
		raw, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			return nil, ""
		}
		return raw, imageTypeFromMime(parts[0])
	}

	client := &http.Client{Timeout: 20 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, ""
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ""
	}
	mime := strings.SplitN(resp.Header.Get("Content-Type"), ";", 2)[0]
	return raw, imageTypeFromMime(mime)
}

func imageTypeFromMime(mime string) string {
	switch mime {
	case "image/png":
		return "PNG"
	case "image/jpeg", "image/jpg":
		return "JPG"
	}
	return ""
}

// DownloadScanPDF renders a one-scan care report. PDF export is a paid
// feature.
func DownloadScanPDF(c *gin.Context) {
	scanID := c.Param("id")
	if _, err := uuid.Parse(scanID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Scan not found"})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var scan models.Scan
	if err := db.DB.First(&scan, "id = ?", scanID).Error; err != nil || scan.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Scan not found"})
		return
	}

	if !billing.HasAccess(userID) {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Для экспорта в PDF нужна подписка"})
		return
	}

	font, err := getFontBytes()
	if err != nil {
		utils.LogErrorWithUser(userID, err, "Failed to load report font")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сформировать PDF"})
		return
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddUTF8FontFromBytes("NotoSans", "", font)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pageWidth, _ := pdf.GetPageSize()
	contentWidth := pageWidth - 30

	pdf.SetFont("NotoSans", "", 20)
	pdf.SetTextColor(26, 140, 87)
	pdf.MultiCell(contentWidth, 10, safeText(scan.Result.PlantName, "Растение не определено"), "", "L", false)
	pdf.Ln(2)

	pdf.SetFont("NotoSans", "", 10)
	pdf.SetTextColor(92, 100, 115)
	pdf.MultiCell(contentWidth, 5, "Отчёт СканБотан от "+scan.CreatedAt.Format("02.01.2006"), "", "L", false)
	pdf.Ln(4)

	if raw, imgType := scanImageBytes(scan.ImageURL); raw != nil && imgType != "" {
		opts := gofpdf.ImageOptions{ImageType: imgType, ReadDpi: true}
		pdf.RegisterImageOptionsReader("scan", opts, bytes.NewReader(raw))
		pdf.ImageOptions("scan", 15, pdf.GetY(), 80, 0, true, opts, 0, "")
		pdf.Ln(4)
	}

	pdf.SetTextColor(33, 37, 41)
	pdf.SetFont("NotoSans", "", 13)
	pdf.MultiCell(contentWidth, 7, "Состояние", "", "L", false)
	pdf.SetFont("NotoSans", "", 11)
	pdf.MultiCell(contentWidth, 6, safeText(scan.Result.HealthCondition, "—"), "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("NotoSans", "", 13)
	pdf.MultiCell(contentWidth, 7, "Рекомендации по уходу", "", "L", false)
	pdf.SetFont("NotoSans", "", 11)
	if len(scan.Result.Recommendations) == 0 {
		pdf.MultiCell(contentWidth, 6, "—", "", "L", false)
	}
	for _, rec := range scan.Result.Recommendations {
		pdf.MultiCell(contentWidth, 6, "• "+rec, "", "L", false)
		pdf.Ln(1)
	}

	if scan.Result.Reason != nil && *scan.Result.Reason != "" {
		pdf.Ln(3)
		pdf.SetFont("NotoSans", "", 10)
		pdf.SetTextColor(92, 100, 115)
		pdf.MultiCell(contentWidth, 5, safeText(scan.Result.Reason, ""), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		utils.LogErrorWithUser(userID, err, "PDF rendering failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось сформировать PDF"})
		return
	}

	utils.LogSuccessWithUser(userID, "Scan report exported to PDF")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=scan-%s.pdf", scan.ID))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}
