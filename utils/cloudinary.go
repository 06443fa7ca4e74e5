package utils

import (
	"context"
	"fmt"
	"mime/multipart"
	"os"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

var cld *cloudinary.Cloudinary

// InitCloudinary initializes the Cloudinary connection and verifies it.
func InitCloudinary() error {
	var err error

	cloudName := os.Getenv("CLOUDINARY_CLOUD_NAME")
	apiKey := os.Getenv("CLOUDINARY_API_KEY")
	apiSecret := os.Getenv("CLOUDINARY_API_SECRET")

	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return fmt.Errorf("cloudinary environment variables are not set")
	}

	cld, err = cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return fmt.Errorf("cloudinary init failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = cld.Admin.Ping(ctx)
	if err != nil {
		return fmt.Errorf("cloudinary ping failed: %v", err)
	}

	LogSuccess("Cloudinary initialized")
	return nil
}

func boolPointer(b bool) *bool {
	return &b
}

func isValidImageType(filename string) bool {
	validExtensions := []string{".jpg", ".jpeg", ".png", ".webp", ".heic"}
	lowerFilename := strings.ToLower(filename)

	for _, ext := range validExtensions {
		if strings.HasSuffix(lowerFilename, ext) {
			return true
		}
	}
	return false
}

// UploadScanImage uploads a plant photo and returns its public URL.
func UploadScanImage(file *multipart.FileHeader) (string, error) {
	if !isValidImageType(file.Filename) {
		return "", fmt.Errorf("unsupported image format, use JPG, PNG, WEBP or HEIC")
	}

	// 10MB max
	if file.Size > 10*1024*1024 {
		return "", fmt.Errorf("image too large, 10MB maximum")
	}

	if cld == nil {
		if err := InitCloudinary(); err != nil {
			return "", err
		}
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("cannot open uploaded file: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	publicID := fmt.Sprintf("scan_%d", time.Now().UnixNano())

	uploadResult, err := cld.Upload.Upload(ctx, src, uploader.UploadParams{
		Folder:         "scans",
		PublicID:       publicID,
		UseFilename:    boolPointer(false),
		UniqueFilename: boolPointer(true),
		Overwrite:      boolPointer(false),
		ResourceType:   "image",
	})
	if err != nil {
		return "", fmt.Errorf("cloudinary upload failed: %v", err)
	}

	if uploadResult.SecureURL == "" {
		if uploadResult.PublicID != "" {
			cloudName := os.Getenv("CLOUDINARY_CLOUD_NAME")
			return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/%s",
				cloudName, uploadResult.PublicID), nil
		}
		return "", fmt.Errorf("empty secure URL in the Cloudinary response")
	}

	return uploadResult.SecureURL, nil
}
