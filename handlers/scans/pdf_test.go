package scans

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeText(t *testing.T) {
	name := "  Фикус   Бенджамина "
	empty := "   "

	assert.Equal(t, "Фикус Бенджамина", safeText(&name, "нет"))
	assert.Equal(t, "нет", safeText(&empty, "нет"))
	assert.Equal(t, "нет", safeText(nil, "нет"))
}

func TestImageTypeFromMime(t *testing.T) {
	assert.Equal(t, "PNG", imageTypeFromMime("image/png"))
	assert.Equal(t, "JPG", imageTypeFromMime("image/jpeg"))
	assert.Equal(t, "JPG", imageTypeFromMime("image/jpg"))
	assert.Equal(t, "", imageTypeFromMime("image/webp"))
}

func TestScanImageBytes_DataURL(t *testing.T) {
	payload := []byte("fake png bytes")
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	raw, imgType := scanImageBytes(dataURL)
	assert.Equal(t, payload, raw)
	assert.Equal(t, "PNG", imgType)
}

func TestScanImageBytes_Malformed(t *testing.T) {
	raw, imgType := scanImageBytes("data:image/png;base64,%%%not-base64%%%")
	assert.Nil(t, raw)
	assert.Empty(t, imgType)

	raw, imgType = scanImageBytes("")
	assert.Nil(t, raw)
	assert.Empty(t, imgType)
}
