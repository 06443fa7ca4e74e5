package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Wladyslaw13/ScanBotan/models"
	"github.com/Wladyslaw13/ScanBotan/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func protectedRouter(mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/protected", mw, func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	return r
}

func TestJWTAuth_ValidToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-jwt-secret")

	token, err := utils.GenerateJWT(models.User{ID: "user-uuid", Role: models.UserRole}, 1)
	assert.NoError(t, err)

	r := protectedRouter(JWTAuth())

	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "user-uuid")
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-jwt-secret")

	r := protectedRouter(JWTAuth())

	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestJWTAuth_BadToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-jwt-secret")

	r := protectedRouter(JWTAuth())

	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestOptionalJWTAuth_AnonymousPasses(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-jwt-secret")

	r := protectedRouter(OptionalJWTAuth())

	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	// the request goes through without a user in the context
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"user_id":null`)
}

func TestOptionalJWTAuth_TokenSetsUser(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-jwt-secret")

	token, _ := utils.GenerateJWT(models.User{ID: "user-uuid", Role: models.UserRole}, 1)

	r := protectedRouter(OptionalJWTAuth())

	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "user-uuid")
}

func TestAdminAuth_RejectsRegularUser(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-jwt-secret")

	token, _ := utils.GenerateJWT(models.User{ID: "user-uuid", Role: models.UserRole}, 1)

	r := protectedRouter(AdminAuth())

	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestAdminAuth_AllowsAdmin(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-jwt-secret")

	token, _ := utils.GenerateJWT(models.User{ID: "admin-uuid", Role: models.AdminRole}, 1)

	r := protectedRouter(AdminAuth())

	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestCronAuth(t *testing.T) {
	t.Setenv("CRON_SECRET", "cron-secret")

	r := protectedRouter(CronAuth())

	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)

	req, _ = http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer wrong-secret")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCronAuth_MissingConfig(t *testing.T) {
	t.Setenv("CRON_SECRET", "")

	r := protectedRouter(CronAuth())

	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer anything")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}
