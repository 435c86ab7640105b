package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/thwithaphisek/student-behavior-api/internal/models"
	"github.com/thwithaphisek/student-behavior-api/internal/service"
	"github.com/thwithaphisek/student-behavior-api/pkg/config"
)

func newAuthService(t *testing.T) *service.AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)
	return service.NewAuthService(config.AdminConfig{
		PasswordHash:   string(hash),
		SessionSecret:  "secret",
		SessionTimeout: time.Hour,
	}, nil, zap.NewNop())
}

func performRequest(t *testing.T, auth *service.AuthService, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AdminJWT(auth), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req, err := http.NewRequest(http.MethodGet, "/protected", nil)
	require.NoError(t, err)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminJWTAllowsValidToken(t *testing.T) {
	auth := newAuthService(t)
	resp, err := auth.Login(models.LoginRequest{Password: "password"})
	require.NoError(t, err)

	w := performRequest(t, auth, "Bearer "+resp.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAdminJWTRejectsMissingHeader(t *testing.T) {
	w := performRequest(t, newAuthService(t), "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminJWTRejectsMalformedHeader(t *testing.T) {
	w := performRequest(t, newAuthService(t), "Basic abc")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminJWTRejectsBadToken(t *testing.T) {
	w := performRequest(t, newAuthService(t), "Bearer not-a-token")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
