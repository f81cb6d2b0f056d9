package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/activmap/activmap-api/internal/models"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims *models.JWTClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func testRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		claims := &models.JWTClaims{}
		if value, ok := c.Get(ContextUserKey); ok {
			claims = value.(*models.JWTClaims)
		}
		c.JSON(http.StatusOK, gin.H{"user": claims.UserID})
	})
	r.GET("/probe", handlers...)
	return r
}

func TestJWTMiddlewareValidToken(t *testing.T) {
	claims := &models.JWTClaims{
		UserID: "user-1",
		Role:   models.RoleModerator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	r := testRouter(JWT(testSecret))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, claims, testSecret))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "user-1")
}

func TestJWTMiddlewareRejectsMissingAndBadTokens(t *testing.T) {
	r := testRouter(JWT(testSecret))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/probe", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	claims := &models.JWTClaims{UserID: "user-1"}
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, claims, "wrong-secret"))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalJWTAllowsAnonymous(t *testing.T) {
	r := testRouter(OptionalJWT(testSecret))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/probe", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequireModerator(t *testing.T) {
	r := testRouter(JWT(testSecret), RequireModerator())

	visitor := &models.JWTClaims{
		UserID: "user-1",
		Role:   models.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, visitor, testSecret))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)

	admin := &models.JWTClaims{
		UserID: "admin-1",
		Role:   models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, admin, testSecret))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
