package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/rfqcompliance/internal/logging"
	"github.com/Lllllllleong/rfqcompliance/internal/models"
)

const secret = "test-secret-key"

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	var fromCtx string
	router.GET("/test", func(c *gin.Context) {
		fromCtx = logging.RequestID(c.Request.Context())
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	id := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, w.Body.String())
	assert.Equal(t, id, fromCtx)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, "caller-id")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "caller-id", w.Header().Get(RequestIDHeader))
}

func TestRecovery(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), Recovery(), RequestLogger())
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "request_id")
}

func TestAuth(t *testing.T) {
	tenantToken, err := GenerateToken("alice", "", secret, time.Hour)
	require.NoError(t, err)
	adminToken, err := GenerateToken("root", RoleAdmin, secret, time.Hour)
	require.NoError(t, err)
	wrongKey, err := GenerateToken("alice", "", "other-secret", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken("alice", "", secret, -time.Minute)
	require.NoError(t, err)
	noSubject, err := GenerateToken("", "", secret, time.Hour)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantActor  models.Actor
	}{
		{name: "tenant", header: "Bearer " + tenantToken, wantStatus: http.StatusOK, wantActor: models.Tenant{UserID: "alice"}},
		{name: "admin", header: "Bearer " + adminToken, wantStatus: http.StatusOK, wantActor: models.Administrator{UserID: "root"}},
		{name: "lowercase scheme", header: "bearer " + tenantToken, wantStatus: http.StatusOK, wantActor: models.Tenant{UserID: "alice"}},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "no scheme", header: tenantToken, wantStatus: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer invalid.token.here", wantStatus: http.StatusUnauthorized},
		{name: "wrong key", header: "Bearer " + wrongKey, wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
		{name: "no subject", header: "Bearer " + noSubject, wantStatus: http.StatusUnauthorized},
		{name: "no expiry", header: "Bearer " + noExpiry, wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got models.Actor
			router := gin.New()
			router.Use(Auth(secret))
			router.GET("/test", func(c *gin.Context) {
				got, _ = ActorFrom(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantActor, got)
		})
	}
}

func TestAuthWithoutSecret(t *testing.T) {
	router := gin.New()
	router.Use(Auth(""))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestActorFromUnset(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := ActorFrom(c)
	assert.False(t, ok)
}
