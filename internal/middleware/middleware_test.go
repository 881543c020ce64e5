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

	"github.com/noah-isme/rbac-console/internal/models"
	"github.com/noah-isme/rbac-console/internal/permission"
	"github.com/noah-isme/rbac-console/internal/service"
)

const testSecret = "middleware-secret"

func signToken(t *testing.T, role models.Role, secret string) string {
	t.Helper()
	now := time.Now()
	claims := &models.JWTClaims{
		UserID: "user-1",
		Role:   role,
		Email:  "user@school.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newProtectedEngine(capabilities ...permission.Capability) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(nil, nil, nil, service.AuthConfig{AccessTokenSecret: testSecret})
	engine := gin.New()
	engine.Use(Metrics(service.NewMetricsService()))
	engine.GET("/protected", JWT(auth), RequireCapabilities(capabilities...), func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, string(claims.Role))
	})
	return engine
}

func doRequest(engine *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestJWTRejectsMissingHeader(t *testing.T) {
	w := doRequest(newProtectedEngine(), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestJWTRejectsMalformedHeader(t *testing.T) {
	w := doRequest(newProtectedEngine(), "Token abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTRejectsForeignSignature(t *testing.T) {
	w := doRequest(newProtectedEngine(), "Bearer "+signToken(t, models.RolePrincipal, "other"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAcceptsValidToken(t *testing.T) {
	w := doRequest(newProtectedEngine(), "bearer "+signToken(t, models.RoleStudent, testSecret))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student", w.Body.String())
}

func TestRequireCapabilities(t *testing.T) {
	engine := newProtectedEngine(permission.CanAccessReports, permission.CanViewAllReports)

	cases := []struct {
		role   models.Role
		status int
	}{
		{models.RolePrincipal, http.StatusOK},
		{models.RoleTeacher, http.StatusOK},
		{models.RoleStudent, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(string(tc.role), func(t *testing.T) {
			w := doRequest(engine, "Bearer "+signToken(t, tc.role, testSecret))
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRequireCapabilitiesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/protected", RequireCapabilities(permission.CanAccessUsers), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	w := doRequest(engine, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func requestCountsByPath(t *testing.T, metrics *service.MetricsService) map[string]float64 {
	t.Helper()
	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "path" {
					counts[label.GetValue()] += metric.GetCounter().GetValue()
				}
			}
		}
	}
	return counts
}

func TestMetricsLabelsRouteTemplates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	engine := gin.New()
	engine.Use(Metrics(metrics, "/metrics"))
	engine.GET("/users/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/users/1", "/users/2", "/metrics", "/nowhere/a", "/nowhere/b"} {
		engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	counts := requestCountsByPath(t, metrics)
	assert.Equal(t, 2.0, counts["/users/:id"])
	assert.Equal(t, 2.0, counts[UnmatchedRoute])
	assert.NotContains(t, counts, "/metrics")
	assert.NotContains(t, counts, "/users/1")
	assert.NotContains(t, counts, "/nowhere/a")
}
