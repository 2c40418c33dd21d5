package Middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"KaufmannHealth/Utils/Token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func cronRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/cron/run", CronOrAdminMiddleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"caller": c.GetString("caller")})
	})
	return router
}

func adminRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin/leads", AdminSessionMiddleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"caller": c.GetString("caller")})
	})
	return router
}

func TestCronSecret_AllThreeForms(t *testing.T) {
	t.Setenv("CRON_SECRET", "s3cret")
	router := cronRouter()

	build := []func(r *http.Request){
		func(r *http.Request) { r.Header.Set("x-cron-secret", "s3cret") },
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer s3cret") },
		func(r *http.Request) { r.URL.RawQuery = "token=s3cret" },
	}
	for i, apply := range build {
		req := httptest.NewRequest(http.MethodPost, "/cron/run", nil)
		apply(req)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, "form %d", i)
		assert.Contains(t, w.Body.String(), `"caller":"cron"`, "form %d", i)
	}
}

func TestCronSecret_WrongSecretFallsThrough(t *testing.T) {
	t.Setenv("CRON_SECRET", "s3cret")
	t.Setenv("ADMIN_SESSION_SECRET", "admin-secret")
	router := cronRouter()

	req := httptest.NewRequest(http.MethodPost, "/cron/run", nil)
	req.Header.Set("x-cron-secret", "wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCronSecret_EmptyEnvNeverMatches(t *testing.T) {
	t.Setenv("CRON_SECRET", "")
	router := cronRouter()

	// An empty header must not pass against an unset secret.
	req := httptest.NewRequest(http.MethodPost, "/cron/run", nil)
	req.Header.Set("x-cron-secret", "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminCookie_SameOriginRequired(t *testing.T) {
	t.Setenv("ADMIN_SESSION_SECRET", "admin-secret")
	router := adminRouter()
	cookie := Token.GenerateSessionToken(Token.SessionLifetime)

	// Valid cookie, same origin.
	req := httptest.NewRequest(http.MethodGet, "/admin/leads", nil)
	req.Host = "app.example.com"
	req.Header.Set("Origin", "https://app.example.com")
	req.AddCookie(&http.Cookie{Name: AdminCookieName, Value: cookie})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"caller":"admin"`)

	// Valid cookie, cross-origin.
	req = httptest.NewRequest(http.MethodGet, "/admin/leads", nil)
	req.Host = "app.example.com"
	req.Header.Set("Origin", "https://evil.example.net")
	req.AddCookie(&http.Cookie{Name: AdminCookieName, Value: cookie})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Valid cookie, no origin headers at all.
	req = httptest.NewRequest(http.MethodGet, "/admin/leads", nil)
	req.Host = "app.example.com"
	req.AddCookie(&http.Cookie{Name: AdminCookieName, Value: cookie})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminCookie_RefererFallback(t *testing.T) {
	t.Setenv("ADMIN_SESSION_SECRET", "admin-secret")
	router := adminRouter()
	cookie := Token.GenerateSessionToken(Token.SessionLifetime)

	req := httptest.NewRequest(http.MethodGet, "/admin/leads", nil)
	req.Host = "app.example.com"
	req.Header.Set("Referer", "https://app.example.com/admin")
	req.AddCookie(&http.Cookie{Name: AdminCookieName, Value: cookie})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminCookie_InvalidReasonSurfaced(t *testing.T) {
	t.Setenv("ADMIN_SESSION_SECRET", "admin-secret")
	router := adminRouter()

	// Missing cookie.
	req := httptest.NewRequest(http.MethodGet, "/admin/leads", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), Token.ReasonInvalidFormat)

	// Expired cookie.
	expired := Token.GenerateSessionToken(-time.Hour)
	req = httptest.NewRequest(http.MethodGet, "/admin/leads", nil)
	req.Host = "app.example.com"
	req.Header.Set("Origin", "https://app.example.com")
	req.AddCookie(&http.Cookie{Name: AdminCookieName, Value: expired})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), Token.ReasonExpired)
}

func TestCronOrAdmin_AdminCookiePath(t *testing.T) {
	t.Setenv("CRON_SECRET", "s3cret")
	t.Setenv("ADMIN_SESSION_SECRET", "admin-secret")
	router := cronRouter()
	cookie := Token.GenerateSessionToken(Token.SessionLifetime)

	req := httptest.NewRequest(http.MethodPost, "/cron/run", nil)
	req.Host = "app.example.com"
	req.Header.Set("Origin", "https://app.example.com")
	req.AddCookie(&http.Cookie{Name: AdminCookieName, Value: cookie})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"caller":"admin"`)
}
