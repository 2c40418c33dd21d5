package Middleware

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"os"
	"strings"

	"KaufmannHealth/Utils/Token"

	"github.com/gin-gonic/gin"
)

const AdminCookieName = "kh_admin"

const (
	CallerCron  = "cron"
	CallerAdmin = "admin"
)

// HasCronSecret accepts the shared secret as an x-cron-secret header, a
// bearer token, or a ?token= query parameter.
func HasCronSecret(c *gin.Context) bool {
	secret := os.Getenv("CRON_SECRET")
	if secret == "" {
		return false
	}
	candidates := []string{
		c.GetHeader("x-cron-secret"),
		strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "),
		c.Query("token"),
	}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) == 1 {
			return true
		}
	}
	return false
}

// IsSameOrigin compares the Origin (or, failing that, Referer) host against
// the request host. Admin-cookie callers must pass this so third-party pages
// cannot trigger cron-equivalent actions.
func IsSameOrigin(c *gin.Context) bool {
	origin := c.GetHeader("Origin")
	if origin == "" {
		origin = c.GetHeader("Referer")
	}
	if origin == "" {
		return false
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return parsed.Host == c.Request.Host
}

func hasValidAdminCookie(c *gin.Context) (bool, string) {
	cookie, err := c.Cookie(AdminCookieName)
	if err != nil || cookie == "" {
		return false, Token.ReasonInvalidFormat
	}
	return Token.VerifySessionToken(cookie)
}

// AdminSessionMiddleware gates the admin UI endpoints: valid signed cookie
// plus same-origin.
func AdminSessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		valid, reason := hasValidAdminCookie(c)
		if !valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "reason": reason})
			c.Abort()
			return
		}
		if !IsSameOrigin(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			c.Abort()
			return
		}
		c.Set("caller", CallerAdmin)
		c.Next()
	}
}

// CronOrAdminMiddleware is the shared three-tier check for cron-capable
// endpoints, in precedence order: cron secret, then admin cookie with
// same-origin, then reject.
func CronOrAdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if HasCronSecret(c) {
			c.Set("caller", CallerCron)
			c.Next()
			return
		}

		valid, reason := hasValidAdminCookie(c)
		if !valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "reason": reason})
			c.Abort()
			return
		}
		if !IsSameOrigin(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			c.Abort()
			return
		}
		c.Set("caller", CallerAdmin)
		c.Next()
	}
}
