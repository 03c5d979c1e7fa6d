package identity

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxSessionClaims = "lostfound_session_claims"

// AdminSecretHeader carries the operator secret for maintenance routes.
const AdminSecretHeader = "X-Admin-Secret"

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(authHeader, "Bearer "), true
}

// OptionalSession returns a Gin middleware that tries to parse a Bearer
// session token. It never aborts; a missing or bad token leaves the request
// anonymous. A nil issuer disables it.
func OptionalSession(sessions *SessionIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessions != nil {
			if tokenStr, ok := bearerToken(c); ok {
				if claims, err := sessions.Verify(tokenStr); err == nil {
					c.Set(ctxSessionClaims, claims)
				}
			}
		}
		c.Next()
	}
}

// RequireSession returns a Gin middleware that enforces a valid session
// Bearer token.
func RequireSession(sessions *SessionIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c)
		if !ok || sessions == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer session token required",
			})
			return
		}
		claims, err := sessions.Verify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid session token: " + err.Error(),
			})
			return
		}
		c.Set(ctxSessionClaims, claims)
		c.Next()
	}
}

// SessionFromCtx returns the claims injected by OptionalSession or
// RequireSession, or nil.
func SessionFromCtx(c *gin.Context) *SessionClaims {
	v, _ := c.Get(ctxSessionClaims)
	claims, _ := v.(*SessionClaims)
	return claims
}

// RequireAdminSecret returns a Gin middleware that compares the
// X-Admin-Secret header with secret. An empty secret disables the routes
// it guards.
func RequireAdminSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin operations are disabled",
			})
			return
		}
		got := c.GetHeader(AdminSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "valid " + AdminSecretHeader + " header required",
			})
			return
		}
		c.Next()
	}
}
