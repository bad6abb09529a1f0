package middleware

import (
	"net/http"

	"github.com/cardioml-web/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionScopeKey is the gin context key holding the persistence scope.
const SessionScopeKey = "session_scope"

// Session assigns every browser a random scope ID stored in a cookie. Stored
// assessment results are keyed by this scope.
func Session(cfg domain.SessionConfig) gin.HandlerFunc {
	name := cfg.CookieName
	if name == "" {
		name = "cardioml_session"
	}
	maxAge := int(cfg.MaxAge.Seconds())

	return func(c *gin.Context) {
		scope, err := c.Cookie(name)
		if err != nil || uuid.Validate(scope) != nil {
			scope = uuid.NewString()
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(name, scope, maxAge, "/", "", cfg.Secure, true)
		c.Set(SessionScopeKey, scope)

		c.Next()
	}
}

// Scope returns the session scope set by Session.
func Scope(c *gin.Context) string {
	return c.GetString(SessionScopeKey)
}
