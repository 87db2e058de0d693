package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docflow/api/internal/config"
	"docflow/api/internal/models"
	"docflow/api/internal/repository"
	"docflow/api/internal/security"
)

const (
	ctxPrincipal   = "principal"
	ctxCurrentUser = "current_user"
)

// Auth authenticates the bearer token and resolves the principal. The
// subject is always re-resolved against the users table: a token is never
// trusted past identity, so a role change takes effect on the next request.
func Auth(cfg *config.AppConfig, users *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := security.ParseTokenOfKind(tokenStr, cfg.Security.JWTSecret, security.TokenKindAccess)
		if err != nil {
			code := "invalid_token"
			if err == security.ErrTokenExpired {
				code = "token_expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code})
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_not_found"})
			return
		}

		c.Set(ctxPrincipal, models.Principal{UserID: user.ID, Role: user.Role})
		c.Set(ctxCurrentUser, user)

		c.Next()
	}
}

// PrincipalFrom returns the authenticated principal set by Auth.
func PrincipalFrom(c *gin.Context) (models.Principal, bool) {
	val, exists := c.Get(ctxPrincipal)
	if !exists {
		return models.Principal{}, false
	}
	principal, ok := val.(models.Principal)
	return principal, ok
}

// UserFrom returns the re-resolved user row set by Auth.
func UserFrom(c *gin.Context) (models.User, bool) {
	val, exists := c.Get(ctxCurrentUser)
	if !exists {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}
