package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"krishilink/api/internal/auth"
)

const (
	// ContextKeyUID holds the identity provider's user id.
	ContextKeyUID = "uid"
	// ContextKeyEmail holds the verified caller email.
	ContextKeyEmail = "email"
	// ContextKeyName holds the display name from the token, if any.
	ContextKeyName = "name"
)

// AuthMiddleware rejects requests without a valid Bearer ID token and stores
// the caller identity in the Gin context.
func AuthMiddleware(verifier auth.TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), parts[1])
		if err != nil {
			logger.Debug("Rejected ID token", zap.String("path", c.FullPath()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ContextKeyUID, identity.UID)
		c.Set(ContextKeyEmail, identity.Email)
		c.Set(ContextKeyName, identity.Name)
		c.Next()
	}
}

// CurrentEmail returns the verified email set by AuthMiddleware.
func CurrentEmail(c *gin.Context) string {
	return c.GetString(ContextKeyEmail)
}

// CurrentName returns the token display name set by AuthMiddleware.
func CurrentName(c *gin.Context) string {
	return c.GetString(ContextKeyName)
}

// AdminChecker reports whether an account may use admin routes.
type AdminChecker interface {
	IsAdmin(ctx context.Context, email string) (bool, error)
}

// AdminMiddleware checks for admin privileges. Assumes AuthMiddleware runs
// first.
func AdminMiddleware(checker AdminChecker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := CurrentEmail(c)
		if email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		isAdmin, err := checker.IsAdmin(c.Request.Context(), email)
		if err != nil {
			logger.Error("Failed to check admin role", zap.String("email", email), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to check permissions"})
			return
		}
		if !isAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Administrator privileges required"})
			return
		}
		c.Next()
	}
}
