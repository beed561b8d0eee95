package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/openbiolabs/noderepo/internal/auth"
	"github.com/openbiolabs/noderepo/internal/authz"
	"github.com/openbiolabs/noderepo/pkg/errors"
	"github.com/openbiolabs/noderepo/pkg/response"
)

const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
)

// Auth enforces JWT authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, jwt)
		if !ok {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Next()
	}
}

// Identity resolves the caller's identity without requiring one: a valid
// bearer token sets the user id, anything else falls back to the anonymous
// sentinel so public-group reads still work.
func Identity(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := bearerClaims(c, jwt); ok {
			c.Set(CtxClaimsKey, claims)
			c.Set(CtxUserIDKey, claims.UserID)
		} else {
			c.Set(CtxUserIDKey, authz.AnonymousUserID)
		}
		c.Next()
	}
}

// UserID returns the caller identity established by Auth or Identity.
func UserID(c *gin.Context) string {
	if id := c.GetString(CtxUserIDKey); id != "" {
		return id
	}
	return authz.AnonymousUserID
}

func bearerClaims(c *gin.Context, jwt *iauth.JWTService) (*iauth.Claims, bool) {
	header := c.GetHeader("Authorization")
	if len(header) < 8 || !strings.EqualFold(header[:7], "Bearer ") {
		return nil, false
	}

	claims, err := jwt.ValidateToken(strings.TrimSpace(header[7:]))
	if err != nil {
		return nil, false
	}
	return claims, true
}
