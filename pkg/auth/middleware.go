package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo"
)

const (
	tokenHeader = "Authorization"
	tokenPrefix = "Bearer "

	// Context keys used by the middleware
	UserIDKey   = "user_id"
	RawTokenKey = "raw_token"
)

// Middleware returns an echo middleware that validates the bearer token and
// stores the user ID and raw token on the request context. The subject claim
// must be a UUID; handlers downstream rely on that. The raw token is kept so
// handlers can forward it to downstream services.
func Middleware(signer *Signer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(tokenHeader)
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"message": "missing authorization header"})
			}

			if !strings.HasPrefix(authHeader, tokenPrefix) {
				return c.JSON(http.StatusUnauthorized, map[string]string{"message": "invalid authorization header format"})
			}

			token := strings.TrimPrefix(authHeader, tokenPrefix)
			claims, err := signer.ValidateToken(token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"message": "invalid or expired token"})
			}

			userID, err := claims.UserID()
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"message": "invalid subject claim"})
			}

			c.Set(UserIDKey, userID.String())
			c.Set(RawTokenKey, token)

			return next(c)
		}
	}
}

// GetUserID retrieves the authenticated user ID from the request context.
func GetUserID(c echo.Context) (string, bool) {
	id, ok := c.Get(UserIDKey).(string)
	return id, ok
}

// GetRawToken retrieves the bearer token as it arrived, for forwarding.
func GetRawToken(c echo.Context) (string, bool) {
	token, ok := c.Get(RawTokenKey).(string)
	return token, ok
}
