package middleware

import (
	"strings"

	apierrors "github.com/jordanlanch/bookworm/pkg/api/errors"
	"github.com/jordanlanch/bookworm/pkg/auth"
	"github.com/jordanlanch/bookworm/pkg/models"
	"github.com/labstack/echo/v4"
)

// Context keys set by JWTMiddleware
const (
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
	UserRoleKey  = "user_role"
)

// JWTMiddleware creates a JWT authentication middleware
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return apierrors.UnauthorizedError(c, "Authorization header is required")
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				return apierrors.UnauthorizedError(c, "Authorization header must be 'Bearer {token}'")
			}

			claims, err := auth.ValidateJWT(parts[1], secret)
			if err != nil {
				return apierrors.UnauthorizedError(c, "Invalid or expired token")
			}

			c.Set(UserIDKey, claims.UserID)
			c.Set(UserEmailKey, claims.Email)
			c.Set(UserRoleKey, claims.Role)

			return next(c)
		}
	}
}

// UserID returns the authenticated user id, or "" outside JWTMiddleware
func UserID(c echo.Context) string {
	id, _ := c.Get(UserIDKey).(string)
	return id
}

// UserRole returns the role claimed by the token
func UserRole(c echo.Context) models.Role {
	role, _ := c.Get(UserRoleKey).(models.Role)
	return role
}
