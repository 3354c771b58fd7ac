package middleware

import (
	"context"
	"time"

	apierrors "github.com/jordanlanch/bookworm/pkg/api/errors"
	apimw "github.com/jordanlanch/bookworm/pkg/api/middleware"
	"github.com/jordanlanch/bookworm/pkg/domain"
	"github.com/labstack/echo/v4"
)

// RequireAdmin ensures the authenticated user currently holds an admin role.
// The role is read from the user record, not the token, so demotions apply
// immediately. Apply it after the JWT middleware.
func RequireAdmin(users domain.UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID := apimw.UserID(c)
			if userID == "" {
				return apierrors.UnauthorizedError(c, "Authentication required")
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
			defer cancel()

			u, err := users.GetUser(ctx, userID)
			if err != nil {
				if domain.IsNotFound(err) {
					return apierrors.UnauthorizedError(c, "User not found")
				}
				return apierrors.FromDomain(err)
			}

			if !u.Role.IsAdmin() {
				return apierrors.ForbiddenError(c, "Admin access required")
			}

			c.Set(apimw.UserRoleKey, u.Role)
			return next(c)
		}
	}
}
