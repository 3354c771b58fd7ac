package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jordanlanch/bookworm/pkg/domain"
	"github.com/jordanlanch/bookworm/pkg/logger"
	"github.com/jordanlanch/bookworm/pkg/models"
	"github.com/labstack/echo/v4"
)

// Error codes written to ErrorResponse.Error
const (
	CodeValidation   = "validation_error"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeRateLimited  = "rate_limit_exceeded"
	CodeUnavailable  = "service_unavailable"
	CodeInternal     = "internal_error"
)

const (
	internalMessage    = "An internal error occurred. Please try again later."
	unavailableMessage = "The service is temporarily unavailable. Please try again later."
)

// ValidationError returns a 400 with a message that is safe to show the caller
func ValidationError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   CodeValidation,
		Message: message,
	})
}

// UnauthorizedError returns a 401
func UnauthorizedError(c echo.Context, message string) error {
	return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
		Error:   CodeUnauthorized,
		Message: message,
	})
}

// ForbiddenError returns a 403
func ForbiddenError(c echo.Context, message string) error {
	return c.JSON(http.StatusForbidden, models.ErrorResponse{
		Error:   CodeForbidden,
		Message: message,
	})
}

// NotFoundError returns a 404 naming the missing resource
func NotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	})
}

// FromDomain converts a domain error into an HTTP error. Unknown errors become
// a 500 that keeps the cause as its internal error.
func FromDomain(err error) *echo.HTTPError {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}

	switch de.Code {
	case domain.ErrCodeNotFound:
		return echo.NewHTTPError(http.StatusNotFound, de.Message)
	case domain.ErrCodeValidation:
		return echo.NewHTTPError(http.StatusBadRequest, de.Message)
	case domain.ErrCodeUnauthorized:
		return echo.NewHTTPError(http.StatusUnauthorized, de.Message)
	case domain.ErrCodeForbidden:
		return echo.NewHTTPError(http.StatusForbidden, de.Message)
	case domain.ErrCodeUnavailable:
		return echo.NewHTTPError(http.StatusServiceUnavailable).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
	}
}

// HTTPErrorHandler renders every error returned by a handler as an ErrorResponse.
// Server errors are logged and their details never reach the client.
func HTTPErrorHandler(log logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if !errors.As(err, &he) {
			he = FromDomain(err)
		}

		resp := models.ErrorResponse{Error: codeFor(he.Code)}
		switch {
		case he.Code == http.StatusServiceUnavailable:
			resp.Message = unavailableMessage
		case he.Code >= http.StatusInternalServerError:
			resp.Message = internalMessage
		default:
			resp.Message = fmt.Sprint(he.Message)
		}
		if he.Code >= http.StatusInternalServerError {
			cause := he.Internal
			if cause == nil {
				cause = err
			}
			log.Error("request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"status", he.Code,
				"error", cause,
			)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(he.Code)
		} else {
			werr = c.JSON(he.Code, resp)
		}
		if werr != nil {
			log.Error("failed to write error response", "error", werr)
		}
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	}
	if status >= http.StatusInternalServerError {
		return CodeInternal
	}
	return http.StatusText(status)
}
