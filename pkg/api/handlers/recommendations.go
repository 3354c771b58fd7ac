package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	apierrors "github.com/jordanlanch/bookworm/pkg/api/errors"
	apimw "github.com/jordanlanch/bookworm/pkg/api/middleware"
	"github.com/jordanlanch/bookworm/pkg/logger"
	"github.com/jordanlanch/bookworm/pkg/models"
	"github.com/jordanlanch/bookworm/pkg/recommendations"
	"github.com/labstack/echo/v4"
)

// RecommendationService is what the recommendation endpoints need from the service layer
type RecommendationService interface {
	Params() recommendations.Params
	GetPersonalizedRecommendations(ctx context.Context, userID string, q recommendations.Query) ([]recommendations.BookRecommendation, error)
	RefreshRecommendations(ctx context.Context, userID string) ([]recommendations.BookRecommendation, error)
	GetWhyRecommended(ctx context.Context, userID, bookID string) (*recommendations.WhyRecommended, error)
	MarkRecommendationViewed(ctx context.Context, userID, recommendationID string) (*recommendations.Recommendation, error)
	MarkRecommendationClicked(ctx context.Context, userID, recommendationID string) (*recommendations.Recommendation, error)
	MarkAddedToShelf(ctx context.Context, userID, bookID string) (int64, error)
	GetRecommendationStats(ctx context.Context, userID string) (*recommendations.UserStats, error)
	GetSystemRecommendationStats(ctx context.Context) (*recommendations.SystemStats, error)
	CleanupExpiredRecommendations(ctx context.Context) (int64, error)
}

// RecommendationHandler handles recommendation endpoints
type RecommendationHandler struct {
	service   RecommendationService
	validator *validator.Validate
	logger    logger.Logger
}

// NewRecommendationHandler creates a new recommendation handler
func NewRecommendationHandler(service RecommendationService, log logger.Logger) *RecommendationHandler {
	if log == nil {
		log = logger.Default()
	}
	return &RecommendationHandler{
		service:   service,
		validator: validator.New(),
		logger:    log,
	}
}

// PersonalizedQuery holds the query parameters of the personalized endpoint
type PersonalizedQuery struct {
	Limit         int    `query:"limit" validate:"omitempty,min=1"`
	Refresh       bool   `query:"refresh"`
	Type          string `query:"type" validate:"omitempty,oneof=genre_based rating_based similar_users trending new_releases fallback"`
	IncludeViewed bool   `query:"includeViewed"`
}

func respond(c echo.Context, message string, data any) error {
	return c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// httpError maps service errors onto HTTP errors
func httpError(err error) error {
	switch {
	case errors.Is(err, recommendations.ErrRecommendationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Recommendation not found")
	case errors.Is(err, recommendations.ErrBookNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Book not found")
	default:
		return apierrors.FromDomain(err)
	}
}

// GetPersonalized returns the caller's recommendations
// @Summary Get personalized recommendations
// @Description Stored recommendations when enough are active, otherwise a freshly generated list
// @Tags Recommendations
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Number of recommendations (default 12, capped at 18)"
// @Param refresh query bool false "Ignore stored recommendations"
// @Param type query string false "Only stored recommendations of this type"
// @Param includeViewed query bool false "Count viewed recommendations as stored"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /recommendations/personalized [get]
func (h *RecommendationHandler) GetPersonalized(c echo.Context) error {
	var q PersonalizedQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return apierrors.ValidationError(c, "Invalid query parameters")
	}
	// Zero means the default and anything above the maximum is capped by the service
	if err := h.validator.Struct(q); err != nil {
		return apierrors.ValidationError(c, queryMessage(err))
	}

	recs, err := h.service.GetPersonalizedRecommendations(c.Request().Context(), apimw.UserID(c), recommendations.Query{
		Limit:         q.Limit,
		Refresh:       q.Refresh,
		Type:          recommendations.Type(q.Type),
		IncludeViewed: q.IncludeViewed,
	})
	if err != nil {
		return httpError(err)
	}

	return respond(c, "Personalized recommendations retrieved successfully", recs)
}

func queryMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "Type":
			return "type must be one of genre_based, rating_based, similar_users, trending, new_releases, fallback"
		case "Limit":
			return "limit must be a positive number"
		}
	}
	return "Invalid query parameters"
}

// GetStats returns engagement statistics for the caller
// @Summary Get recommendation statistics
// @Tags Recommendations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse
// @Router /recommendations/stats [get]
func (h *RecommendationHandler) GetStats(c echo.Context) error {
	stats, err := h.service.GetRecommendationStats(c.Request().Context(), apimw.UserID(c))
	if err != nil {
		return httpError(err)
	}
	return respond(c, "Recommendation statistics retrieved successfully", stats)
}

// Refresh regenerates the caller's recommendations
// @Summary Refresh recommendations
// @Tags Recommendations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse
// @Router /recommendations/refresh [post]
func (h *RecommendationHandler) Refresh(c echo.Context) error {
	recs, err := h.service.RefreshRecommendations(c.Request().Context(), apimw.UserID(c))
	if err != nil {
		return httpError(err)
	}
	return respond(c, "Recommendations refreshed successfully", recs)
}

// WhyRecommended explains why a book suits the caller
// @Summary Explain a recommendation
// @Tags Recommendations
// @Produce json
// @Security BearerAuth
// @Param bookId path string true "Book ID"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /recommendations/why-recommended/{bookId} [get]
func (h *RecommendationHandler) WhyRecommended(c echo.Context) error {
	why, err := h.service.GetWhyRecommended(c.Request().Context(), apimw.UserID(c), c.Param("bookId"))
	if err != nil {
		return httpError(err)
	}
	return respond(c, "Recommendation explanation retrieved", why)
}

// MarkViewed flags a recommendation as viewed
// @Summary Mark recommendation viewed
// @Tags Recommendations
// @Produce json
// @Security BearerAuth
// @Param recommendationId path string true "Recommendation ID"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /recommendations/{recommendationId}/view [patch]
func (h *RecommendationHandler) MarkViewed(c echo.Context) error {
	rec, err := h.service.MarkRecommendationViewed(c.Request().Context(), apimw.UserID(c), c.Param("recommendationId"))
	if err != nil {
		return httpError(err)
	}
	return respond(c, "Recommendation marked as viewed", rec)
}

// MarkClicked flags a recommendation as clicked
// @Summary Mark recommendation clicked
// @Tags Recommendations
// @Produce json
// @Security BearerAuth
// @Param recommendationId path string true "Recommendation ID"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /recommendations/{recommendationId}/click [patch]
func (h *RecommendationHandler) MarkClicked(c echo.Context) error {
	rec, err := h.service.MarkRecommendationClicked(c.Request().Context(), apimw.UserID(c), c.Param("recommendationId"))
	if err != nil {
		return httpError(err)
	}
	return respond(c, "Recommendation marked as clicked", rec)
}

// MarkShelved records that the caller shelved a recommended book
// @Summary Mark recommended book shelved
// @Tags Recommendations
// @Produce json
// @Security BearerAuth
// @Param bookId path string true "Book ID"
// @Success 200 {object} models.APIResponse
// @Router /recommendations/books/{bookId}/shelved [patch]
func (h *RecommendationHandler) MarkShelved(c echo.Context) error {
	n, err := h.service.MarkAddedToShelf(c.Request().Context(), apimw.UserID(c), c.Param("bookId"))
	if err != nil {
		return httpError(err)
	}
	return respond(c, "Recommendation marked as added to shelf", map[string]int64{"updatedCount": n})
}

// GetSystemStats returns system-wide recommendation statistics
// @Summary Get system recommendation statistics (admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/recommendations/stats [get]
func (h *RecommendationHandler) GetSystemStats(c echo.Context) error {
	stats, err := h.service.GetSystemRecommendationStats(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return respond(c, "System recommendation statistics retrieved", stats)
}

// Cleanup deletes expired recommendations
// @Summary Delete expired recommendations (admin only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.APIResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/recommendations/cleanup [delete]
func (h *RecommendationHandler) Cleanup(c echo.Context) error {
	n, err := h.service.CleanupExpiredRecommendations(c.Request().Context())
	if err != nil {
		return httpError(err)
	}

	h.logger.Info("expired recommendations cleaned up", "deleted", n, "admin_id", apimw.UserID(c))
	return respond(c, fmt.Sprintf("Cleaned up %d expired recommendations", n), map[string]int64{"deletedCount": n})
}
