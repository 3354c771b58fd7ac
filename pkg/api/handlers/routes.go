package handlers

import (
	apimw "github.com/jordanlanch/bookworm/pkg/api/middleware"
	"github.com/jordanlanch/bookworm/pkg/domain"
	"github.com/jordanlanch/bookworm/pkg/middleware"
	"github.com/labstack/echo/v4"
)

// RouteConfig carries what the authenticated route groups need
type RouteConfig struct {
	JWTSecret   string
	Users       domain.UserLookup
	RateLimiter *middleware.RateLimiter
}

// RegisterRecommendationRoutes mounts the recommendation and admin routes on v1
func RegisterRecommendationRoutes(v1 *echo.Group, h *RecommendationHandler, cfg RouteConfig) {
	authed := []echo.MiddlewareFunc{apimw.JWTMiddleware(cfg.JWTSecret)}
	if cfg.RateLimiter != nil {
		authed = append(authed, cfg.RateLimiter.RateLimitMiddleware())
	}

	recs := v1.Group("/recommendations", authed...)
	recs.GET("/personalized", h.GetPersonalized)
	recs.GET("/stats", h.GetStats)
	recs.POST("/refresh", h.Refresh)
	recs.GET("/why-recommended/:bookId", h.WhyRecommended)
	recs.PATCH("/:recommendationId/view", h.MarkViewed)
	recs.PATCH("/:recommendationId/click", h.MarkClicked)
	recs.PATCH("/books/:bookId/shelved", h.MarkShelved)

	adminMW := append(append([]echo.MiddlewareFunc{}, authed...), middleware.RequireAdmin(cfg.Users))
	admin := v1.Group("/admin/recommendations", adminMW...)
	admin.GET("/stats", h.GetSystemStats)
	admin.DELETE("/cleanup", h.Cleanup)
}
