package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fhsinchy/geb-deals/internal/domain"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// SearchService runs a product search for a free-text query
type SearchService interface {
	Search(ctx context.Context, query string) (*domain.SearchResult, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	search SearchService
}

// NewHandler creates a new HTTP handler
func NewHandler(search SearchService) *Handler {
	return &Handler{search: search}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "geb-deals-backend",
		"version": Version,
	})
}

// SearchBooks handles GET /api/v1/books/search?q=...
func (h *Handler) SearchBooks(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "query parameter 'q' is required",
		})
		return
	}

	if h.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "search service not configured",
		})
		return
	}

	log := zerolog.Ctx(c.Request.Context())
	result, err := h.search.Search(c.Request.Context(), query)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidQuery) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": err.Error(),
			})
			return
		}
		log.Error().Err(err).Msg("Search failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
		})
		return
	}

	if result.Cause != nil {
		log.Warn().Err(result.Cause).Str("query", result.Query).Msg("Search returned no data")
	}

	if len(result.Products) == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "no results found",
		})
		return
	}

	c.JSON(http.StatusOK, result.Products)
}
