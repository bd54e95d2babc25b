package search

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/supportal/api/model"
	"github.com/supportal/api/services"
	"github.com/supportal/api/utils/middleware"
	"github.com/supportal/api/utils/response"
	"gorm.io/gorm"
)

// SearchHandler handles knowledge base search requests
type SearchHandler struct {
	db     *gorm.DB
	search *services.SearchService
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(db *gorm.DB, search *services.SearchService) *SearchHandler {
	return &SearchHandler{db: db, search: search}
}

// searchResponse is the search endpoint's payload. The portal frontend
// expects camelCase keys here.
type searchResponse struct {
	Results    []services.SearchResult `json:"results"`
	SearchType services.SearchTier     `json:"searchType"`
	Pagination paginationMeta          `json:"pagination"`
}

type paginationMeta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// Search runs a knowledge base search. vector=true selects hybrid
// vector+text scoring; otherwise plain full-text search. Unlike the chat
// retriever, no minimum-score threshold is applied.
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return response.BadRequest(c, "Query parameter q is required")
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 10)
	if limit < 1 || limit > 50 {
		limit = 10
	}

	opts := services.SearchOptions{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if categoryStr := c.Query("category_id"); categoryStr != "" {
		categoryID, err := strconv.ParseUint(categoryStr, 10, 64)
		if err != nil {
			return response.BadRequest(c, "Invalid category_id")
		}
		id := uint(categoryID)
		opts.CategoryID = &id
	}

	useVector := c.QueryBool("vector", false)

	var (
		results []services.SearchResult
		total   int64
		tier    services.SearchTier
		err     error
	)

	if useVector {
		results, err = h.search.HybridSearch(c.Context(), query, opts)
		total = int64(len(results))
		tier = services.MatchHybrid
		// A vector-path outage degrades to plain text search rather than
		// surfacing an error to the widget
		if err != nil {
			log.Printf("Warning: hybrid search failed, falling back to text: %v", err)
			results, total, err = h.search.TextSearch(c.Context(), query, opts)
			tier = services.MatchText
		}
	} else {
		results, total, err = h.search.TextSearch(c.Context(), query, opts)
		tier = services.MatchText
	}
	if err != nil {
		return response.InternalServerError(c, "Search failed")
	}

	h.recordSearch(c, query)

	return response.Success(c, searchResponse{
		Results:    results,
		SearchType: tier,
		Pagination: paginationMeta{Page: page, Limit: limit, Total: total},
	})
}

// recordSearch stores the query in the authenticated user's activity log
func (h *SearchHandler) recordSearch(c *fiber.Ctx, query string) {
	user, ok := middleware.GetUser(c)
	if !ok {
		return
	}

	user.Activity.RecordSearch(query, time.Now())
	if err := h.db.WithContext(c.Context()).Model(&model.User{}).
		Where("id = ?", user.ID).
		Update("activity", user.Activity).Error; err != nil {
		log.Printf("Warning: failed to record search for user %d: %v", user.ID, err)
	}
}
