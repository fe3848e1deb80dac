package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mariohealth/marioserve/pkg/config"
	"github.com/mariohealth/marioserve/pkg/engine"
	"github.com/mariohealth/marioserve/pkg/rank"
	"github.com/mariohealth/marioserve/pkg/resolve"
	"github.com/mariohealth/marioserve/pkg/suggest"
)

const refreshTimeout = 30 * time.Second

type handlers struct {
	engine *engine.Engine
	config *config.Config
}

// RankRequest is the body of POST /api/v1/rank. Nil filter fields keep
// their defaults.
type RankRequest struct {
	Query       string   `json:"query"`
	Network     string   `json:"network"`
	MaxDistance *float64 `json:"max_distance"`
	MinPrice    *float64 `json:"min_price"`
	MaxPrice    *float64 `json:"max_price"`
	SortBy      string   `json:"sort_by"`
	Offset      int      `json:"offset"`
	Limit       int      `json:"limit"`
}

// RankResponse is the body returned by POST /api/v1/rank
type RankResponse struct {
	Page     rank.Page         `json:"page"`
	Resolved *resolve.Resolved `json:"resolved,omitempty"`
}

// SuggestResponse is the body returned by GET /api/v1/suggest
type SuggestResponse struct {
	Query       string               `json:"query"`
	Suggestions []suggest.Suggestion `json:"suggestions"`
	Count       int                  `json:"count"`
}

func errorJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}

// query reads and bounds the q parameter
func (h *handlers) query(c *gin.Context) (string, bool) {
	q := c.Query("q")
	if strings.TrimSpace(q) == "" {
		errorJSON(c, http.StatusBadRequest, "invalid_request", "q is required")
		return "", false
	}
	if len([]rune(q)) > h.config.Server.MaxQuery {
		errorJSON(c, http.StatusBadRequest, "invalid_request", "q is too long")
		return "", false
	}
	return q, true
}

func (h *handlers) health(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	if _, err := h.engine.Current(); err != nil {
		status = "loading"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"service":   "marioserve",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"stats":     h.engine.Stats(),
	})
}

func (h *handlers) suggest(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	limit := h.config.Suggest.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "invalid_request", "limit must be an integer")
			return
		}
		limit = n
	}
	limit = min(limit, h.config.Server.MaxLimit)

	suggestions := h.engine.Suggest(q, limit)
	if suggestions == nil {
		suggestions = []suggest.Suggestion{}
	}
	c.JSON(http.StatusOK, SuggestResponse{Query: q, Suggestions: suggestions, Count: len(suggestions)})
}

func (h *handlers) resolve(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.engine.Resolve(q))
}

func (h *handlers) rank(c *gin.Context) {
	var req RankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	spec := h.config.FilterSpec()
	if req.Network != "" {
		spec = spec.WithNetwork(req.Network)
	}
	if req.MaxDistance != nil {
		spec = spec.WithMaxDistance(*req.MaxDistance)
	}
	lo, hi := spec.PriceRange[0], spec.PriceRange[1]
	if req.MinPrice != nil {
		lo = *req.MinPrice
	}
	if req.MaxPrice != nil {
		hi = *req.MaxPrice
	}
	spec = spec.WithPriceRange(lo, hi).WithSortBy(rank.ParseSortBy(req.SortBy))
	page := rank.PageRequest{Offset: req.Offset, Limit: req.Limit}

	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusOK, RankResponse{Page: h.engine.Rank(spec, page)})
		return
	}
	res, p := h.engine.Search(req.Query, spec, page)
	c.JSON(http.StatusOK, RankResponse{Page: p, Resolved: &res})
}

func (h *handlers) spell(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	correction, changed := h.engine.Spell(q)
	resp := gin.H{"query": q, "changed": changed}
	if changed {
		resp["did_you_mean"] = correction
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) sortOptions(c *gin.Context) {
	opts := make([]gin.H, len(rank.SortOptions))
	for i, o := range rank.SortOptions {
		opts[i] = gin.H{"value": o.SortBy, "label": o.Label}
	}
	c.JSON(http.StatusOK, opts)
}

func (h *handlers) refresh(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), refreshTimeout)
	defer cancel()
	if err := h.engine.Refresh(ctx); err != nil {
		errorJSON(c, http.StatusBadGateway, "refresh_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "stats": h.engine.Stats()})
}
