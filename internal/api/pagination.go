package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/types"
)

// maxPageSize caps the limit query parameter
const maxPageSize = 100

// pageParams are the 1-based page number and page size of a list request
type pageParams struct {
	Page  int
	Limit int
}

// parsePage reads page and limit. A malformed or non-positive page is
// reported as !ok; a malformed limit falls back to the default and a large
// one is clamped to maxPageSize.
func parsePage(c *gin.Context, defaultLimit int) (pageParams, bool) {
	p := pageParams{Page: 1, Limit: defaultLimit}
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return p, false
		}
		p.Page = n
	}
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			p.Limit = min(n, maxPageSize)
		}
	}
	return p, true
}

// inRange reports whether the page exists for count items; page 1 always does
func (p pageParams) inRange(count int64) bool {
	return p.Page == 1 || int64(p.Page-1)*int64(p.Limit) < count
}

// newPage wraps results with absolute next/previous links built from baseURL
// and the request's path and query.
func newPage[T any](c *gin.Context, baseURL string, p pageParams, count int64, results []T) types.Page[T] {
	if results == nil {
		results = []T{}
	}
	out := types.Page[T]{Count: count, Results: results}
	if int64(p.Page)*int64(p.Limit) < count {
		out.Next = pageLink(c, baseURL, p.Page+1)
	}
	if p.Page > 1 {
		out.Previous = pageLink(c, baseURL, p.Page-1)
	}
	return out
}

func pageLink(c *gin.Context, baseURL string, page int) *string {
	q := url.Values{}
	for k, v := range c.Request.URL.Query() {
		q[k] = v
	}
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	link := baseURL + c.Request.URL.Path
	if encoded := q.Encode(); encoded != "" {
		link += "?" + encoded
	}
	return &link
}

func invalidPage(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"detail": "Invalid page."})
}
