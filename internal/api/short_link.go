package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

type ShortLinkHandler struct {
	links     service.IShortLinkService
	publicURL string
}

func NewShortLinkHandler(links service.IShortLinkService, publicURL string) *ShortLinkHandler {
	return &ShortLinkHandler{links: links, publicURL: publicURL}
}

// GetLink issues or returns the recipe's short link
func (h *ShortLinkHandler) GetLink(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	link, err := h.links.GetOrCreate(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.ShortLinkResponse{ShortLink: h.links.URL(link.Code)})
}

// Redirect sends a short link to the canonical recipe URL
func (h *ShortLinkHandler) Redirect(c *gin.Context) {
	recipeID, err := h.links.Resolve(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("%s/api/recipes/%d/", h.publicURL, recipeID))
}
