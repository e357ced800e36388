package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

const (
	shoppingListFilename = "shopping_cart.txt"
	maxUploadBytes       = 10 << 20
)

// RecipeHandler handles recipe CRUD, membership toggles, the shopping list
// download and short link issuance
type RecipeHandler struct {
	recipes   service.IRecipeService
	shopping  service.IShoppingListService
	links     *ShortLinkHandler
	limiter   *middleware.RateLimiter
	publicURL string
	pageSize  int
}

func NewRecipeHandler(deps Deps, pageSize int) *RecipeHandler {
	return &RecipeHandler{
		recipes:   deps.Recipes,
		shopping:  deps.Shopping,
		links:     NewShortLinkHandler(deps.Links, deps.PublicURL),
		limiter:   deps.CreateLimiter,
		publicURL: deps.PublicURL,
		pageSize:  pageSize,
	}
}

func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup, requireAuth, optionalAuth gin.HandlerFunc) {
	create := []gin.HandlerFunc{requireAuth}
	if h.limiter != nil {
		create = append(create, h.limiter.RateLimitMiddleware())
	}
	create = append(create, h.CreateRecipe)

	recipes := router.Group("/recipes")
	{
		recipes.GET("/", optionalAuth, h.ListRecipes)
		recipes.POST("/", create...)
		recipes.GET("/download_shopping_cart/", requireAuth, h.DownloadShoppingCart)
		recipes.GET("/:id/", optionalAuth, h.GetRecipe)
		recipes.PATCH("/:id/", requireAuth, h.UpdateRecipe)
		recipes.PUT("/:id/", requireAuth, h.UpdateRecipe)
		recipes.DELETE("/:id/", requireAuth, h.DeleteRecipe)
		recipes.GET("/:id/get-link/", h.links.GetLink)
		recipes.POST("/:id/favorite/", requireAuth, h.AddFavorite)
		recipes.DELETE("/:id/favorite/", requireAuth, h.RemoveFavorite)
		recipes.POST("/:id/shopping_cart/", requireAuth, h.AddToShoppingCart)
		recipes.DELETE("/:id/shopping_cart/", requireAuth, h.RemoveFromShoppingCart)
	}
}

func (h *RecipeHandler) ListRecipes(c *gin.Context) {
	p, ok := parsePage(c, h.pageSize)
	if !ok {
		invalidPage(c)
		return
	}

	filter := types.RecipeFilter{
		TagSlugs:         c.QueryArray("tags"),
		IsFavorited:      c.Query("is_favorited") == "1",
		IsInShoppingCart: c.Query("is_in_shopping_cart") == "1",
		Page:             p.Page,
		Limit:            p.Limit,
	}
	if raw := c.Query("author"); raw != "" {
		author, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, fieldErr("author", "Select a valid choice."))
			return
		}
		filter.AuthorID = uint(author)
	}

	recipes, total, err := h.recipes.ListRecipes(c.Request.Context(), middleware.UserID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if !p.inRange(total) {
		invalidPage(c)
		return
	}

	c.JSON(http.StatusOK, newPage(c, h.publicURL, p, total, recipes))
}

func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	recipe, err := h.recipes.GetRecipe(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *RecipeHandler) CreateRecipe(c *gin.Context) {
	req, err := readRecipeRequest(c)
	if err != nil {
		respondError(c, err)
		return
	}

	recipe, err := h.recipes.CreateRecipe(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

// UpdateRecipe serves both PATCH and PUT. tags and ingredients are required
// either way; other omitted fields keep their values.
func (h *RecipeHandler) UpdateRecipe(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	req, err := readRecipeRequest(c)
	if err != nil {
		respondError(c, err)
		return
	}

	recipe, err := h.recipes.UpdateRecipe(c.Request.Context(), middleware.UserID(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.recipes.DeleteRecipe(c.Request.Context(), middleware.UserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RecipeHandler) AddFavorite(c *gin.Context) {
	h.addMembership(c, h.recipes.AddFavorite)
}

func (h *RecipeHandler) RemoveFavorite(c *gin.Context) {
	h.removeMembership(c, h.recipes.RemoveFavorite)
}

func (h *RecipeHandler) AddToShoppingCart(c *gin.Context) {
	h.addMembership(c, h.recipes.AddToShoppingCart)
}

func (h *RecipeHandler) RemoveFromShoppingCart(c *gin.Context) {
	h.removeMembership(c, h.recipes.RemoveFromShoppingCart)
}

func (h *RecipeHandler) addMembership(c *gin.Context, add func(ctx context.Context, userID, recipeID uint) (*types.RecipeShortResponse, error)) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	short, err := add(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, short)
}

func (h *RecipeHandler) removeMembership(c *gin.Context, remove func(ctx context.Context, userID, recipeID uint) error) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := remove(c.Request.Context(), middleware.UserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DownloadShoppingCart returns the caller's aggregated list as a text attachment
func (h *RecipeHandler) DownloadShoppingCart(c *gin.Context) {
	list, err := h.shopping.Render(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+shoppingListFilename+`"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(list))
}

// readRecipeRequest accepts a JSON body or a multipart form. In a form the
// image is a file part, tags repeat and ingredients is a JSON array.
func readRecipeRequest(c *gin.Context) (*types.RecipeWriteRequest, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		var req types.RecipeWriteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, bindingError(err)
		}
		return &req, nil
	}

	verr := service.NewValidationError()
	req := &types.RecipeWriteRequest{}
	if v, ok := c.GetPostForm("name"); ok {
		req.Name = &v
	}
	if v, ok := c.GetPostForm("text"); ok {
		req.Text = &v
	}
	if v, ok := c.GetPostForm("cooking_time"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			verr.Add("cooking_time", "A valid integer is required.")
		} else {
			req.CookingTime = &n
		}
	}
	if values, ok := c.GetPostFormArray("tags"); ok {
		req.Tags = make([]uint, 0, len(values))
		for _, v := range values {
			id, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
			if err != nil {
				verr.Add("tags", "Incorrect type. Expected pk value.")
				continue
			}
			req.Tags = append(req.Tags, uint(id))
		}
	}
	if v, ok := c.GetPostForm("ingredients"); ok {
		if err := json.Unmarshal([]byte(v), &req.Ingredients); err != nil {
			verr.Add("ingredients", "Expected a list of items.")
		}
		if req.Ingredients == nil {
			req.Ingredients = []types.IngredientAmount{}
		}
	}

	image, err := formImage(c)
	switch {
	case err != nil:
		verr.Add("image", "Upload a valid image.")
	case image != "":
		req.Image = &image
	default:
		if v, ok := c.GetPostForm("image"); ok {
			req.Image = &v
		}
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}
	return req, nil
}

// formImage reads the image file part as base64; "" means no file was sent
func formImage(c *gin.Context) (string, error) {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > maxUploadBytes {
		return "", errors.New("image too large")
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func fieldErr(field, msg string) error {
	verr := service.NewValidationError()
	verr.Add(field, msg)
	return verr
}
