package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

type UserHandler struct {
	userService service.IUserService
	publicURL   string
	pageSize    int
}

func NewUserHandler(userService service.IUserService, publicURL string, pageSize int) *UserHandler {
	return &UserHandler{
		userService: userService,
		publicURL:   publicURL,
		pageSize:    pageSize,
	}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup, requireAuth, optionalAuth gin.HandlerFunc) {
	users := router.Group("/users")
	{
		users.POST("/", h.Register)
		users.GET("/", optionalAuth, h.ListUsers)
		users.GET("/me/", requireAuth, h.Me)
		users.GET("/subscriptions/", requireAuth, h.Subscriptions)
		users.POST("/set_password/", requireAuth, h.SetPassword)
		users.PUT("/me/avatar/", requireAuth, h.SetAvatar)
		users.DELETE("/me/avatar/", requireAuth, h.DeleteAvatar)
		users.GET("/:id/", optionalAuth, h.GetUser)
		users.POST("/:id/subscribe/", requireAuth, h.Subscribe)
		users.DELETE("/:id/subscribe/", requireAuth, h.Unsubscribe)
	}
}

func (h *UserHandler) Register(c *gin.Context) {
	var req types.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindingError(err))
		return
	}

	user, err := h.userService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, types.RegisterResponse{
		Email:     user.Email,
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	p, ok := parsePage(c, h.pageSize)
	if !ok {
		invalidPage(c)
		return
	}

	users, total, err := h.userService.ListUsers(c.Request.Context(), middleware.UserID(c), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if !p.inRange(total) {
		invalidPage(c)
		return
	}

	c.JSON(http.StatusOK, newPage(c, h.publicURL, p, total, users))
}

func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.GetUser(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Me(c *gin.Context) {
	userID := middleware.UserID(c)
	user, err := h.userService.GetUser(c.Request.Context(), userID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) SetPassword(c *gin.Context) {
	var req types.SetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindingError(err))
		return
	}

	if err := h.userService.SetPassword(c.Request.Context(), middleware.UserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) SetAvatar(c *gin.Context) {
	var req types.AvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindingError(err))
		return
	}

	url, err := h.userService.SetAvatar(c.Request.Context(), middleware.UserID(c), req.Avatar)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.AvatarResponse{Avatar: url})
}

func (h *UserHandler) DeleteAvatar(c *gin.Context) {
	if err := h.userService.DeleteAvatar(c.Request.Context(), middleware.UserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) Subscriptions(c *gin.Context) {
	p, ok := parsePage(c, h.pageSize)
	if !ok {
		invalidPage(c)
		return
	}

	subs, total, err := h.userService.Subscriptions(c.Request.Context(), middleware.UserID(c), p.Page, p.Limit, recipesLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if !p.inRange(total) {
		invalidPage(c)
		return
	}

	c.JSON(http.StatusOK, newPage(c, h.publicURL, p, total, subs))
}

func (h *UserHandler) Subscribe(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sub, err := h.userService.Subscribe(c.Request.Context(), middleware.UserID(c), id, recipesLimit(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *UserHandler) Unsubscribe(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.userService.Unsubscribe(c.Request.Context(), middleware.UserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// recipesLimit caps the recipe preview; absent or invalid means no cap
func recipesLimit(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("recipes_limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
