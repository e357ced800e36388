package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/pkg/logger"
)

const (
	msgNotFound   = "Not found."
	msgForbidden  = "You do not have permission to perform this action."
	msgBadLogin   = "Unable to log in with provided credentials."
	msgInternal   = "Internal server error."
	msgBadPayload = "Invalid request body."
)

// respondError maps service errors onto HTTP responses
func respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	var rerr *service.RelationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, verr.Fields)
	case errors.As(err, &rerr):
		c.JSON(http.StatusBadRequest, gin.H{"errors": rerr.Message})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": msgNotFound})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"detail": msgForbidden})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"non_field_errors": []string{msgBadLogin}})
	case errors.Is(err, service.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token."})
	case errors.Is(err, service.ErrShortLinkExhausted):
		logger.Error(c.Request.Context()).Err(err).Msg("short link allocation failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Could not allocate a short link, try again later."})
	default:
		logger.Error(c.Request.Context()).Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": msgInternal})
	}
}

// bindingError converts a gin binding failure into field messages
func bindingError(err error) *service.ValidationError {
	verr := service.NewValidationError()
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("non_field_errors", msgBadPayload)
		return verr
	}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), fieldMessage(fe))
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "username":
		return "Enter a valid username."
	case "slug":
		return "Enter a valid slug."
	default:
		return "Invalid value."
	}
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"detail": msgNotFound})
}
