package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/yoga-booking-api/internal/middleware"
	"github.com/noah-isme/yoga-booking-api/internal/models"
	appErrors "github.com/noah-isme/yoga-booking-api/pkg/errors"
	"github.com/noah-isme/yoga-booking-api/pkg/response"
)

// identityFromContext resolves the caller or writes a 401 and reports false.
func identityFromContext(c *gin.Context) (models.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Identity{}, false
	}
	return identity, true
}

var pathValidator = validator.New()

// uuidParam reads a path id or writes a 400 and reports false.
func uuidParam(c *gin.Context, name string) (string, bool) {
	value := c.Param(name)
	if err := pathValidator.Var(value, "required,uuid"); err != nil {
		response.Error(c, bindError(err, name+" must be a valid id"))
		return "", false
	}
	return value, true
}

func bindError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
