package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/course-enrollment-api/internal/middleware"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

func studentFromContext(c *gin.Context) (*models.StudentProfile, error) {
	profile, ok := middleware.Student(c)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student access only")
	}
	return profile, nil
}

func scopeFromContext(c *gin.Context) (models.AdminScope, error) {
	scope, ok := middleware.Scope(c)
	if !ok {
		return models.AdminScope{}, appErrors.Clone(appErrors.ErrForbidden, "admin access only")
	}
	return scope, nil
}

func invalid(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}

func defaultValidator(v *validator.Validate) *validator.Validate {
	if v == nil {
		return validator.New()
	}
	return v
}

// pathID reads a UUID path parameter.
func pathID(c *gin.Context, validate *validator.Validate, name string) (string, error) {
	id := c.Param(name)
	if err := validate.Var(id, "required,uuid"); err != nil {
		return "", invalid(err, name+" must be a valid id")
	}
	return id, nil
}
