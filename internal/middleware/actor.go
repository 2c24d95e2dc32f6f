package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/response"
)

const (
	// ContextStudentKey stores the resolved student profile.
	ContextStudentKey = "currentStudent"
	// ContextScopeKey stores the administrator scope.
	ContextScopeKey = "adminScope"
)

// ActorResolver maps token claims onto a student or an admin scope.
type ActorResolver interface {
	ResolveStudent(ctx context.Context, claims *models.JWTClaims) (*models.StudentProfile, error)
	AdminScope(claims *models.JWTClaims) (models.AdminScope, error)
}

// StudentActor loads the student behind the token once per request.
func StudentActor(resolver ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile, err := resolver.ResolveStudent(c.Request.Context(), Claims(c))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextStudentKey, profile)
		c.Next()
	}
}

// AdminActor derives the department scope of an administrator once per request.
func AdminActor(resolver ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		scope, err := resolver.AdminScope(claims)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextScopeKey, scope)
		c.Next()
	}
}

// Student returns the profile stored by StudentActor.
func Student(c *gin.Context) (*models.StudentProfile, bool) {
	value, exists := c.Get(ContextStudentKey)
	if !exists {
		return nil, false
	}
	profile, ok := value.(*models.StudentProfile)
	return profile, ok && profile != nil
}

// Scope returns the scope stored by AdminActor.
func Scope(c *gin.Context) (models.AdminScope, bool) {
	value, exists := c.Get(ContextScopeKey)
	if !exists {
		return models.AdminScope{}, false
	}
	scope, ok := value.(models.AdminScope)
	return scope, ok
}
