package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/pkg/config"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type studentLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.StudentProfile, error)
}

// IdentityService trusts access tokens minted by the account service and maps
// their subject onto an enrollment actor or an administrative scope.
type IdentityService struct {
	cfg      config.JWTConfig
	students studentLookup
	logger   *zap.Logger
}

// NewIdentityService constructs IdentityService.
func NewIdentityService(cfg config.JWTConfig, students studentLookup, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{cfg: cfg, students: students, logger: logger}
}

// ValidateToken parses and validates an HS256 access token.
func (s *IdentityService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ResolveStudent loads the student bound to the token subject.
func (s *IdentityService) ResolveStudent(ctx context.Context, claims *models.JWTClaims) (*models.StudentProfile, error) {
	if claims == nil || claims.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student access only")
	}
	profile, err := s.students.FindByUserID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no student record for this account")
		}
		s.logger.Error("failed to resolve student", zap.String("user_id", claims.UserID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve student")
	}
	return profile, nil
}

// AdminScope derives the department visibility of an administrator.
// Department admins without a department see nothing.
func (s *IdentityService) AdminScope(claims *models.JWTClaims) (models.AdminScope, error) {
	if claims == nil {
		return models.AdminScope{}, appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleSuperAdmin:
		return models.AdminScope{UserID: claims.UserID, Role: claims.Role}, nil
	case models.RoleDepartmentAdmin:
		if claims.DepartmentID == "" {
			return models.AdminScope{}, appErrors.Clone(appErrors.ErrForbidden, "department admin has no department")
		}
		return models.AdminScope{UserID: claims.UserID, Role: claims.Role, DepartmentID: claims.DepartmentID}, nil
	default:
		return models.AdminScope{}, appErrors.Clone(appErrors.ErrForbidden, "admin access only")
	}
}
