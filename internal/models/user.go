package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin      UserRole = "SUPER_ADMIN"
	RoleDepartmentAdmin UserRole = "DEPARTMENT_ADMIN"
	RoleStudent         UserRole = "STUDENT"
)

// JWTClaims represents the access token payload issued by the identity service.
// DepartmentID is set for department admins.
type JWTClaims struct {
	UserID       string   `json:"user_id"`
	Role         UserRole `json:"role"`
	Email        string   `json:"email"`
	DepartmentID string   `json:"department_id,omitempty"`
	jwt.RegisteredClaims
}

// AdminScope is the capability derived once at the boundary: which
// departments an administrator may see. An empty DepartmentID means all.
type AdminScope struct {
	UserID       string
	Role         UserRole
	DepartmentID string
}

// Allows reports whether departmentID is visible within the scope.
func (s AdminScope) Allows(departmentID string) bool {
	return s.DepartmentID == "" || s.DepartmentID == departmentID
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
