package models

import "github.com/golang-jwt/jwt/v5"

// Pagination describes page metadata attached to list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalItems int `json:"totalItems"`
	TotalPages int `json:"totalPages"`
}

// UserRole scopes what an authenticated actor may do.
type UserRole string

const (
	RoleAdmin        UserRole = "ADMIN"
	RoleCommission   UserRole = "COMMISSION"
	RoleProfessional UserRole = "PROFESSIONAL"
)

// JWTClaims carries the identity asserted by the external auth collaborator.
type JWTClaims struct {
	UserID string   `json:"uid"`
	Name   string   `json:"name"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}
