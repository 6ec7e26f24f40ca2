package handler

import (
	"github.com/learnhub/user-service/internal/core/domain"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Message string `json:"message"`
}

// --- Request / Response types ---

type registerRequest struct {
	Username string `json:"username" validate:"required,alphanum,min=3,max=30"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role"     validate:"omitempty,oneof=learner instructor admin"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// updateProfileRequest only lists fields a caller may change. Role, id and
// timestamps are not accepted here.
type updateProfileRequest struct {
	Username *string `json:"username,omitempty" validate:"omitempty,alphanum,min=3,max=30"`
	Email    *string `json:"email,omitempty"    validate:"omitempty,email"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=6,max=72"`
}

type loginResponse struct {
	Token string               `json:"token"`
	User  domain.PublicAccount `json:"user"`
}
