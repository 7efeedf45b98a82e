package dto

import (
	"time"

	"github.com/sessiongate/auth-gateway/internal/domain"
)

// UserResponse is the public view of a user. Password hash, verification
// token and session tokens are never part of it.
type UserResponse struct {
	ID            string         `json:"id"`
	Username      string         `json:"username"`
	Email         string         `json:"email"`
	Role          domain.Role    `json:"role"`
	Profile       domain.Profile `json:"profile"`
	EmailVerified bool           `json:"emailVerified"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		Role:          user.Role,
		Profile:       user.Profile,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

// NewUserResponses maps a slice of users.
func NewUserResponses(users []*domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, NewUserResponse(user))
	}
	return out
}

// UpdateProfileRequest is the body of PATCH /me.
type UpdateProfileRequest struct {
	Profile *domain.Profile `json:"profile"`
}

// CreateUserRequest is the admin create body.
type CreateUserRequest struct {
	Username string         `json:"username"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Role     domain.Role    `json:"role"`
	Profile  domain.Profile `json:"profile"`
}

// UpdateUserRequest is the admin PUT body.
type UpdateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// PatchUserRequest is the admin PATCH body; absent fields are left alone.
type PatchUserRequest struct {
	Username *string         `json:"username"`
	Email    *string         `json:"email"`
	Role     *domain.Role    `json:"role"`
	Profile  *domain.Profile `json:"profile"`
}

// PaginationMeta describes a page of results.
type PaginationMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}
