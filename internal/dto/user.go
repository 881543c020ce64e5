package dto

import "github.com/noah-isme/rbac-console/internal/models"

// CreateUserRequest is the payload of POST /users.
type CreateUserRequest struct {
	Name     string            `json:"name" validate:"required"`
	Email    string            `json:"email" validate:"required,email"`
	Password string            `json:"password" validate:"required,min=6"`
	Role     models.Role       `json:"role" validate:"omitempty,oneof=principal teacher student"`
	Status   models.UserStatus `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

// UpdateUserRequest is the partial payload of PUT /users/:id. Nil fields are left untouched.
type UpdateUserRequest struct {
	Name     *string            `json:"name,omitempty" validate:"omitempty,min=1"`
	Email    *string            `json:"email,omitempty" validate:"omitempty,email"`
	Password *string            `json:"password,omitempty" validate:"omitempty,min=6"`
	Role     *models.Role       `json:"role,omitempty" validate:"omitempty,oneof=principal teacher student"`
	Status   *models.UserStatus `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

// Empty reports whether the update carries no field at all.
func (r UpdateUserRequest) Empty() bool {
	return r.Name == nil && r.Email == nil && r.Password == nil && r.Role == nil && r.Status == nil
}

// ListUsersQuery mirrors the query string of GET /users.
type ListUsersQuery struct {
	Page   int
	Limit  int
	Search string
	Role   models.Role
}

// ListUsersResponse is the body of GET /users.
type ListUsersResponse struct {
	Users      []models.User `json:"users"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"totalPages"`
}

// MessageResponse is returned by endpoints without a resource body.
type MessageResponse struct {
	Message string `json:"message"`
}
