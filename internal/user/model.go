package user

import (
	"time"

	"github.com/linkaid/platform/internal/auth"
	"github.com/linkaid/platform/internal/shared/types"
)

// Profile represents a user profile document, keyed by identity UID.
type Profile struct {
	ID         types.ID  `json:"id"`
	FullName   string    `json:"full_name"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Role       auth.Role `json:"role"`
	IsVerified bool      `json:"is_verified"`
	CompanyID  *types.ID `json:"company_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
}

// SignUpRequest is the self-service registration request.
type SignUpRequest struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

// SignInRequest is the credential sign-in request.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest is a partial profile update.
type UpdateProfileRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// AssignRoleRequest assigns a civilian (found by email) to a company
// role. CompanyID is required for staff roles.
type AssignRoleRequest struct {
	Email     string    `json:"email"`
	Role      auth.Role `json:"role"`
	CompanyID *types.ID `json:"company_id,omitempty"`
}

// ListFilter defines filters for listing profiles.
type ListFilter struct {
	Role      *auth.Role `json:"role,omitempty"`
	CompanyID *types.ID  `json:"company_id,omitempty"`
	Verified  *bool      `json:"verified,omitempty"`
	Search    string     `json:"search,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}

// Validate checks the sign-up request the same way the dashboard
// forms did: username length, email shape, password length.
func (r SignUpRequest) Validate() map[string]string {
	details := make(map[string]string)
	if len(r.Username) < 3 {
		details["username"] = "username must be at least 3 characters"
	}
	if len(r.Email) < 3 || !containsAt(r.Email) {
		details["email"] = "email is not valid"
	}
	if len(r.Password) < 4 {
		details["password"] = "password must be at least 4 characters"
	}
	if r.FullName == "" {
		details["full_name"] = "full name is required"
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

func containsAt(s string) bool {
	for i := 1; i < len(s)-1; i++ {
		if s[i] == '@' {
			return true
		}
	}
	return false
}
