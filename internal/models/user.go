package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleTeacher UserRole = "teacher"
	RoleStudent UserRole = "student"
)

// Valid reports whether the role is one the system recognises.
func (r UserRole) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// Profile represents an account stored in the profiles table.
type Profile struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         UserRole  `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Info strips credentials from the profile.
func (p Profile) Info() UserInfo {
	return UserInfo{ID: p.ID, Email: p.Email, FullName: p.FullName, Role: p.Role}
}

// Identity is the caller resolved from a validated access token. It is built once per
// request and passed explicitly to services.
type Identity struct {
	UserID string
	Role   UserRole
}

// IdentityFromClaims builds an Identity from token claims.
func IdentityFromClaims(claims *JWTClaims) (Identity, bool) {
	if claims == nil || claims.UserID == "" {
		return Identity{}, false
	}
	return Identity{UserID: claims.UserID, Role: claims.Role}, true
}

func (i Identity) IsStudent() bool { return i.Role == RoleStudent }

func (i Identity) IsTeacher() bool { return i.Role == RoleTeacher }

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
