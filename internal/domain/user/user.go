package user

import (
	"errors"
	"math"
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrEmailTaken  = errors.New("email already in use")
	ErrInvalidRole = errors.New("invalid role")
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	}
	return false
}

// ParseRole accepts the wire form of a role. Matching is case-insensitive so
// "admin" and "ADMIN" resolve to the same role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Public is the outbound shape of a user. It has no credential field at all,
// so nothing that serializes a Public can leak the hash.
type Public struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u User) Public() Public {
	return Public{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type CreateInput struct {
	Email    string
	Password string
	Name     string
	Role     Role // empty means RoleUser
}

// with pointers if optional, nil fields are left untouched
type UpdateInput struct {
	Email *string
	Name  *string
	Role  *Role
}

func (in UpdateInput) Empty() bool {
	return in.Email == nil && in.Name == nil && in.Role == nil
}

type ListFilter struct {
	Page   int
	Limit  int
	Search string
}

// Offset saturates at math.MaxInt instead of overflowing, so an absurd page
// lands past the last row.
func (f ListFilter) Offset() int {
	if f.Page < 1 || f.Limit < 1 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.Limit {
		return math.MaxInt
	}
	return (f.Page - 1) * f.Limit
}
