package model

// Role user role
type Role string

// Roles
const (
	RoleRegular Role = "REGULAR"
	RoleOwner   Role = "OWNER"
)

// Identity is derived from a verified phone number and never stored
type Identity struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phone_number"`
	Role        Role   `json:"role"`
	DisplayName string `json:"name"`
}

// IsOwner check identity is the store owner
func (i *Identity) IsOwner() bool {
	return i.Role == RoleOwner
}
