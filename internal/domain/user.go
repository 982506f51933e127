package domain

// Provider tags how a user signs in.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
)

// Role is a named permission set granted to a user.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleHotelOwner Role = "hotel_owner"
	RoleStaff      Role = "staff"
	RoleCustomer   Role = "customer"
)

// RoleRecord is a role assignment as reported by the backend.
type RoleRecord struct {
	ID   string `json:"id,omitempty"`
	Name Role   `json:"name"`
}

// User is the identity projection returned by the backend. It is replaced,
// never patched, whenever a fresh copy is fetched.
type User struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	Name      string       `json:"name"`
	AvatarURL *string      `json:"avatarUrl,omitempty"`
	Role      Role         `json:"role"`
	Roles     []RoleRecord `json:"roles,omitempty"`
	IsActive  bool         `json:"isActive"`
	HotelID   *string      `json:"hotelId,omitempty"`
	Provider  Provider     `json:"provider"`
}

// HasRole reports whether the primary role or any role record matches.
func (u *User) HasRole(role Role) bool {
	if u == nil {
		return false
	}
	if u.Role == role {
		return true
	}
	for _, r := range u.Roles {
		if r.Name == role {
			return true
		}
	}
	return false
}
