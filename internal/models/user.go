package models

// User roles recognized by the marketplace.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// User represents a marketplace account.
type User struct {
	ID       string `json:"id" validate:"omitempty,uuid"`
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password,omitempty" validate:"required,min=6"` // bcrypt hash once stored
	Role     string `json:"role" validate:"omitempty,oneof=buyer seller admin"`
}
