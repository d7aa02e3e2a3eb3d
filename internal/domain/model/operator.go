package model

import "time"

// Role is the kind of principal a session token names.
type Role string

const (
	RoleFan      Role = "fan"
	RoleCustomer Role = "customer" // sponsor-side analyst reading insights
	RoleTeam     Role = "team"     // a club reading its own fans' figures
)

// ParseRole returns the role named by s. An empty string is a fan, since
// tokens issued before roles existed carry none.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case "":
		return RoleFan, true
	case RoleFan, RoleCustomer, RoleTeam:
		return r, true
	default:
		return "", false
	}
}

// Operator is a non-fan account. Login is the customer's email or the
// team's name, unique per role.
type Operator struct {
	ID           string    `json:"id"`
	Role         Role      `json:"role"`
	Login        string    `json:"login"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
