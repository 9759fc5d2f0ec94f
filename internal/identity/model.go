package identity

import "time"

// Role values assigned to platform members. Operators may perform
// pool-level token operations such as revenue deposits.
const (
	RoleMember   = "member"
	RoleOperator = "operator"
)

// User represents a registered platform member. TokenVersion increments on
// logout so previously issued tokens stop verifying.
type User struct {
	ID           string
	Email        string
	Username     string
	Role         string
	PasswordHash []byte
	TokenVersion int
	CreatedAt    time.Time
}

// Credentials request structure.
type Credentials struct {
	Email    string
	Username string
	Password string
}
