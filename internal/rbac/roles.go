package rbac

// Role names carried in access tokens. Keep these stable.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
	// RoleOperator may inspect operational state (pending call logs) but owns no agents by default.
	RoleOperator = "operator"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
