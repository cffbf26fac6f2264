package constants

// Actor roles used across booking ownership checks, status history rows
// and realtime room membership.
const (
	RoleCustomer  = "customer"
	RoleCollector = "collector"
	RoleAdmin     = "admin"
	RoleSystem    = "system"
)

// ValidRoles lists the roles a connecting client may authenticate as.
var ValidRoles = []string{
	RoleCustomer,
	RoleCollector,
	RoleAdmin,
}

// IsValidRole reports whether the given role is one a client may present.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
