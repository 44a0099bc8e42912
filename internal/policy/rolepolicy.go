package policy

import "github.com/assacalos/megvie/internal/model"

// Role sets used by the route gates.
var (
	// Observers may read everything but never change member data.
	Observers = []model.Role{model.RoleAdmin}

	UserManagers = []model.Role{model.RoleSousAdmin}
	UserReaders  = []model.Role{model.RoleAdmin, model.RoleSousAdmin}
	SmsSenders   = []model.Role{model.RoleSousAdmin, model.RolePastor}
)

// HasRole reports whether u carries one of roles.
func HasRole(u *model.User, roles ...model.Role) bool {
	if u == nil {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}
