package domain

// Role is a platform role carried in the auth context.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleLecturer Role = "lecturer"
	RoleLearner  Role = "learner"
)

// Roles lists every platform role.
var Roles = []Role{RoleAdmin, RoleLecturer, RoleLearner}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleLecturer, RoleLearner:
		return true
	}
	return false
}

// Room is the realtime room shared by every connection holding the role.
func (r Role) Room() string {
	switch r {
	case RoleAdmin:
		return "admins"
	case RoleLecturer:
		return "lecturers"
	case RoleLearner:
		return "learners"
	}
	return ""
}

// Topic is the push topic every device of a user holding the role subscribes to.
func (r Role) Topic() Topic {
	switch r {
	case RoleAdmin:
		return TopicAdmins
	case RoleLecturer:
		return TopicLecturers
	case RoleLearner:
		return TopicLearners
	}
	return ""
}

// ParseRoles keeps the known roles of raw, dropping duplicates and unknown values.
func ParseRoles(raw []string) []Role {
	var roles []Role
	seen := make(map[Role]bool, len(raw))
	for _, s := range raw {
		r := Role(s)
		if r.Valid() && !seen[r] {
			seen[r] = true
			roles = append(roles, r)
		}
	}
	return roles
}

// HasRole reports whether roles contains r.
func HasRole(roles []Role, r Role) bool {
	for _, have := range roles {
		if have == r {
			return true
		}
	}
	return false
}
