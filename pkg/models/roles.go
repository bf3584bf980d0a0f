package models

// Role classifies a column for anonymization purposes.
type Role string

const (
	RoleIdentifying      Role = "identifying"
	RoleQuasiIdentifying Role = "quasi_identifying"
	RoleSensitive        Role = "sensitive"
	RoleInsensitive      Role = "insensitive"
)

// AttributeRoles partitions the dataset columns into the four roles. The
// partition is fixed before a run starts and never mutated afterwards.
type AttributeRoles struct {
	Identifying      []string `json:"identifiers" mapstructure:"identifiers"`
	QuasiIdentifying []string `json:"quasi_identifiers" mapstructure:"quasi_identifiers"`
	Sensitive        []string `json:"sensitive_attributes" mapstructure:"sensitive_attributes"`
	Insensitive      []string `json:"insensitive_attributes" mapstructure:"insensitive_attributes"`
}

// RoleOf returns the role assigned to the named attribute.
func (r AttributeRoles) RoleOf(attribute string) (Role, bool) {
	for _, a := range r.Identifying {
		if a == attribute {
			return RoleIdentifying, true
		}
	}
	for _, a := range r.QuasiIdentifying {
		if a == attribute {
			return RoleQuasiIdentifying, true
		}
	}
	for _, a := range r.Sensitive {
		if a == attribute {
			return RoleSensitive, true
		}
	}
	for _, a := range r.Insensitive {
		if a == attribute {
			return RoleInsensitive, true
		}
	}
	return "", false
}

// All returns every attribute named in any role, in declaration order.
func (r AttributeRoles) All() []string {
	all := make([]string, 0, len(r.Identifying)+len(r.QuasiIdentifying)+len(r.Sensitive)+len(r.Insensitive))
	all = append(all, r.Identifying...)
	all = append(all, r.QuasiIdentifying...)
	all = append(all, r.Sensitive...)
	all = append(all, r.Insensitive...)
	return all
}

// Overlapping returns attribute names assigned to more than one role.
func (r AttributeRoles) Overlapping() []string {
	seen := make(map[string]int)
	for _, a := range r.All() {
		seen[a]++
	}
	var dup []string
	for _, a := range r.All() {
		if seen[a] > 1 {
			dup = append(dup, a)
			seen[a] = 0
		}
	}
	return dup
}
