package leadview

// Role determines which leads a viewer may see and which bulk operations
// they may run.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDesk    Role = "desk"
	RoleManager Role = "manager"
	RoleAgent   Role = "agent"
)

// ParseRole maps a wire value onto the role enum. Anything outside the
// enum is rejected rather than falling through to an implicit allow.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleDesk, RoleManager, RoleAgent:
		return Role(s), nil
	}
	return "", ErrUnknownRole
}

// Viewer is the authenticated actor. Identity and role come from the
// upstream auth proxy; this service never mints viewers itself.
type Viewer struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// Subordinates is the precomputed set of user ids under a desk or
// manager viewer.
type Subordinates map[string]struct{}

// NewSubordinates builds the set from the hierarchy query result.
func NewSubordinates(ids []string) Subordinates {
	s := make(Subordinates, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Subordinates) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Visible reports whether the viewer may see the lead. Pure: no side
// effects, safe to apply to any batch independently. Unrecognized roles
// see nothing.
func Visible(lead Lead, viewer Viewer, subs Subordinates) bool {
	switch viewer.Role {
	case RoleAdmin:
		return true
	case RoleDesk:
		return lead.Desk == viewer.DisplayName ||
			lead.AssignedTo == viewer.ID ||
			subs.Contains(lead.AssignedTo)
	case RoleManager:
		return lead.AssignedTo == viewer.ID || subs.Contains(lead.AssignedTo)
	case RoleAgent:
		return lead.AssignedTo == viewer.ID
	}
	return false
}

// FilterVisible narrows a batch of leads to those the viewer may see.
func FilterVisible(leads []Lead, viewer Viewer, subs Subordinates) []Lead {
	out := make([]Lead, 0, len(leads))
	for _, l := range leads {
		if Visible(l, viewer, subs) {
			out = append(out, l)
		}
	}
	return out
}
