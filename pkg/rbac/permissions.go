package rbac

import "slices"

// Context carries the request facts that conditional grants are checked against.
type Context struct {
	// UserID is the acting user.
	UserID string
	// ResourceUserID is the owner of the resource being accessed (assignee, creator).
	ResourceUserID string
	// Attributes holds named values such as "role" of a target user or "scope".
	Attributes map[string]string
}

type conditionKind int

const (
	conditionSelf conditionKind = iota
	conditionIn
	conditionEquals
)

// Condition restricts a grant. All conditions of a grant must hold.
type Condition struct {
	Key    string
	kind   conditionKind
	values []string
}

// Self requires the actor to own the resource.
func Self(key string) Condition {
	return Condition{Key: key, kind: conditionSelf}
}

// In requires the named context attribute to be one of values.
func In(key string, values ...string) Condition {
	return Condition{Key: key, kind: conditionIn, values: values}
}

// Equals requires the named context attribute to match value exactly.
func Equals(key, value string) Condition {
	return Condition{Key: key, kind: conditionEquals, values: []string{value}}
}

// holds fails closed: a missing context value never satisfies a condition.
func (c Condition) holds(ctx Context) bool {
	switch c.kind {
	case conditionSelf:
		return ctx.UserID != "" && ctx.UserID == ctx.ResourceUserID
	case conditionIn:
		v, ok := ctx.Attributes[c.Key]
		return ok && slices.Contains(c.values, v)
	case conditionEquals:
		v, ok := ctx.Attributes[c.Key]
		return ok && v == c.values[0]
	}
	return false
}

// Permission is one (resource, action) grant with optional conditions.
type Permission struct {
	Resource   Resource
	Action     Action
	Conditions []Condition
}

func crud(res Resource, conds ...Condition) []Permission {
	out := make([]Permission, 0, 4)
	for _, a := range []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete} {
		out = append(out, Permission{Resource: res, Action: a, Conditions: conds})
	}
	return out
}

func grant(res Resource, act Action, conds ...Condition) Permission {
	return Permission{Resource: res, Action: act, Conditions: conds}
}

func join(groups ...[]Permission) []Permission {
	var out []Permission
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// rolePermissions is built once at package init and never mutated.
var rolePermissions = map[Role][]Permission{
	RoleAdmin: join(
		crud(ResourceUsers),
		crud(ResourceLeads),
		[]Permission{grant(ResourceAnalytics, ActionRead)},
		[]Permission{grant(ResourceSettings, ActionRead), grant(ResourceSettings, ActionUpdate)},
		crud(ResourceActivities),
		crud(ResourceAssignmentRules),
		crud(ResourceAssignments),
	),
	RoleManager: join(
		[]Permission{
			grant(ResourceUsers, ActionRead),
			grant(ResourceUsers, ActionUpdate, In("role", string(RoleSales), string(RoleViewer))),
		},
		crud(ResourceLeads),
		[]Permission{grant(ResourceAnalytics, ActionRead)},
		crud(ResourceActivities),
		crud(ResourceAssignmentRules),
		[]Permission{
			grant(ResourceAssignments, ActionCreate),
			grant(ResourceAssignments, ActionRead),
			grant(ResourceAssignments, ActionUpdate),
		},
	),
	RoleSales: {
		grant(ResourceLeads, ActionCreate),
		grant(ResourceLeads, ActionRead, Self("assignedTo")),
		grant(ResourceLeads, ActionUpdate, Self("assignedTo")),
		grant(ResourceLeads, ActionDelete, Self("assignedTo")),

		grant(ResourceActivities, ActionCreate),
		grant(ResourceActivities, ActionRead, Self("createdBy")),
		grant(ResourceActivities, ActionUpdate, Self("createdBy")),
		grant(ResourceActivities, ActionDelete, Self("createdBy")),

		grant(ResourceAnalytics, ActionRead, Equals("scope", "own")),

		grant(ResourceAssignments, ActionRead, Self("assignedTo")),
		grant(ResourceAssignments, ActionUpdate, Self("assignedTo")),
	},
	RoleViewer: {
		grant(ResourceLeads, ActionRead),
		grant(ResourceActivities, ActionRead),
		grant(ResourceAnalytics, ActionRead),
	},
}

func lookup(role Role, resource Resource, action Action) (Permission, bool) {
	for _, p := range rolePermissions[role] {
		if p.Resource == resource && p.Action == action {
			return p, true
		}
	}
	return Permission{}, false
}

// IsAllowed decides whether role may perform action on resource given ctx.
// Admin is allowed everything, including pairs absent from the table; this is
// the only place that bypass is implemented. Other roles are denied unless a
// grant exists and all its conditions hold.
func IsAllowed(role Role, resource Resource, action Action, ctx Context) (bool, error) {
	if !role.Valid() {
		return false, ErrUnknownRole
	}
	if role == RoleAdmin {
		return true, nil
	}
	p, ok := lookup(role, resource, action)
	if !ok {
		return false, nil
	}
	for _, c := range p.Conditions {
		if !c.holds(ctx) {
			return false, nil
		}
	}
	return true, nil
}

// HasGrant reports whether role holds any grant for (resource, action),
// ignoring conditions. Request gates use it before the resource owner is known;
// the handler then calls IsAllowed with the full context.
func HasGrant(role Role, resource Resource, action Action) (granted bool, conditional bool, err error) {
	if !role.Valid() {
		return false, false, ErrUnknownRole
	}
	if role == RoleAdmin {
		return true, false, nil
	}
	p, ok := lookup(role, resource, action)
	if !ok {
		return false, false, nil
	}
	return true, len(p.Conditions) > 0, nil
}

// AccessibleResources lists the distinct resources a role holds grants on, in table order.
func AccessibleResources(role Role) []Resource {
	var out []Resource
	for _, p := range rolePermissions[role] {
		if !slices.Contains(out, p.Resource) {
			out = append(out, p.Resource)
		}
	}
	return out
}

// ResourceActions lists the actions a role holds on one resource.
func ResourceActions(role Role, resource Resource) []Action {
	var out []Action
	for _, p := range rolePermissions[role] {
		if p.Resource == resource {
			out = append(out, p.Action)
		}
	}
	return out
}
