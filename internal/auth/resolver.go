package auth

import (
	"fmt"
	"strings"
)

// PermissionKind is a capability level within a workstream.
type PermissionKind string

const (
	PermissionAdmin PermissionKind = "Admin"
	PermissionEdit  PermissionKind = "Edit"
	PermissionRead  PermissionKind = "Read"
)

var permissionKinds = []PermissionKind{PermissionAdmin, PermissionEdit, PermissionRead}

// ParsePermissionKind maps s onto the canonical kind, ignoring case.
func ParsePermissionKind(s string) (PermissionKind, error) {
	s = strings.TrimSpace(s)
	for _, k := range permissionKinds {
		if strings.EqualFold(s, string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPermission, s)
}

// CheckKind enumerates the fixed set of access checks.
type CheckKind int

const (
	CheckGlobalAdmin CheckKind = iota + 1
	CheckWorkstreamMember
	CheckWorkstreamPermission
	CheckPropertyHub
	CheckPropertyHubAdmin
	CheckPropertyGroup
)

func (k CheckKind) String() string {
	switch k {
	case CheckGlobalAdmin:
		return "global_admin"
	case CheckWorkstreamMember:
		return "workstream_member"
	case CheckWorkstreamPermission:
		return "workstream_permission"
	case CheckPropertyHub:
		return "property_hub"
	case CheckPropertyHubAdmin:
		return "property_hub_admin"
	case CheckPropertyGroup:
		return "property_group"
	default:
		return "unknown"
	}
}

// Check is one question asked of a caller's facts.
type Check struct {
	Kind            CheckKind
	WorkstreamID    string
	Permission      PermissionKind
	PropertyGroupID string
}

func GlobalAdmin() Check { return Check{Kind: CheckGlobalAdmin} }

func WorkstreamMember(workstreamID string) Check {
	return Check{Kind: CheckWorkstreamMember, WorkstreamID: workstreamID}
}

func WorkstreamPermission(workstreamID string, perm PermissionKind) Check {
	return Check{Kind: CheckWorkstreamPermission, WorkstreamID: workstreamID, Permission: perm}
}

func PropertyHubAccess() Check { return Check{Kind: CheckPropertyHub} }

func PropertyHubAdminAccess() Check { return Check{Kind: CheckPropertyHubAdmin} }

func PropertyGroupAccess(groupID string) Check {
	return Check{Kind: CheckPropertyGroup, PropertyGroupID: groupID}
}

// Reason is the static text returned to callers that fail the check.
func (c Check) Reason() string {
	switch c.Kind {
	case CheckGlobalAdmin:
		return "Access denied: Global Admin role required"
	case CheckWorkstreamMember:
		return "Access denied: workstream membership required"
	case CheckWorkstreamPermission:
		return "Access denied: workstream permission required"
	case CheckPropertyHub:
		return "Access denied: Property Hub access required"
	case CheckPropertyHubAdmin:
		return "Access denied: Property Hub Admin permission required"
	case CheckPropertyGroup:
		return "Access denied: property group access required"
	default:
		return "Access denied"
	}
}

func (c Check) validate() error {
	switch c.Kind {
	case CheckGlobalAdmin, CheckPropertyHub, CheckPropertyHubAdmin:
		return nil
	case CheckWorkstreamMember:
		if c.WorkstreamID == "" {
			return fmt.Errorf("%w: workstream id required", ErrInvalidInput)
		}
		return nil
	case CheckWorkstreamPermission:
		if c.WorkstreamID == "" {
			return fmt.Errorf("%w: workstream id required", ErrInvalidInput)
		}
		_, err := ParsePermissionKind(string(c.Permission))
		return err
	case CheckPropertyGroup:
		if c.PropertyGroupID == "" {
			return fmt.Errorf("%w: property group id required", ErrInvalidInput)
		}
		return nil
	default:
		return fmt.Errorf("%w: check kind %d", ErrInvalidInput, int(c.Kind))
	}
}

// Resolve answers c against f. A malformed check is an error; an ordinary
// denial is (false, nil). Global administrators pass every well-formed check.
func Resolve(f Facts, c Check) (bool, error) {
	if err := c.validate(); err != nil {
		return false, err
	}
	if f.GlobalAdmin {
		return true, nil
	}
	switch c.Kind {
	case CheckWorkstreamMember:
		_, ok := f.Workstreams[c.WorkstreamID]
		return ok, nil
	case CheckWorkstreamPermission:
		ws, ok := f.Workstreams[c.WorkstreamID]
		return ok && strings.EqualFold(string(ws.Permission), string(c.Permission)), nil
	case CheckPropertyHub:
		for _, ws := range f.Workstreams {
			if ws.PropertyHub {
				return true, nil
			}
		}
		return false, nil
	case CheckPropertyHubAdmin:
		for _, ws := range f.Workstreams {
			if ws.PropertyHub && strings.EqualFold(string(ws.Permission), string(PermissionAdmin)) {
				return true, nil
			}
		}
		return false, nil
	case CheckPropertyGroup:
		_, ok := f.PropertyGroups[c.PropertyGroupID]
		return ok, nil
	}
	return false, nil
}

// Require resolves every check in order and returns a *ForbiddenError for
// the first one that denies.
func Require(f Facts, checks ...Check) error {
	for _, c := range checks {
		ok, err := Resolve(f, c)
		if err != nil {
			return err
		}
		if !ok {
			return &ForbiddenError{Check: c.Kind, Reason: c.Reason()}
		}
	}
	return nil
}
