package auth

import (
	"sort"
	"strings"
)

// WorkstreamAccess is what a caller holds inside one workstream.
type WorkstreamAccess struct {
	Permission  PermissionKind
	PropertyHub bool
}

// Facts is the flat, request-local view of an account's grants. It is
// rebuilt from the bearer token on every request and never cached.
type Facts struct {
	GlobalAdmin    bool
	Roles          map[string]struct{}
	Workstreams    map[string]WorkstreamAccess
	PropertyGroups map[string]struct{}
}

// BuildFacts projects an identity's grants into Facts. Duplicate workstream
// grants keep the first one seen; inactive property-group grants are skipped.
func BuildFacts(id Identity) Facts {
	f := newFacts()
	for _, rg := range id.Roles {
		f.addRole(rg.Role.Kind)
	}
	for _, wg := range id.Workstreams {
		if wg.Workstream.ID == "" {
			continue
		}
		if _, seen := f.Workstreams[wg.Workstream.ID]; seen {
			continue
		}
		f.Workstreams[wg.Workstream.ID] = WorkstreamAccess{
			Permission:  wg.Permission,
			PropertyHub: wg.Workstream.PropertyHub,
		}
	}
	for _, pg := range id.PropertyGroups {
		if pg.Active && pg.PropertyGroupID != "" {
			f.PropertyGroups[pg.PropertyGroupID] = struct{}{}
		}
	}
	return f
}

func newFacts() Facts {
	return Facts{
		Roles:          map[string]struct{}{},
		Workstreams:    map[string]WorkstreamAccess{},
		PropertyGroups: map[string]struct{}{},
	}
}

// addRole dedupes kinds case-insensitively, keeping the first spelling.
func (f *Facts) addRole(kind string) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return
	}
	for existing := range f.Roles {
		if strings.EqualFold(existing, kind) {
			return
		}
	}
	f.Roles[kind] = struct{}{}
	if strings.EqualFold(kind, GlobalAdminKind) {
		f.GlobalAdmin = true
	}
}

// HasRole reports whether the caller holds a role of the given kind.
func (f Facts) HasRole(kind string) bool {
	for existing := range f.Roles {
		if strings.EqualFold(existing, kind) {
			return true
		}
	}
	return false
}

// RoleList returns the role kinds sorted.
func (f Facts) RoleList() []string {
	return sortedKeys(f.Roles)
}

// PropertyGroupList returns the property group ids sorted.
func (f Facts) PropertyGroupList() []string {
	return sortedKeys(f.PropertyGroups)
}

// WorkstreamIDs returns the workstream ids sorted.
func (f Facts) WorkstreamIDs() []string {
	out := make([]string, 0, len(f.Workstreams))
	for id := range f.Workstreams {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
