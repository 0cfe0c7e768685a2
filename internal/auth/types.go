package auth

import (
	"strings"
	"time"
)

// GlobalAdminKind is the role kind whose holders bypass every other check.
const GlobalAdminKind = "Global Admin"

// Account is a person who can sign in.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Role is a named role with exactly one kind.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Workstream is an access-control domain. PropertyHub is fixed when the
// workstream is created and is what hub checks consult.
type Workstream struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PropertyHub bool   `json:"property_hub"`
}

// PropertyGroup is a finer-grained access domain under property management.
type PropertyGroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoleGrant links an account to a role.
type RoleGrant struct {
	AccountID string    `json:"account_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkstreamGrant gives an account one permission kind within a workstream.
type WorkstreamGrant struct {
	AccountID  string         `json:"account_id"`
	Workstream Workstream     `json:"workstream"`
	Permission PermissionKind `json:"permission"`
	CreatedAt  time.Time      `json:"created_at"`
}

// PropertyGroupGrant gives an account access to a property group. Revoking
// flips Active instead of removing the row.
type PropertyGroupGrant struct {
	AccountID       string    `json:"account_id"`
	PropertyGroupID string    `json:"property_group_id"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Identity is an account with every grant loaded in one read.
type Identity struct {
	Account        Account
	Roles          []RoleGrant
	Workstreams    []WorkstreamGrant
	PropertyGroups []PropertyGroupGrant
}

// ClassifyPropertyHub decides whether a newly created workstream belongs to
// the Property Hub area.
func ClassifyPropertyHub(name string) bool {
	return strings.Contains(strings.ToLower(name), "property")
}
