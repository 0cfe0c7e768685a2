package auth

import "context"

// CredentialStore is the read side used on login and by /auth/me. Lookups
// return the account with all of its grants from a single consistent read.
type CredentialStore interface {
	IdentityByEmail(ctx context.Context, email string) (Identity, error)
	IdentityByID(ctx context.Context, accountID string) (Identity, error)
}

// GrantStore persists accounts and the raw access-grant rows.
type GrantStore interface {
	CreateAccount(ctx context.Context, account Account) (Account, error)
	UpdateAccount(ctx context.Context, accountID string, upd AccountUpdate) (Account, error)

	CreateRole(ctx context.Context, name, kind string) (Role, error)
	RoleByName(ctx context.Context, name string) (Role, error)
	AssignRole(ctx context.Context, accountID, roleID string) (RoleGrant, error)
	RemoveRole(ctx context.Context, accountID, roleID string) error

	CreateWorkstream(ctx context.Context, ws Workstream) (Workstream, error)
	// UpsertWorkstreamGrant keeps a single row per (account, workstream) and
	// returns the permission it replaced, or "" when the row is new.
	UpsertWorkstreamGrant(ctx context.Context, accountID, workstreamID string, perm PermissionKind) (WorkstreamGrant, PermissionKind, error)
	DeleteWorkstreamGrant(ctx context.Context, accountID, workstreamID string) (WorkstreamGrant, error)

	CreatePropertyGroup(ctx context.Context, name string) (PropertyGroup, error)
	// SetPropertyGroupGrant flips the active flag on the (account, group) row,
	// inserting it only when none exists. wasActive is nil after an insert.
	SetPropertyGroupGrant(ctx context.Context, accountID, groupID string, active bool) (grant PropertyGroupGrant, wasActive *bool, err error)
}

// Store is everything the auth subsystem persists.
type Store interface {
	CredentialStore
	GrantStore
}

// AccountUpdate carries optional account changes.
type AccountUpdate struct {
	DisplayName  *string
	PasswordHash *string
	Active       *bool
}
