package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"propertyhub.org/internal/audit"
)

// SystemActor attributes changes made outside a signed-in session, such as
// the admin CLI or bootstrap seeding.
const SystemActor = "system"

// Audit entity types written by Admin.
const (
	EntityAccount            = "account"
	EntityRole               = "role"
	EntityAccountRole        = "account_role"
	EntityWorkstream         = "workstream"
	EntityWorkstreamGrant    = "workstream_grant"
	EntityPropertyGroup      = "property_group"
	EntityPropertyGroupGrant = "property_group_grant"
)

// AuditTracker records committed changes without failing the caller.
type AuditTracker interface {
	Track(ctx context.Context, actorID string, c audit.Change)
}

// NewAccount is the input for CreateAccount.
type NewAccount struct {
	Email       string
	DisplayName string
	Password    string
	Inactive    bool
}

// Admin manages accounts and access grants. Every successful change is
// audited after the store commits it.
type Admin struct {
	store     Store
	audit     AuditTracker
	algorithm string
}

// AdminOption configures Admin.
type AdminOption func(*Admin)

// WithPasswordAlgorithm selects the hash used for new passwords.
func WithPasswordAlgorithm(alg string) AdminOption {
	return func(a *Admin) { a.algorithm = strings.TrimSpace(alg) }
}

func NewAdmin(store Store, tracker AuditTracker, opts ...AdminOption) (*Admin, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tracker == nil {
		return nil, errors.New("auth: audit tracker is required")
	}
	a := &Admin{store: store, audit: tracker, algorithm: HashBcrypt}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *Admin) actor(ctx context.Context) string {
	if id := ActorID(ctx); id != "" {
		return id
	}
	return SystemActor
}

func (a *Admin) track(ctx context.Context, action audit.Action, entityType, entityID, oldSummary, newSummary string) {
	a.audit.Track(ctx, a.actor(ctx), audit.Change{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Old:        oldSummary,
		New:        newSummary,
	})
}

func (a *Admin) CreateAccount(ctx context.Context, in NewAccount) (Account, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return Account{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		return Account{}, fmt.Errorf("%w: display name is required", ErrInvalidInput)
	}
	hash, err := HashPasswordWith(a.algorithm, in.Password)
	if err != nil {
		return Account{}, err
	}
	acct, err := a.store.CreateAccount(ctx, Account{
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		Active:       !in.Inactive,
	})
	if err != nil {
		return Account{}, err
	}
	a.track(ctx, audit.ActionCreate, EntityAccount, acct.ID, "", accountSummary(acct))
	return acct, nil
}

func (a *Admin) UpdateProfile(ctx context.Context, accountID, displayName string) (Account, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return Account{}, fmt.Errorf("%w: display name is required", ErrInvalidInput)
	}
	return a.updateAccount(ctx, accountID, AccountUpdate{DisplayName: &name}, audit.ActionUpdate)
}

// SetActive deactivates or reactivates an account. Accounts are never
// deleted. Tokens already issued stay valid until they expire.
func (a *Admin) SetActive(ctx context.Context, accountID string, active bool) (Account, error) {
	return a.updateAccount(ctx, accountID, AccountUpdate{Active: &active}, audit.ActionUpdate)
}

func (a *Admin) ResetPassword(ctx context.Context, accountID, password string) (Account, error) {
	hash, err := HashPasswordWith(a.algorithm, password)
	if err != nil {
		return Account{}, err
	}
	return a.updateAccount(ctx, accountID, AccountUpdate{PasswordHash: &hash}, audit.ActionResetPassword)
}

func (a *Admin) updateAccount(ctx context.Context, accountID string, upd AccountUpdate, action audit.Action) (Account, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return Account{}, fmt.Errorf("%w: account_id is required", ErrInvalidInput)
	}
	before, err := a.store.IdentityByID(ctx, accountID)
	if err != nil {
		return Account{}, err
	}
	after, err := a.store.UpdateAccount(ctx, accountID, upd)
	if err != nil {
		return Account{}, err
	}
	a.track(ctx, action, EntityAccount, after.ID, accountSummary(before.Account), accountSummary(after))
	return after, nil
}

func (a *Admin) CreateRole(ctx context.Context, name, kind string) (Role, error) {
	name = strings.TrimSpace(name)
	kind = strings.TrimSpace(kind)
	if name == "" || kind == "" {
		return Role{}, fmt.Errorf("%w: role name and kind are required", ErrInvalidInput)
	}
	if strings.EqualFold(kind, GlobalAdminKind) {
		kind = GlobalAdminKind
	}
	role, err := a.store.CreateRole(ctx, name, kind)
	if err != nil {
		return Role{}, err
	}
	a.track(ctx, audit.ActionCreate, EntityRole, role.ID, "", role.Name+" ("+role.Kind+")")
	return role, nil
}

// GrantGlobalAdmin assigns the role named GlobalAdminKind, creating it on
// first use.
func (a *Admin) GrantGlobalAdmin(ctx context.Context, accountID string) (RoleGrant, error) {
	role, err := a.store.RoleByName(ctx, GlobalAdminKind)
	if errors.Is(err, ErrNotFound) {
		role, err = a.CreateRole(ctx, GlobalAdminKind, GlobalAdminKind)
	}
	if err != nil {
		return RoleGrant{}, err
	}
	if role.Kind != GlobalAdminKind {
		return RoleGrant{}, fmt.Errorf("%w: role %q has kind %q", ErrConflict, role.Name, role.Kind)
	}
	return a.AssignRole(ctx, accountID, role.ID)
}

func (a *Admin) AssignRole(ctx context.Context, accountID, roleID string) (RoleGrant, error) {
	accountID, roleID, err := requirePair(accountID, roleID, "account_id and role_id")
	if err != nil {
		return RoleGrant{}, err
	}
	grant, err := a.store.AssignRole(ctx, accountID, roleID)
	if err != nil {
		return RoleGrant{}, err
	}
	a.track(ctx, audit.ActionCreate, EntityAccountRole, pairID(accountID, roleID), "", grant.Role.Name)
	return grant, nil
}

func (a *Admin) RemoveRole(ctx context.Context, accountID, roleID string) error {
	accountID, roleID, err := requirePair(accountID, roleID, "account_id and role_id")
	if err != nil {
		return err
	}
	if err := a.store.RemoveRole(ctx, accountID, roleID); err != nil {
		return err
	}
	a.track(ctx, audit.ActionDelete, EntityAccountRole, pairID(accountID, roleID), roleID, "")
	return nil
}

// CreateWorkstream fixes the Property Hub flag at creation: the explicit
// value when given, otherwise ClassifyPropertyHub(name).
func (a *Admin) CreateWorkstream(ctx context.Context, name string, propertyHub *bool) (Workstream, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Workstream{}, fmt.Errorf("%w: workstream name is required", ErrInvalidInput)
	}
	hub := ClassifyPropertyHub(name)
	if propertyHub != nil {
		hub = *propertyHub
	}
	ws, err := a.store.CreateWorkstream(ctx, Workstream{Name: name, PropertyHub: hub})
	if err != nil {
		return Workstream{}, err
	}
	a.track(ctx, audit.ActionCreate, EntityWorkstream, ws.ID, "", ws.Name+" property_hub="+strconv.FormatBool(ws.PropertyHub))
	return ws, nil
}

// GrantWorkstream sets the account's single permission in a workstream,
// replacing any previous one.
func (a *Admin) GrantWorkstream(ctx context.Context, accountID, workstreamID, permission string) (WorkstreamGrant, error) {
	accountID, workstreamID, err := requirePair(accountID, workstreamID, "account_id and workstream_id")
	if err != nil {
		return WorkstreamGrant{}, err
	}
	perm, err := ParsePermissionKind(permission)
	if err != nil {
		return WorkstreamGrant{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	grant, prev, err := a.store.UpsertWorkstreamGrant(ctx, accountID, workstreamID, perm)
	if err != nil {
		return WorkstreamGrant{}, err
	}
	action := audit.ActionUpdate
	if prev == "" {
		action = audit.ActionCreate
	}
	a.track(ctx, action, EntityWorkstreamGrant, pairID(accountID, workstreamID), string(prev), string(grant.Permission))
	return grant, nil
}

func (a *Admin) RevokeWorkstream(ctx context.Context, accountID, workstreamID string) error {
	accountID, workstreamID, err := requirePair(accountID, workstreamID, "account_id and workstream_id")
	if err != nil {
		return err
	}
	grant, err := a.store.DeleteWorkstreamGrant(ctx, accountID, workstreamID)
	if err != nil {
		return err
	}
	a.track(ctx, audit.ActionDelete, EntityWorkstreamGrant, pairID(accountID, workstreamID), string(grant.Permission), "")
	return nil
}

func (a *Admin) CreatePropertyGroup(ctx context.Context, name string) (PropertyGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return PropertyGroup{}, fmt.Errorf("%w: property group name is required", ErrInvalidInput)
	}
	pg, err := a.store.CreatePropertyGroup(ctx, name)
	if err != nil {
		return PropertyGroup{}, err
	}
	a.track(ctx, audit.ActionCreate, EntityPropertyGroup, pg.ID, "", pg.Name)
	return pg, nil
}

// GrantPropertyGroup activates the (account, group) grant, reactivating a
// revoked row rather than inserting another.
func (a *Admin) GrantPropertyGroup(ctx context.Context, accountID, groupID string) (PropertyGroupGrant, error) {
	return a.setPropertyGroup(ctx, accountID, groupID, true)
}

// RevokePropertyGroup soft-deletes the grant.
func (a *Admin) RevokePropertyGroup(ctx context.Context, accountID, groupID string) (PropertyGroupGrant, error) {
	return a.setPropertyGroup(ctx, accountID, groupID, false)
}

func (a *Admin) setPropertyGroup(ctx context.Context, accountID, groupID string, active bool) (PropertyGroupGrant, error) {
	accountID, groupID, err := requirePair(accountID, groupID, "account_id and property_group_id")
	if err != nil {
		return PropertyGroupGrant{}, err
	}
	grant, wasActive, err := a.store.SetPropertyGroupGrant(ctx, accountID, groupID, active)
	if err != nil {
		return PropertyGroupGrant{}, err
	}
	action, old := audit.ActionCreate, ""
	if wasActive != nil {
		action, old = audit.ActionUpdate, "active="+strconv.FormatBool(*wasActive)
	}
	a.track(ctx, action, EntityPropertyGroupGrant, pairID(accountID, groupID), old, "active="+strconv.FormatBool(grant.Active))
	return grant, nil
}

func requirePair(a, b, what string) (string, string, error) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return "", "", fmt.Errorf("%w: %s are required", ErrInvalidInput, what)
	}
	return a, b, nil
}

func pairID(a, b string) string { return a + "/" + b }

func accountSummary(a Account) string {
	return fmt.Sprintf("%s <%s> active=%t", a.DisplayName, a.Email, a.Active)
}
