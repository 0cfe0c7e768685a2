package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propertyhub.org/internal/audit"
	"propertyhub.org/internal/auth"
	"propertyhub.org/internal/store/memstore"
)

func memOpener(store *memstore.Store) Opener {
	return func(context.Context, string) (Backend, func() error, error) {
		return store, func() error { return nil }, nil
	}
}

func run(t *testing.T, store *memstore.Store, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(memOpener(store))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func createAccount(t *testing.T, store *memstore.Store, email string, extra ...string) createdAccount {
	t.Helper()
	args := append([]string{"accounts", "create", "--email", email, "--name", "Test", "--password-stdin"}, extra...)
	out, err := run(t, store, "long-enough-secret\n", args...)
	require.NoError(t, err)
	var created createdAccount
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	return created
}

func TestAccountsCreateGlobalAdmin(t *testing.T) {
	store := memstore.New()
	created := createAccount(t, store, "ops@example.com", "--global-admin")
	require.NotNil(t, created.GlobalAdmin)
	assert.Equal(t, auth.GlobalAdminKind, created.GlobalAdmin.Role.Kind)
	assert.True(t, created.Account.Active)

	id, err := store.IdentityByEmail(context.Background(), "ops@example.com")
	require.NoError(t, err)
	assert.True(t, auth.BuildFacts(id).GlobalAdmin)
	assert.NoError(t, auth.VerifyPassword(id.Account.PasswordHash, "long-enough-secret"))

	entries, err := store.ListAudit(context.Background(), audit.Filter{ActorID: auth.SystemActor, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestAccountsCreateRejectsEmptyStdin(t *testing.T) {
	_, err := run(t, memstore.New(), "", "accounts", "create", "--email", "x@example.com", "--name", "X", "--password-stdin")
	require.Error(t, err)
}

func TestAccountsDeactivate(t *testing.T) {
	store := memstore.New()
	created := createAccount(t, store, "leaver@example.com")

	out, err := run(t, store, "", "accounts", "deactivate", "--id", created.Account.ID)
	require.NoError(t, err)
	var acct auth.Account
	require.NoError(t, json.Unmarshal([]byte(out), &acct))
	assert.False(t, acct.Active)

	_, err = run(t, store, "", "accounts", "deactivate", "--id", "missing")
	require.ErrorIs(t, err, auth.ErrNotFound)
}

func TestGrantsWorkstreamAndGroup(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	created := createAccount(t, store, "pm@example.com")
	ws, err := store.CreateWorkstream(ctx, auth.Workstream{Name: "Property Hub", PropertyHub: true})
	require.NoError(t, err)
	group, err := store.CreatePropertyGroup(ctx, "North Estate")
	require.NoError(t, err)

	_, err = run(t, store, "", "grants", "workstream", "--account", created.Account.ID, "--workstream", ws.ID, "--permission", "Edit")
	require.NoError(t, err)
	_, err = run(t, store, "", "grants", "group", "--account", created.Account.ID, "--group", group.ID)
	require.NoError(t, err)

	id, err := store.IdentityByID(ctx, created.Account.ID)
	require.NoError(t, err)
	ok, err := auth.Resolve(auth.BuildFacts(id), auth.PropertyGroupAccess(group.ID))
	require.NoError(t, err)
	assert.True(t, ok)

	out, err := run(t, store, "", "grants", "group", "--account", created.Account.ID, "--group", group.ID, "--revoke")
	require.NoError(t, err)
	var grant auth.PropertyGroupGrant
	require.NoError(t, json.Unmarshal([]byte(out), &grant))
	assert.False(t, grant.Active)

	_, err = run(t, store, "", "grants", "workstream", "--account", created.Account.ID, "--workstream", ws.ID)
	require.Error(t, err)
	_, err = run(t, store, "", "grants", "workstream", "--account", created.Account.ID, "--workstream", ws.ID, "--revoke")
	require.NoError(t, err)
}

func TestAuditList(t *testing.T) {
	store := memstore.New()
	created := createAccount(t, store, "audited@example.com")

	out, err := run(t, store, "", "audit", "list", "--entity-type", auth.EntityAccount)
	require.NoError(t, err)
	var entries []audit.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, created.Account.ID, entries[0].EntityID)
	assert.Equal(t, audit.ActionCreate, entries[0].Action)
}

func TestOpenPostgresRequiresDSN(t *testing.T) {
	_, _, err := OpenPostgres(context.Background(), "")
	require.Error(t, err)
}
