package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identityWith(roles []string, grants []WorkstreamGrant, groups []PropertyGroupGrant) Identity {
	id := Identity{Account: Account{ID: "acct-1", Email: "jo@example.com", DisplayName: "Jo", Active: true}}
	for i, kind := range roles {
		id.Roles = append(id.Roles, RoleGrant{AccountID: "acct-1", Role: Role{ID: string(rune('a' + i)), Name: kind + " role", Kind: kind}})
	}
	id.Workstreams = grants
	id.PropertyGroups = groups
	return id
}

func wsGrant(id, name string, perm PermissionKind) WorkstreamGrant {
	return WorkstreamGrant{
		AccountID:  "acct-1",
		Workstream: Workstream{ID: id, Name: name, PropertyHub: ClassifyPropertyHub(name)},
		Permission: perm,
	}
}

func allChecks() []Check {
	return []Check{
		GlobalAdmin(),
		WorkstreamMember("ws-other"),
		WorkstreamPermission("ws-other", PermissionAdmin),
		PropertyHubAccess(),
		PropertyHubAdminAccess(),
		PropertyGroupAccess("pg-elsewhere"),
	}
}

func TestGlobalAdminPassesEveryCheck(t *testing.T) {
	for _, kind := range []string{"Global Admin", "global admin", "GLOBAL ADMIN"} {
		facts := BuildFacts(identityWith([]string{kind}, nil, nil))
		require.True(t, facts.GlobalAdmin, kind)
		for _, c := range allChecks() {
			ok, err := Resolve(facts, c)
			require.NoError(t, err)
			assert.True(t, ok, "%s should pass %s", kind, c.Kind)
		}
	}
}

func TestNoWorkstreamGrantsDenies(t *testing.T) {
	facts := BuildFacts(identityWith([]string{"Leasing Agent"}, nil, nil))
	for _, c := range []Check{WorkstreamMember("ws-1"), PropertyHubAccess(), PropertyHubAdminAccess(), GlobalAdmin()} {
		ok, err := Resolve(facts, c)
		require.NoError(t, err)
		assert.False(t, ok, c.Kind.String())
	}
}

func TestPropertyHubAdminVersusRead(t *testing.T) {
	admin := BuildFacts(identityWith(nil, []WorkstreamGrant{wsGrant("ws-hub", "Property Hub", PermissionAdmin)}, nil))
	ok, err := Resolve(admin, PropertyHubAdminAccess())
	require.NoError(t, err)
	assert.True(t, ok)

	reader := BuildFacts(identityWith(nil, []WorkstreamGrant{wsGrant("ws-hub", "Property Hub", PermissionRead)}, nil))
	ok, err = Resolve(reader, PropertyHubAdminAccess())
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = Resolve(reader, PropertyHubAccess())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPropertyManagementCountsAsHub(t *testing.T) {
	facts := BuildFacts(identityWith(nil, []WorkstreamGrant{wsGrant("ws-pm", "Property Management", PermissionEdit)}, nil))
	ok, err := Resolve(facts, PropertyHubAccess())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = Resolve(facts, PropertyHubAdminAccess())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHubFlagNotName(t *testing.T) {
	// A renamed hub workstream keeps its flag; an unflagged one never gains it.
	grants := []WorkstreamGrant{
		{Workstream: Workstream{ID: "ws-1", Name: "Estates", PropertyHub: true}, Permission: PermissionAdmin},
		{Workstream: Workstream{ID: "ws-2", Name: "Property Finance", PropertyHub: false}, Permission: PermissionAdmin},
	}
	facts := BuildFacts(identityWith(nil, grants, nil))
	ok, _ := Resolve(facts, PropertyHubAdminAccess())
	assert.True(t, ok)

	facts = BuildFacts(identityWith(nil, grants[1:], nil))
	ok, _ = Resolve(facts, PropertyHubAccess())
	assert.False(t, ok)
}

func TestWorkstreamPermissionCaseInsensitive(t *testing.T) {
	facts := BuildFacts(identityWith(nil, []WorkstreamGrant{wsGrant("ws-1", "Finance", PermissionEdit)}, nil))
	ok, err := Resolve(facts, WorkstreamPermission("ws-1", "edit"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = Resolve(facts, WorkstreamPermission("ws-1", PermissionAdmin))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = Resolve(facts, WorkstreamMember("ws-1"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPropertyGroupAccess(t *testing.T) {
	facts := BuildFacts(identityWith(nil, nil, []PropertyGroupGrant{
		{PropertyGroupID: "pg-1", Active: true},
		{PropertyGroupID: "pg-2", Active: false},
	}))
	ok, _ := Resolve(facts, PropertyGroupAccess("pg-1"))
	assert.True(t, ok)
	ok, _ = Resolve(facts, PropertyGroupAccess("pg-2"))
	assert.False(t, ok)
}

func TestMalformedCheckIsAnError(t *testing.T) {
	admin := BuildFacts(identityWith([]string{GlobalAdminKind}, nil, nil))
	_, err := Resolve(admin, WorkstreamPermission("ws-1", "Owner"))
	require.ErrorIs(t, err, ErrUnknownPermission)

	_, err = Resolve(admin, WorkstreamMember(""))
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = Resolve(admin, Check{Kind: 99})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRequireReturnsStaticReason(t *testing.T) {
	facts := BuildFacts(identityWith(nil, []WorkstreamGrant{wsGrant("ws-hub", "Property Hub", PermissionRead)}, nil))
	err := Require(facts, PropertyHubAccess(), PropertyHubAdminAccess())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrForbidden))

	var fe *ForbiddenError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "Access denied: Property Hub Admin permission required", fe.Reason)
	assert.Equal(t, CheckPropertyHubAdmin, fe.Check)

	assert.NoError(t, Require(facts, PropertyHubAccess()))
}

func TestParsePermissionKind(t *testing.T) {
	for in, want := range map[string]PermissionKind{"admin": PermissionAdmin, " READ ": PermissionRead, "Edit": PermissionEdit} {
		got, err := ParsePermissionKind(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePermissionKind("superuser")
	assert.ErrorIs(t, err, ErrUnknownPermission)
}
