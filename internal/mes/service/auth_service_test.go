package service_test

import (
	"context"
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/mes/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticateAPIKey(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()
	testutil.SeedTestUser(t, env.DB, "u-admin", "Admin", entity.TeamRoleAdmin, false)

	readOnly := false
	created, err := env.Services.APIKey.Create(ctx, testutil.TeamID, "u-admin", service.CreateAPIKeyRequest{
		Name:     "line terminal",
		CanRead:  &readOnly,
		CanWrite: true,
	})
	require.NoError(t, err)
	assert.Contains(t, created.Key, "mes_"+created.KeyPrefix+"_")
	assert.NotContains(t, created.SecretHash, created.Key)

	p, err := env.Services.Auth.Authenticate(ctx, created.Key, "")
	require.NoError(t, err)
	assert.Equal(t, testutil.TeamID, p.TeamID)
	assert.Equal(t, created.ID, p.APIKeyID)
	assert.True(t, p.Has(service.PermissionRead))
	assert.True(t, p.Has(service.PermissionWrite))
	assert.False(t, p.Has(service.PermissionAdmin))
	assert.True(t, p.Scope.All)

	keys, err := env.Services.APIKey.List(ctx, testutil.TeamID)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)

	_, err = env.Services.Auth.Authenticate(ctx, created.Key, "team-other")
	assert.True(t, service.IsKind(err, service.KindForbidden))

	_, err = env.Services.Auth.Authenticate(ctx, created.Key+"x", "")
	assert.True(t, service.IsKind(err, service.KindUnauthorized))

	_, err = env.Services.Auth.Authenticate(ctx, "mes_broken", "")
	assert.True(t, service.IsKind(err, service.KindUnauthorized))

	require.NoError(t, env.Services.APIKey.Revoke(ctx, testutil.TeamID, created.ID))
	_, err = env.Services.Auth.Authenticate(ctx, created.Key, "")
	e := appErr(t, err)
	assert.Equal(t, service.CodeUnauthorized, e.Code)

	err = env.Services.APIKey.Revoke(ctx, testutil.TeamID, "missing")
	assert.True(t, service.IsKind(err, service.KindNotFound))
}

func TestAPIKeyCreateRequiresMember(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, err := env.Services.APIKey.Create(context.Background(), testutil.TeamID, "u-stranger", service.CreateAPIKeyRequest{Name: "k"})
	assert.True(t, service.IsKind(err, service.KindForbidden))

	_, err = env.Services.APIKey.Create(context.Background(), testutil.TeamID, "u-stranger", service.CreateAPIKeyRequest{Name: " "})
	assert.True(t, service.IsKind(err, service.KindValidation))
}

func TestAuthenticateJWT(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()
	testutil.SeedTestUser(t, env.DB, "u-admin", "Admin", entity.TeamRoleAdmin, false)
	testutil.SeedTestUser(t, env.DB, "u-op", "Operator", entity.TeamRoleMember, false)
	testutil.SeedDepartment(t, env.DB, "d-cut", "Cutting")
	testutil.SeedDepartment(t, env.DB, "d-asm", "Assembly")
	testutil.GrantDepartments(t, env.DB, "u-op", "d-cut")

	admin, err := env.Services.Auth.Authenticate(ctx, testutil.GenerateTestToken("u-admin", "Admin", "a@test.com"), testutil.TeamID)
	require.NoError(t, err)
	assert.True(t, admin.Has(service.PermissionAdmin))
	assert.True(t, admin.Scope.All)

	op, err := env.Services.Auth.Authenticate(ctx, testutil.GenerateTestToken("u-op", "Operator", "o@test.com"), testutil.TeamID)
	require.NoError(t, err)
	assert.True(t, op.Has(service.PermissionWrite))
	assert.False(t, op.Has(service.PermissionAdmin))
	assert.Equal(t, []string{"d-cut"}, op.Scope.IDs)
	assert.True(t, op.Scope.Allows("d-cut"))
	assert.False(t, op.Scope.Allows("d-asm"))

	_, err = env.Services.Auth.Authenticate(ctx, testutil.GenerateTestToken("u-op", "Operator", "o@test.com"), "")
	assert.True(t, service.IsKind(err, service.KindValidation))

	_, err = env.Services.Auth.Authenticate(ctx, testutil.GenerateTestToken("u-nobody", "Nobody", "n@test.com"), testutil.TeamID)
	assert.True(t, service.IsKind(err, service.KindForbidden))

	_, err = env.Services.Auth.Authenticate(ctx, "not-a-token", testutil.TeamID)
	assert.True(t, service.IsKind(err, service.KindUnauthorized))

	_, err = env.Services.Auth.Authenticate(ctx, "", testutil.TeamID)
	assert.True(t, service.IsKind(err, service.KindUnauthorized))
}

func TestSetDepartmentAccess(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()
	testutil.SeedTestUser(t, env.DB, "u-op", "Operator", entity.TeamRoleMember, false)
	testutil.SeedDepartment(t, env.DB, "d-cut", "Cutting")
	testutil.SeedDepartment(t, env.DB, "d-asm", "Assembly")
	testutil.GrantDepartments(t, env.DB, "u-op", "d-cut")

	view, err := env.Services.Access.SetDepartmentAccess(ctx, testutil.TeamID, "u-op", service.DepartmentAccessRequest{
		DepartmentIDs: []string{"d-asm", "d-asm", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"d-asm"}, view.DepartmentIDs)

	scope, err := env.Services.Access.Resolve(ctx, "u-op", testutil.TeamID)
	require.NoError(t, err)
	assert.False(t, scope.All)
	assert.Equal(t, []string{"d-asm"}, scope.IDs)

	_, err = env.Services.Access.SetDepartmentAccess(ctx, testutil.TeamID, "u-op", service.DepartmentAccessRequest{AllDepartments: true})
	require.NoError(t, err)
	scope, err = env.Services.Access.Resolve(ctx, "u-op", testutil.TeamID)
	require.NoError(t, err)
	assert.True(t, scope.All)

	_, err = env.Services.Access.SetDepartmentAccess(ctx, testutil.TeamID, "u-op", service.DepartmentAccessRequest{DepartmentIDs: []string{"d-ghost"}})
	assert.True(t, service.IsKind(err, service.KindValidation))

	_, err = env.Services.Access.SetDepartmentAccess(ctx, testutil.TeamID, "u-ghost", service.DepartmentAccessRequest{})
	assert.True(t, service.IsKind(err, service.KindNotFound))

	scope, err = env.Services.Access.Resolve(ctx, "u-ghost", testutil.TeamID)
	require.NoError(t, err)
	assert.True(t, scope.IsEmpty())
}

func TestAddMember(t *testing.T) {
	env := testutil.NewTestEnv(t)
	ctx := context.Background()

	member, err := env.Services.Access.AddMember(ctx, testutil.TeamID, service.AddMemberRequest{UserID: "u-new", Name: "New Hire", Role: entity.TeamRoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, entity.TeamRoleAdmin, member.Role)

	p, err := env.Services.Auth.Authenticate(ctx, testutil.GenerateTestToken("u-new", "New Hire", "n@test.com"), testutil.TeamID)
	require.NoError(t, err)
	assert.True(t, p.Has(service.PermissionAdmin))

	// demote, keeping the stored name
	_, err = env.Services.Access.AddMember(ctx, testutil.TeamID, service.AddMemberRequest{UserID: "u-new"})
	require.NoError(t, err)
	got, err := env.Services.Access.Member(ctx, testutil.TeamID, "u-new")
	require.NoError(t, err)
	assert.Equal(t, entity.TeamRoleMember, got.Role)

	var user entity.User
	require.NoError(t, env.DB.First(&user, "id = ?", "u-new").Error)
	assert.Equal(t, "New Hire", user.Name)

	_, err = env.Services.Access.AddMember(ctx, testutil.TeamID, service.AddMemberRequest{UserID: "u-new", Role: "owner"})
	assert.True(t, service.IsKind(err, service.KindValidation))
}
