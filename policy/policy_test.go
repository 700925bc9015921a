package policy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/models/registry"
	"github.com/simple-thread/pharos/policy"
	"github.com/simple-thread/pharos/util/testutil"
)

func TestCanViewObject(t *testing.T) {
	ownInst := &registry.Institution{ID: 10, Identifier: "own.test.edu"}
	otherInst := &registry.Institution{ID: 20, Identifier: "other.test.edu"}
	admin := testutil.AdminUser()
	instAdmin := testutil.InstAdminUser(ownInst)
	instUser := testutil.InstUser(ownInst)

	open := &registry.IntellectualObject{InstitutionID: 10, Access: constants.AccessInstitution}
	restricted := &registry.IntellectualObject{InstitutionID: 10, Access: constants.AccessRestricted}
	foreign := &registry.IntellectualObject{InstitutionID: otherInst.ID, Access: constants.AccessInstitution}
	consortia := &registry.IntellectualObject{InstitutionID: otherInst.ID, Access: constants.AccessConsortia}

	assert.True(t, policy.CanViewObject(admin, open))
	assert.True(t, policy.CanViewObject(admin, restricted))
	assert.True(t, policy.CanViewObject(admin, foreign))
	assert.True(t, policy.CanViewObject(admin, consortia))

	assert.True(t, policy.CanViewObject(instAdmin, open))
	assert.True(t, policy.CanViewObject(instAdmin, restricted))
	assert.False(t, policy.CanViewObject(instAdmin, foreign))
	assert.True(t, policy.CanViewObject(instAdmin, consortia))

	assert.True(t, policy.CanViewObject(instUser, open))
	assert.False(t, policy.CanViewObject(instUser, restricted))
	assert.False(t, policy.CanViewObject(instUser, foreign))
	assert.True(t, policy.CanViewObject(instUser, consortia))
}

// Consortia-access holdings are shared across the membership: any
// member user may read them, and scoped lists must include them, no
// matter which institution owns them.
func TestConsortiaVisibility(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst1, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	inst2, err := testutil.CreateInstitution(store)
	require.Nil(t, err)

	shared, err := testutil.CreateObject(store, inst2)
	require.Nil(t, err)
	shared.Access = constants.AccessConsortia
	require.Nil(t, store.SaveIntellectualObject(ctx, shared))
	gf, err := testutil.CreateFile(store, shared)
	require.Nil(t, err)
	event := testutil.NewEvent(gf)
	require.Nil(t, store.SavePremisEvent(ctx, event))

	outsider := testutil.InstUser(inst1)

	assert.True(t, policy.CanViewObject(outsider, shared))
	assert.True(t, policy.CanViewFile(outsider, gf, shared.Access))
	assert.True(t, policy.CanViewEvent(outsider, event, shared.Access))

	objFilter := db.ObjectFilter{}
	policy.ScopeObjects(outsider, &objFilter)
	objects, _, err := store.IntellectualObjects(ctx, objFilter, db.Paging{PerPage: 50})
	require.Nil(t, err)
	found := false
	for _, returned := range objects {
		if returned.Identifier == shared.Identifier {
			found = true
		}
	}
	assert.True(t, found, "consortia object missing from scoped list")

	fileFilter := db.FileFilter{}
	policy.ScopeFiles(outsider, &fileFilter)
	files, total, err := store.GenericFiles(ctx, fileFilter, db.Paging{PerPage: 50})
	require.Nil(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, gf.Identifier, files[0].Identifier)

	eventFilter := db.EventFilter{}
	policy.ScopeEvents(outsider, &eventFilter)
	events, total, err := store.PremisEvents(ctx, eventFilter, db.Paging{PerPage: 50})
	require.Nil(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, event.Identifier, events[0].Identifier)
}

func TestDeletionAndRestorePermissions(t *testing.T) {
	inst := &registry.Institution{ID: 10, Identifier: "own.test.edu"}
	admin := testutil.AdminUser()
	instAdmin := testutil.InstAdminUser(inst)
	instUser := testutil.InstUser(inst)

	assert.True(t, policy.CanRequestDeletion(admin, 10))
	assert.True(t, policy.CanRequestDeletion(instAdmin, 10))
	assert.False(t, policy.CanRequestDeletion(instAdmin, 20))
	assert.False(t, policy.CanRequestDeletion(instUser, 10))

	assert.True(t, policy.CanRequestRestore(instUser, 10))
	assert.False(t, policy.CanRequestRestore(instUser, 20))
}

func TestRequireRole(t *testing.T) {
	inst := &registry.Institution{ID: 10, Identifier: "own.test.edu"}
	assert.Nil(t, policy.RequireRole(testutil.AdminUser(), constants.RoleInstAdmin))
	assert.Nil(t, policy.RequireRole(testutil.InstAdminUser(inst), constants.RoleInstAdmin))
	assert.NotNil(t, policy.RequireRole(testutil.InstUser(inst), constants.RoleInstAdmin))
	assert.NotNil(t, policy.RequireRole(&registry.User{Role: constants.RoleNone}, constants.RoleInstUser))
}

// Any record a scoped list returns must also pass the single-record
// check for the same caller.
func TestScopeAgreesWithObjectPolicy(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst1, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	inst2, err := testutil.CreateInstitution(store)
	require.Nil(t, err)

	obj, err := testutil.CreateObject(store, inst1)
	require.Nil(t, err)
	obj.Access = constants.AccessRestricted
	require.Nil(t, store.SaveIntellectualObject(ctx, obj))
	_, err = testutil.CreateObject(store, inst1)
	require.Nil(t, err)
	_, err = testutil.CreateObject(store, inst2)
	require.Nil(t, err)
	consortia, err := testutil.CreateObject(store, inst2)
	require.Nil(t, err)
	consortia.Access = constants.AccessConsortia
	require.Nil(t, store.SaveIntellectualObject(ctx, consortia))

	users := []*registry.User{
		testutil.AdminUser(),
		testutil.InstAdminUser(inst1),
		testutil.InstUser(inst1),
		testutil.InstUser(inst2),
	}
	for _, user := range users {
		filter := db.ObjectFilter{}
		policy.ScopeObjects(user, &filter)
		objects, _, err := store.IntellectualObjects(ctx, filter, db.Paging{PerPage: 50})
		require.Nil(t, err)
		for _, returned := range objects {
			assert.True(t, policy.CanViewObject(user, returned),
				"scope returned object %s invisible to %s", returned.Identifier, user.Email)
		}
	}
}
