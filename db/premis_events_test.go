package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/util/testutil"
)

func TestFixityEventUpdatesLastFixityCheck(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	obj, err := testutil.CreateObject(store, inst)
	require.Nil(t, err)
	gf, err := testutil.CreateFile(store, obj)
	require.Nil(t, err)
	assert.True(t, gf.LastFixityCheck.IsZero())

	event := testutil.NewEvent(gf)
	event.EventType = constants.EventFixityCheck
	event.DateTime = testutil.Bloomsday
	require.Nil(t, store.SavePremisEvent(ctx, event))
	assert.True(t, event.ID > 0)

	reloaded, err := store.GenericFileByID(ctx, gf.ID)
	require.Nil(t, err)
	assert.True(t, reloaded.LastFixityCheck.Equal(testutil.Bloomsday))
}

func TestDeletionEventFlipsFileState(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	obj, err := testutil.CreateObject(store, inst)
	require.Nil(t, err)
	gf, err := testutil.CreateFile(store, obj)
	require.Nil(t, err)

	event := testutil.NewEvent(gf)
	event.EventType = constants.EventDeletion
	require.Nil(t, store.SavePremisEvent(ctx, event))

	reloaded, err := store.GenericFileByID(ctx, gf.ID)
	require.Nil(t, err)
	assert.True(t, reloaded.IsDeleted())

	// The object is untouched by a file-level deletion.
	objReloaded, err := store.IntellectualObjectByID(ctx, obj.ID)
	require.Nil(t, err)
	assert.Equal(t, constants.StateActive, objReloaded.State)
}

func TestDeletionEventFlipsObjectState(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	obj, err := testutil.CreateObject(store, inst)
	require.Nil(t, err)
	gf, err := testutil.CreateFile(store, obj)
	require.Nil(t, err)

	event := testutil.NewEvent(gf)
	event.EventType = constants.EventDeletion
	event.GenericFileID = 0
	event.GenericFileIdentifier = ""
	require.Nil(t, store.SavePremisEvent(ctx, event))

	objReloaded, err := store.IntellectualObjectByID(ctx, obj.ID)
	require.Nil(t, err)
	assert.Equal(t, constants.StateDeleted, objReloaded.State)
}

func TestPremisEventValidationAndLookup(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	obj, err := testutil.CreateObject(store, inst)
	require.Nil(t, err)
	gf, err := testutil.CreateFile(store, obj)
	require.Nil(t, err)

	bad := testutil.NewEvent(gf)
	bad.EventType = "unknown event"
	err = store.SavePremisEvent(ctx, bad)
	require.NotNil(t, err)
	assert.Equal(t, service.KindValidation, service.Kind(err))

	good := testutil.NewEvent(gf)
	require.Nil(t, store.SavePremisEvent(ctx, good))

	found, err := store.PremisEventByIdentifier(ctx, good.Identifier)
	require.Nil(t, err)
	assert.Equal(t, good.ID, found.ID)
	assert.Equal(t, gf.Identifier, found.GenericFileIdentifier)

	_, err = store.PremisEventByIdentifier(ctx, constants.EmptyUUID)
	require.NotNil(t, err)
	assert.Equal(t, service.KindNotFound, service.Kind(err))
}

func TestPremisEventsScopedList(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst1, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	inst2, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	obj1, err := testutil.CreateObject(store, inst1)
	require.Nil(t, err)
	obj2, err := testutil.CreateObject(store, inst2)
	require.Nil(t, err)
	gf1, err := testutil.CreateFile(store, obj1)
	require.Nil(t, err)
	gf2, err := testutil.CreateFile(store, obj2)
	require.Nil(t, err)

	require.Nil(t, store.SavePremisEvent(ctx, testutil.NewEvent(gf1)))
	require.Nil(t, store.SavePremisEvent(ctx, testutil.NewEvent(gf2)))

	all, total, err := store.PremisEvents(ctx, db.EventFilter{}, db.Paging{PerPage: 25})
	require.Nil(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	scoped, total, err := store.PremisEvents(ctx,
		db.EventFilter{ScopeInstitutionID: inst1.ID}, db.Paging{PerPage: 25})
	require.Nil(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, scoped, 1)
	assert.Equal(t, gf1.Identifier, scoped[0].GenericFileIdentifier)
}
