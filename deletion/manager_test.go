package deletion_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/deletion"
	"github.com/simple-thread/pharos/events"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/util/logger"
	"github.com/simple-thread/pharos/util/testutil"
)

func newTestManager(t *testing.T) (*deletion.Manager, *db.Store) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	t.Cleanup(func() { store.Close() })
	ledger := events.NewLedger(store, logger.DiscardLogger())
	return deletion.NewManager(store, ledger, nil, logger.DiscardLogger()), store
}

func TestRequestFileDeletion(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	obj, err := testutil.CreateObject(store, inst)
	require.Nil(t, err)
	gf, err := testutil.CreateFile(store, obj)
	require.Nil(t, err)

	item, err := manager.RequestFileDeletion(ctx, testutil.InstAdminUser(inst), gf.Identifier)
	require.Nil(t, err)
	require.NotNil(t, item)
	assert.Equal(t, constants.ActionDelete, item.Action)
	assert.Equal(t, constants.StatusPending, item.Status)
	assert.Equal(t, gf.Identifier, item.GenericFileIdentifier)

	// The file stays active until the worker reports completion.
	reloaded, err := store.GenericFileByID(ctx, gf.ID)
	require.Nil(t, err)
	assert.False(t, reloaded.IsDeleted())
}

func TestRequestFileDeletionForbidden(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	otherInst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	obj, err := testutil.CreateObject(store, inst)
	require.Nil(t, err)
	gf, err := testutil.CreateFile(store, obj)
	require.Nil(t, err)

	// Regular users can't destroy holdings.
	_, err = manager.RequestFileDeletion(ctx, testutil.InstUser(inst), gf.Identifier)
	require.NotNil(t, err)
	assert.Equal(t, service.KindForbidden, service.Kind(err))

	// Neither can admins of other institutions.
	_, err = manager.RequestFileDeletion(ctx, testutil.InstAdminUser(otherInst), gf.Identifier)
	require.NotNil(t, err)
	assert.Equal(t, service.KindForbidden, service.Kind(err))
}

func TestRequestFileDeletionBlockedByIngest(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	obj, err := testutil.CreateObject(store, inst)
	require.Nil(t, err)
	gf, err := testutil.CreateFile(store, obj)
	require.Nil(t, err)

	ingest := testutil.NewWorkItem(inst, constants.ActionIngest)
	ingest.GenericFileIdentifier = gf.Identifier
	require.Nil(t, store.SaveWorkItem(ctx, ingest))

	_, err = manager.RequestFileDeletion(ctx, testutil.InstAdminUser(inst), gf.Identifier)
	require.NotNil(t, err)
	assert.Equal(t, service.KindConflict, service.Kind(err))
	assert.Contains(t, err.Error(), constants.ActionIngest)
}

func TestRequestFileDeletionBlockedByObjectRestore(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	obj, err := testutil.CreateObject(store, inst)
	require.Nil(t, err)
	gf, err := testutil.CreateFile(store, obj)
	require.Nil(t, err)

	// A whole-bag restoration names only the object, not its files.
	restore := testutil.NewWorkItem(inst, constants.ActionRestore)
	restore.ObjectIdentifier = obj.Identifier
	restore.Stage = constants.StageFetch
	restore.Status = constants.StatusStarted
	require.Nil(t, store.SaveWorkItem(ctx, restore))

	_, err = manager.RequestFileDeletion(ctx, testutil.InstAdminUser(inst), gf.Identifier)
	require.NotNil(t, err)
	assert.Equal(t, service.KindConflict, service.Kind(err))
	assert.Contains(t, err.Error(), constants.ActionRestore)
}

func TestCompleteFileDeletionIsIdempotent(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	obj, err := testutil.CreateObject(store, inst)
	require.Nil(t, err)
	gf, err := testutil.CreateFile(store, obj)
	require.Nil(t, err)

	event, err := manager.CompleteFileDeletion(ctx, gf.Identifier, "admin@"+inst.Identifier)
	require.Nil(t, err)
	require.NotNil(t, event)
	assert.Equal(t, constants.EventDeletion, event.EventType)

	reloaded, err := store.GenericFileByID(ctx, gf.ID)
	require.Nil(t, err)
	assert.True(t, reloaded.IsDeleted())

	// A duplicate completion report changes nothing and records no
	// second event.
	again, err := manager.CompleteFileDeletion(ctx, gf.Identifier, "admin@"+inst.Identifier)
	require.Nil(t, err)
	assert.Nil(t, again)

	eventsForFile, total, err := store.PremisEvents(ctx,
		db.EventFilter{GenericFileID: gf.ID, EventType: constants.EventDeletion},
		db.Paging{PerPage: 25})
	require.Nil(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, eventsForFile, 1)

	// Deletion requests against a deleted file are also no-ops.
	item, err := manager.RequestFileDeletion(ctx, testutil.InstAdminUser(inst), gf.Identifier)
	require.Nil(t, err)
	assert.Nil(t, item)
}
