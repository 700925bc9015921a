package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/models/registry"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/util/testutil"
)

func TestWorkItemNaturalKeyLookup(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	item := testutil.NewWorkItem(inst, constants.ActionIngest)
	require.Nil(t, store.SaveWorkItem(ctx, item))

	found, err := store.WorkItemByNaturalKey(ctx, item.ETag, item.Name, item.BagDate)
	require.Nil(t, err)
	assert.Equal(t, item.ID, found.ID)

	// A miss must be a clean not-found. Pollers read it as "ingest has
	// not started yet".
	_, err = store.WorkItemByNaturalKey(ctx, "no-such-etag", item.Name, item.BagDate)
	require.NotNil(t, err)
	assert.Equal(t, service.KindNotFound, service.Kind(err))
}

func TestClaimWorkItemOnlyOneWinner(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	item := testutil.NewWorkItem(inst, constants.ActionIngest)
	require.Nil(t, store.SaveWorkItem(ctx, item))

	claimed, err := store.ClaimWorkItem(ctx, item.ID, "worker-01", 1234, false)
	require.Nil(t, err)
	assert.Equal(t, constants.StatusStarted, claimed.Status)
	assert.Equal(t, "worker-01", claimed.Node)
	assert.False(t, claimed.StageStartedAt.IsZero())

	// The second worker loses the race.
	_, err = store.ClaimWorkItem(ctx, item.ID, "worker-02", 5678, false)
	require.NotNil(t, err)
	assert.Equal(t, service.KindConflict, service.Kind(err))

	// The winner's assignment is intact.
	reloaded, err := store.WorkItemByID(ctx, item.ID)
	require.Nil(t, err)
	assert.Equal(t, "worker-01", reloaded.Node)
	assert.Equal(t, 1234, reloaded.Pid)
}

func TestClaimWorkItemFailedRetry(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	item := testutil.NewWorkItem(inst, constants.ActionIngest)
	item.Status = constants.StatusFailed
	item.Retry = true
	require.Nil(t, store.SaveWorkItem(ctx, item))

	_, err = store.ClaimWorkItem(ctx, item.ID, "worker-01", 1234, false)
	require.NotNil(t, err)
	assert.Equal(t, service.KindConflict, service.Kind(err))

	claimed, err := store.ClaimWorkItem(ctx, item.ID, "worker-01", 1234, true)
	require.Nil(t, err)
	assert.Equal(t, constants.StatusStarted, claimed.Status)
}

func TestCreateDeleteWorkItemGuard(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	fileIdentifier := inst.Identifier + "/bag/data/file.txt"

	ingest := testutil.NewWorkItem(inst, constants.ActionIngest)
	ingest.GenericFileIdentifier = fileIdentifier
	require.Nil(t, store.SaveWorkItem(ctx, ingest))

	del := testutil.NewWorkItem(inst, constants.ActionDelete)
	del.GenericFileIdentifier = fileIdentifier
	err = store.CreateDeleteWorkItem(ctx, del)
	require.NotNil(t, err)
	assert.Equal(t, service.KindConflict, service.Kind(err))
	assert.Contains(t, err.Error(), constants.ActionIngest)

	// Once the ingest resolves, the delete can be created.
	ingest.Stage = constants.StageCleanup
	ingest.Status = constants.StatusSuccess
	require.Nil(t, store.SaveWorkItem(ctx, ingest))
	require.Nil(t, store.CreateDeleteWorkItem(ctx, del))
	assert.True(t, del.ID > 0)

	// A pending Delete does not block another Delete request.
	repeat := testutil.NewWorkItem(inst, constants.ActionDelete)
	repeat.GenericFileIdentifier = fileIdentifier
	require.Nil(t, store.CreateDeleteWorkItem(ctx, repeat))
}

func TestCreateDeleteWorkItemBlockedByRestore(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	fileIdentifier := inst.Identifier + "/bag/data/file.txt"

	restore := testutil.NewWorkItem(inst, constants.ActionRestore)
	restore.GenericFileIdentifier = fileIdentifier
	restore.Status = constants.StatusStarted
	require.Nil(t, store.SaveWorkItem(ctx, restore))

	del := testutil.NewWorkItem(inst, constants.ActionDelete)
	del.GenericFileIdentifier = fileIdentifier
	err = store.CreateDeleteWorkItem(ctx, del)
	require.NotNil(t, err)
	assert.Equal(t, service.KindConflict, service.Kind(err))
	assert.Contains(t, err.Error(), constants.ActionRestore)
}

// An object-level Restore or Ingest carries only an object identifier
// but covers every file in the bag, so it must block deletion of any
// of the object's files.
func TestCreateDeleteWorkItemBlockedByObjectLevelItem(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	objectIdentifier := inst.Identifier + "/bag"
	fileIdentifier := objectIdentifier + "/data/file.txt"

	restore := testutil.NewWorkItem(inst, constants.ActionRestore)
	restore.ObjectIdentifier = objectIdentifier
	restore.Stage = constants.StageFetch
	restore.Status = constants.StatusStarted
	require.Nil(t, store.SaveWorkItem(ctx, restore))

	del := testutil.NewWorkItem(inst, constants.ActionDelete)
	del.ObjectIdentifier = objectIdentifier
	del.GenericFileIdentifier = fileIdentifier
	err = store.CreateDeleteWorkItem(ctx, del)
	require.NotNil(t, err)
	assert.Equal(t, service.KindConflict, service.Kind(err))
	assert.Contains(t, err.Error(), constants.ActionRestore)

	// An object-level item for a different bag does not block.
	otherRestore := testutil.NewWorkItem(inst, constants.ActionRestore)
	otherRestore.ObjectIdentifier = inst.Identifier + "/other-bag"
	otherRestore.Status = constants.StatusStarted
	require.Nil(t, store.SaveWorkItem(ctx, otherRestore))

	restore.Stage = constants.StageResolve
	restore.Status = constants.StatusSuccess
	require.Nil(t, store.SaveWorkItem(ctx, restore))
	require.Nil(t, store.CreateDeleteWorkItem(ctx, del))
	assert.True(t, del.ID > 0)
}

func TestWorkItemFiltersAndCounts(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst1, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	inst2, err := testutil.CreateInstitution(store)
	require.Nil(t, err)

	ingest := testutil.NewWorkItem(inst1, constants.ActionIngest)
	require.Nil(t, store.SaveWorkItem(ctx, ingest))
	restore := testutil.NewWorkItem(inst1, constants.ActionRestore)
	restore.Status = constants.StatusStarted
	require.Nil(t, store.SaveWorkItem(ctx, restore))
	other := testutil.NewWorkItem(inst2, constants.ActionIngest)
	require.Nil(t, store.SaveWorkItem(ctx, other))

	items, total, err := store.WorkItems(ctx,
		db.WorkItemFilter{ScopeInstitution: inst1.Identifier}, db.Paging{PerPage: 25})
	require.Nil(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)

	pending, total, err := store.WorkItems(ctx, db.WorkItemFilter{
		Statuses:         []string{constants.StatusPending},
		ScopeInstitution: inst1.Identifier,
	}, db.Paging{PerPage: 25})
	require.Nil(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, pending, 1)
	assert.Equal(t, ingest.ID, pending[0].ID)

	counts, err := store.CountWorkItems(ctx,
		db.WorkItemFilter{ScopeInstitution: inst1.Identifier})
	require.Nil(t, err)
	assert.Equal(t, 1, counts.Statuses[constants.StatusPending])
	assert.Equal(t, 1, counts.Statuses[constants.StatusStarted])
	assert.Equal(t, 1, counts.Actions[constants.ActionIngest])
	assert.Equal(t, 1, counts.Actions[constants.ActionRestore])
	assert.Equal(t, 2, counts.Institutions[inst1.Identifier])
	assert.Equal(t, 0, counts.Institutions[inst2.Identifier])
}

func TestLatestRestoreItem(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	objIdentifier := inst.Identifier + "/bag"

	first := testutil.NewWorkItem(inst, constants.ActionRestore)
	first.ObjectIdentifier = objIdentifier
	require.Nil(t, store.SaveWorkItem(ctx, first))
	second := testutil.NewWorkItem(inst, constants.ActionRestore)
	second.ObjectIdentifier = objIdentifier
	require.Nil(t, store.SaveWorkItem(ctx, second))

	latest, err := store.LatestRestoreItem(ctx, objIdentifier)
	require.Nil(t, err)
	assert.Equal(t, second.ID, latest.ID)

	_, err = store.LatestRestoreItem(ctx, "nobody.example.org/bag")
	require.NotNil(t, err)
	assert.Equal(t, service.KindNotFound, service.Kind(err))
}

func TestWorkItemStateUpsert(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	item := testutil.NewWorkItem(inst, constants.ActionIngest)
	require.Nil(t, store.SaveWorkItem(ctx, item))

	state, err := registry.NewWorkItemState(item.ID, constants.ActionIngest, []byte(`{"attempt":1}`))
	require.Nil(t, err)
	require.Nil(t, store.SaveWorkItemState(ctx, state))
	firstID := state.ID
	assert.True(t, firstID > 0)

	// A second save replaces the payload instead of adding a row.
	require.Nil(t, state.SetState([]byte(`{"attempt":2}`)))
	state.ID = 0
	require.Nil(t, store.SaveWorkItemState(ctx, state))
	assert.Equal(t, firstID, state.ID)

	loaded, err := store.WorkItemStateForItem(ctx, item.ID)
	require.Nil(t, err)
	plaintext, err := loaded.UnzippedState()
	require.Nil(t, err)
	assert.Equal(t, `{"attempt":2}`, string(plaintext))
}
