package events_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/events"
	"github.com/simple-thread/pharos/models/registry"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/util/logger"
	"github.com/simple-thread/pharos/util/testutil"
)

func newTestLedger(t *testing.T) (*events.Ledger, *db.Store) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	t.Cleanup(func() { store.Close() })
	return events.NewLedger(store, logger.DiscardLogger()), store
}

func TestRecordEventDenormalizesFromFileIdentifier(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	obj, err := testutil.CreateObject(store, inst)
	require.Nil(t, err)
	gf, err := testutil.CreateFile(store, obj)
	require.Nil(t, err)

	event := testutil.NewEvent(gf)
	event.GenericFileID = 0
	event.IntellectualObjectID = 0
	event.IntellectualObjectIdentifier = ""
	event.InstitutionID = 0

	saved, err := ledger.RecordEvent(ctx, event)
	require.Nil(t, err)
	assert.Equal(t, gf.ID, saved.GenericFileID)
	assert.Equal(t, obj.ID, saved.IntellectualObjectID)
	assert.Equal(t, obj.Identifier, saved.IntellectualObjectIdentifier)
	assert.Equal(t, inst.ID, saved.InstitutionID)
	assert.NotEmpty(t, saved.Identifier)
}

func TestRecordEventUnknownFile(t *testing.T) {
	ledger, _ := newTestLedger(t)
	event := testutil.NewEvent(&registry.GenericFile{})
	event.GenericFileIdentifier = "nobody.example.org/bag/data/x.txt"

	_, err := ledger.RecordEvent(context.Background(), event)
	require.NotNil(t, err)
	assert.Equal(t, service.KindNotFound, service.Kind(err))
}

func TestFailedFixityChecksScoped(t *testing.T) {
	ledger, store := newTestLedger(t)
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

	failed1 := testutil.NewEvent(gf1)
	failed1.EventType = constants.EventFixityCheck
	failed1.Outcome = constants.OutcomeFailure
	_, err = ledger.RecordEvent(ctx, failed1)
	require.Nil(t, err)

	passed := testutil.NewEvent(gf1)
	passed.EventType = constants.EventFixityCheck
	_, err = ledger.RecordEvent(ctx, passed)
	require.Nil(t, err)

	failed2 := testutil.NewEvent(gf2)
	failed2.EventType = constants.EventFixityCheck
	failed2.Outcome = constants.OutcomeFailure
	_, err = ledger.RecordEvent(ctx, failed2)
	require.Nil(t, err)

	// The admin sees failures across institutions.
	all, total, err := ledger.FailedFixityChecks(ctx, testutil.AdminUser(),
		testutil.Bloomsday, db.Paging{PerPage: 25})
	require.Nil(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	// An institutional admin sees only their own.
	scoped, total, err := ledger.FailedFixityChecks(ctx, testutil.InstAdminUser(inst1),
		testutil.Bloomsday, db.Paging{PerPage: 25})
	require.Nil(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, scoped, 1)
	assert.Equal(t, gf1.Identifier, scoped[0].GenericFileIdentifier)
}
