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

func TestCreateGenericFileCoercesStorageOption(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	obj, err := testutil.CreateObject(store, inst)
	require.Nil(t, err)

	gf := &registry.GenericFile{
		Identifier:           obj.Identifier + "/data/readme.txt",
		URI:                  "https://example.com/preservation/readme",
		Size:                 128,
		FileFormat:           "text/plain",
		StorageOption:        constants.StorageGlacierVA,
		IntellectualObjectID: obj.ID,
		Checksums: []*registry.Checksum{
			{Algorithm: constants.AlgMd5, Digest: "0123456789abcdef0123456789abcdef"},
		},
	}
	require.Nil(t, store.CreateGenericFile(ctx, gf))

	// A file can never diverge from its object's storage option.
	reloaded, err := store.GenericFileByIdentifier(ctx, gf.Identifier)
	require.Nil(t, err)
	assert.Equal(t, constants.StorageStandard, reloaded.StorageOption)
	assert.Equal(t, inst.ID, reloaded.InstitutionID)
	assert.Equal(t, obj.Identifier, reloaded.IntellectualObjectIdentifier)
	require.Len(t, reloaded.Checksums, 1)
	assert.Equal(t, constants.AlgMd5, reloaded.Checksums[0].Algorithm)
}

func TestCreateGenericFileSkipsDuplicateDigests(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	obj, err := testutil.CreateObject(store, inst)
	require.Nil(t, err)

	// Payload and tag manifests often report the same md5 digest.
	gf := &registry.GenericFile{
		Identifier:           obj.Identifier + "/data/dupes.txt",
		URI:                  "https://example.com/preservation/dupes",
		Size:                 64,
		FileFormat:           "text/plain",
		IntellectualObjectID: obj.ID,
		Checksums: []*registry.Checksum{
			{Algorithm: constants.AlgMd5, Digest: "fedcba9876543210fedcba9876543210"},
			{Algorithm: constants.AlgMd5, Digest: "fedcba9876543210fedcba9876543210"},
			{Algorithm: constants.AlgSha256, Digest: "bb"},
		},
	}
	require.Nil(t, store.CreateGenericFile(ctx, gf))

	reloaded, err := store.GenericFileByIdentifier(ctx, gf.Identifier)
	require.Nil(t, err)
	require.Len(t, reloaded.Checksums, 2)
	assert.True(t, reloaded.HasChecksum("fedcba9876543210fedcba9876543210"))
	assert.True(t, reloaded.HasChecksum("bb"))
}

func TestCreateGenericFileRequiresChecksum(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	obj, err := testutil.CreateObject(store, inst)
	require.Nil(t, err)

	gf := &registry.GenericFile{
		Identifier:           obj.Identifier + "/data/nochecksum.txt",
		URI:                  "https://example.com/preservation/nochecksum",
		FileFormat:           "text/plain",
		IntellectualObjectID: obj.ID,
	}
	err = store.CreateGenericFile(context.Background(), gf)
	require.NotNil(t, err)
	assert.Equal(t, service.KindValidation, service.Kind(err))
}

func TestUpdateGenericFileFrozenFields(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	otherInst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	obj, err := testutil.CreateObject(store, inst)
	require.Nil(t, err)
	gf, err := testutil.CreateFile(store, obj)
	require.Nil(t, err)

	gf.StorageOption = constants.StorageGlacierOH
	err = store.UpdateGenericFile(ctx, gf)
	require.NotNil(t, err)
	assert.Equal(t, service.KindValidation, service.Kind(err))
	gf.StorageOption = constants.StorageStandard

	gf.InstitutionID = otherInst.ID
	err = store.UpdateGenericFile(ctx, gf)
	require.NotNil(t, err)
	assert.Equal(t, service.KindValidation, service.Kind(err))
	gf.InstitutionID = inst.ID

	gf.Size = 9999
	require.Nil(t, store.UpdateGenericFile(ctx, gf))
	reloaded, err := store.GenericFileByID(ctx, gf.ID)
	require.Nil(t, err)
	assert.EqualValues(t, 9999, reloaded.Size)
}

func TestUpdateGenericFileNoResurrection(t *testing.T) {
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

	gf.State = constants.StateActive
	err = store.UpdateGenericFile(ctx, gf)
	require.NotNil(t, err)
	assert.Equal(t, service.KindValidation, service.Kind(err))
}

func TestSaveGenericFileBatchRollsBack(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	obj, err := testutil.CreateObject(store, inst)
	require.Nil(t, err)

	good := &registry.GenericFile{
		Identifier: obj.Identifier + "/data/good.txt",
		URI:        "https://example.com/preservation/good",
		FileFormat: "text/plain",
		Checksums: []*registry.Checksum{
			{Algorithm: constants.AlgSha256, Digest: "aa"},
		},
	}
	// Missing checksums makes this one invalid.
	bad := &registry.GenericFile{
		Identifier: obj.Identifier + "/data/bad.txt",
		URI:        "https://example.com/preservation/bad",
		FileFormat: "text/plain",
	}
	events := map[string][]*registry.PremisEvent{
		good.Identifier: {testutil.NewEvent(&registry.GenericFile{
			IntellectualObjectID: obj.ID, Identifier: good.Identifier,
			InstitutionID: inst.ID, IntellectualObjectIdentifier: obj.Identifier,
		})},
		bad.Identifier: {},
	}
	err = store.SaveGenericFileBatch(ctx, obj.ID, []*registry.GenericFile{good, bad}, events)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), bad.Identifier)

	// Nothing from the failed batch persists, not even the valid file.
	_, err = store.GenericFileByIdentifier(ctx, good.Identifier)
	require.NotNil(t, err)
	assert.Equal(t, service.KindNotFound, service.Kind(err))
}

func TestGenericFilesNotCheckedSince(t *testing.T) {
	store, err := testutil.OpenTestStore()
	require.Nil(t, err)
	defer store.Close()
	ctx := context.Background()

	inst, err := testutil.CreateInstitution(store)
	require.Nil(t, err)
	obj, err := testutil.CreateObject(store, inst)
	require.Nil(t, err)
	stale, err := testutil.CreateFile(store, obj)
	require.Nil(t, err)
	fresh, err := testutil.CreateFile(store, obj)
	require.Nil(t, err)

	staleEvent := testutil.NewEvent(stale)
	staleEvent.EventType = constants.EventFixityCheck
	staleEvent.DateTime = testutil.Bloomsday
	require.Nil(t, store.SavePremisEvent(ctx, staleEvent))

	freshEvent := testutil.NewEvent(fresh)
	freshEvent.EventType = constants.EventFixityCheck
	require.Nil(t, store.SavePremisEvent(ctx, freshEvent))

	cutoff := testutil.Bloomsday.AddDate(10, 0, 0)
	files, total, err := store.GenericFiles(ctx,
		db.FileFilter{NotCheckedSince: cutoff}, db.Paging{PerPage: 25})
	require.Nil(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, files, 1)
	assert.Equal(t, stale.Identifier, files[0].Identifier)
}
