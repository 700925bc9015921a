package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/models/registry"
)

// Bloomsday is a fixed timestamp for tests: June 16, 1904.
var Bloomsday, _ = time.Parse(time.RFC3339, "1904-06-16T15:04:05Z")

var seq int64

// NextSeq returns a process-unique number for building distinct
// identifiers within a test run.
func NextSeq() int64 {
	return atomic.AddInt64(&seq, 1)
}

// OpenTestStore returns a store backed by a private in-memory database.
func OpenTestStore() (*db.Store, error) {
	return db.Open(":memory:")
}

// CreateInstitution saves and returns a new institution with a unique
// identifier under test.edu.
func CreateInstitution(s *db.Store) (*registry.Institution, error) {
	n := NextSeq()
	inst := &registry.Institution{
		Identifier:      fmt.Sprintf("inst%d.test.edu", n),
		Name:            fmt.Sprintf("Test Institution %d", n),
		Type:            constants.InstTypeMember,
		ReceivingBucket: fmt.Sprintf("receiving.inst%d.test.edu", n),
		RestoreBucket:   fmt.Sprintf("restore.inst%d.test.edu", n),
	}
	err := s.SaveInstitution(context.Background(), inst)
	return inst, err
}

// CreateObject saves and returns a new intellectual object belonging to
// inst.
func CreateObject(s *db.Store, inst *registry.Institution) (*registry.IntellectualObject, error) {
	n := NextSeq()
	obj := &registry.IntellectualObject{
		Identifier:    fmt.Sprintf("%s/bag-%d", inst.Identifier, n),
		BagName:       fmt.Sprintf("bag-%d", n),
		Title:         fmt.Sprintf("Test Bag %d", n),
		Access:        constants.AccessInstitution,
		State:         constants.StateActive,
		StorageOption: constants.StorageStandard,
		ETag:          fmt.Sprintf("etag-%d", n),
		InstitutionID: inst.ID,
	}
	err := s.SaveIntellectualObject(context.Background(), obj)
	return obj, err
}

// CreateFile saves and returns a new generic file under obj, with one
// sha256 checksum.
func CreateFile(s *db.Store, obj *registry.IntellectualObject) (*registry.GenericFile, error) {
	n := NextSeq()
	gf := &registry.GenericFile{
		Identifier:           fmt.Sprintf("%s/data/file-%d.txt", obj.Identifier, n),
		URI:                  fmt.Sprintf("https://example.com/preservation/file-%d", n),
		Size:                 4096,
		FileFormat:           "text/plain",
		State:                constants.StateActive,
		IntellectualObjectID: obj.ID,
		Checksums: []*registry.Checksum{
			{
				Algorithm: constants.AlgSha256,
				Digest:    fmt.Sprintf("%064d", n),
				DateTime:  Bloomsday,
			},
		},
	}
	err := s.CreateGenericFile(context.Background(), gf)
	return gf, err
}

// NewEvent returns an unsaved ingestion event for gf.
func NewEvent(gf *registry.GenericFile) *registry.PremisEvent {
	event := &registry.PremisEvent{
		EventType:                    constants.EventIngestion,
		Detail:                       "Completed copy to preservation storage",
		Outcome:                      constants.OutcomeSuccess,
		OutcomeDetail:                "sha256 checksum verified",
		Object:                       "preservation worker",
		Agent:                        "https://example.com/workers",
		InstitutionID:                gf.InstitutionID,
		IntellectualObjectID:         gf.IntellectualObjectID,
		IntellectualObjectIdentifier: gf.IntellectualObjectIdentifier,
		GenericFileID:                gf.ID,
		GenericFileIdentifier:        gf.Identifier,
	}
	event.Init()
	return event
}

// NewWorkItem returns an unsaved work item of the given action in the
// initial Requested/Pending state.
func NewWorkItem(inst *registry.Institution, action string) *registry.WorkItem {
	n := NextSeq()
	return &registry.WorkItem{
		Name:        fmt.Sprintf("%s.bag-%d.tar", inst.Identifier, n),
		ETag:        fmt.Sprintf("etag-%d", n),
		BagDate:     Bloomsday,
		Bucket:      inst.ReceivingBucket,
		Institution: inst.Identifier,
		User:        "user@" + inst.Identifier,
		Action:      action,
		Stage:       constants.StageRequested,
		Status:      constants.StatusPending,
		Note:        "Awaiting processing",
		Retry:       true,
	}
}

// AdminUser returns a system administrator.
func AdminUser() *registry.User {
	return &registry.User{
		ID:                    1,
		Email:                 "admin@aptrust.org",
		Name:                  "Sys Admin",
		InstitutionIdentifier: constants.APTrustID,
		Role:                  constants.RoleAdmin,
	}
}

// InstAdminUser returns an institutional admin for inst.
func InstAdminUser(inst *registry.Institution) *registry.User {
	return &registry.User{
		ID:                    NextSeq(),
		Email:                 "admin@" + inst.Identifier,
		Name:                  "Inst Admin",
		InstitutionID:         inst.ID,
		InstitutionIdentifier: inst.Identifier,
		Role:                  constants.RoleInstAdmin,
	}
}

// InstUser returns a regular institutional user for inst.
func InstUser(inst *registry.Institution) *registry.User {
	return &registry.User{
		ID:                    NextSeq(),
		Email:                 "user@" + inst.Identifier,
		Name:                  "Inst User",
		InstitutionID:         inst.ID,
		InstitutionIdentifier: inst.Identifier,
		Role:                  constants.RoleInstUser,
	}
}
