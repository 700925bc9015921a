// Package deletion implements the two-step soft delete: an authorized
// request creates a guarded Delete WorkItem, and a completion report
// from the deletion worker records the PremisEvent that flips the
// file's state to deleted.
package deletion

import (
	"context"
	"fmt"
	"time"

	"github.com/op/go-logging"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/events"
	"github.com/simple-thread/pharos/models/registry"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/network"
	"github.com/simple-thread/pharos/policy"
)

// Manager coordinates file deletion requests and completions. Files
// are never removed from the registry; deletion flips their state to
// 'D' and leaves the audit trail intact.
type Manager struct {
	Store  *db.Store
	Ledger *events.Ledger
	NSQ    network.NSQClientInterface
	Logger *logging.Logger
}

func NewManager(store *db.Store, ledger *events.Ledger, nsq network.NSQClientInterface, logger *logging.Logger) *Manager {
	return &Manager{
		Store:  store,
		Ledger: ledger,
		NSQ:    nsq,
		Logger: logger,
	}
}

// RequestFileDeletion creates a Delete WorkItem for the file, provided
// the caller is allowed to destroy it and no unresolved Ingest or
// Restore item mentions it. Requesting deletion of an already deleted
// file succeeds without creating anything; the end state the caller
// asked for already holds.
func (m *Manager) RequestFileDeletion(ctx context.Context, user *registry.User, fileIdentifier string) (*registry.WorkItem, error) {
	gf, err := m.Store.GenericFileByIdentifier(ctx, fileIdentifier)
	if err != nil {
		return nil, err
	}
	if !policy.CanRequestDeletion(user, gf.InstitutionID) {
		return nil, service.NewForbiddenError(
			"You are not authorized to delete files at this institution")
	}
	if gf.IsDeleted() {
		return nil, nil
	}
	inst, err := m.Store.InstitutionByID(ctx, gf.InstitutionID)
	if err != nil {
		return nil, err
	}
	item := &registry.WorkItem{
		Name:                  gf.Identifier,
		Institution:           inst.Identifier,
		User:                  user.Email,
		Action:                constants.ActionDelete,
		Stage:                 constants.StageRequested,
		Status:                constants.StatusPending,
		Note:                  fmt.Sprintf("Deletion of %s requested by %s", gf.Identifier, user.Email),
		Retry:                 true,
		ObjectIdentifier:      gf.IntellectualObjectIdentifier,
		GenericFileIdentifier: gf.Identifier,
		Size:                  gf.Size,
	}
	if err := m.Store.CreateDeleteWorkItem(ctx, item); err != nil {
		return nil, err
	}
	m.enqueue(ctx, item)
	m.Logger.Infof("Deletion of %s requested by %s (WorkItem %d)",
		gf.Identifier, user.Email, item.ID)
	return item, nil
}

func (m *Manager) enqueue(ctx context.Context, item *registry.WorkItem) {
	if m.NSQ == nil {
		return
	}
	if err := m.NSQ.Enqueue(constants.TopicDelete, item.ID); err != nil {
		m.Logger.Errorf("Could not queue delete WorkItem %d: %v", item.ID, err)
		return
	}
	item.QueuedAt = time.Now().UTC()
	if err := m.Store.SaveWorkItem(ctx, item); err != nil {
		m.Logger.Errorf("Delete WorkItem %d queued but QueuedAt not saved: %v", item.ID, err)
	}
}

// CompleteFileDeletion records the deletion event the worker reports
// after removing the file from storage. The event insert and the state
// flip to 'D' share one transaction. Completing an already deleted
// file is a no-op; the worker may report the same deletion twice after
// a crash-and-resume.
func (m *Manager) CompleteFileDeletion(ctx context.Context, fileIdentifier, requestedBy string) (*registry.PremisEvent, error) {
	gf, err := m.Store.GenericFileByIdentifier(ctx, fileIdentifier)
	if err != nil {
		return nil, err
	}
	if gf.IsDeleted() {
		return nil, nil
	}
	event := registry.NewDeletionRequestEvent(
		gf.IntellectualObjectIdentifier, gf.Identifier, requestedBy)
	event.GenericFileID = gf.ID
	event.IntellectualObjectID = gf.IntellectualObjectID
	event.InstitutionID = gf.InstitutionID
	return m.Ledger.RecordEvent(ctx, event)
}
