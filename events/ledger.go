// Package events records and queries PREMIS events, the append-only
// audit trail of everything that happens to preserved content.
package events

import (
	"context"
	"time"

	"github.com/op/go-logging"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/models/registry"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/policy"
)

// Ledger is the write and query path for PremisEvents. Events are
// never updated or deleted once recorded.
type Ledger struct {
	Store  *db.Store
	Logger *logging.Logger
}

func NewLedger(store *db.Store, logger *logging.Logger) *Ledger {
	return &Ledger{Store: store, Logger: logger}
}

// RecordEvent assigns the event an identifier if it has none,
// denormalizes the object and file identifiers onto it, and saves it.
// Side effects (fixity timestamp, deletion state flip) are applied in
// the same transaction by the store.
func (l *Ledger) RecordEvent(ctx context.Context, event *registry.PremisEvent) (*registry.PremisEvent, error) {
	event.Init()
	if err := l.denormalize(ctx, event); err != nil {
		return nil, err
	}
	if err := l.Store.SavePremisEvent(ctx, event); err != nil {
		return nil, err
	}
	l.Logger.Infof("Recorded %s event %s for %s",
		event.EventType, event.Identifier, l.targetOf(event))
	return event, nil
}

// denormalize fills in ids from identifiers and vice versa, so callers
// can submit either form. Identifier lookups that miss surface as
// NotFoundError.
func (l *Ledger) denormalize(ctx context.Context, event *registry.PremisEvent) error {
	if event.GenericFileID == 0 && event.GenericFileIdentifier != "" {
		gf, err := l.Store.GenericFileByIdentifier(ctx, event.GenericFileIdentifier)
		if err != nil {
			return err
		}
		event.GenericFileID = gf.ID
		event.IntellectualObjectID = gf.IntellectualObjectID
		event.IntellectualObjectIdentifier = gf.IntellectualObjectIdentifier
		event.InstitutionID = gf.InstitutionID
		return nil
	}
	if event.GenericFileID != 0 && event.GenericFileIdentifier == "" {
		gf, err := l.Store.GenericFileByID(ctx, event.GenericFileID)
		if err != nil {
			return err
		}
		event.GenericFileIdentifier = gf.Identifier
		event.IntellectualObjectID = gf.IntellectualObjectID
		event.IntellectualObjectIdentifier = gf.IntellectualObjectIdentifier
		event.InstitutionID = gf.InstitutionID
		return nil
	}
	if event.IntellectualObjectID == 0 && event.IntellectualObjectIdentifier != "" {
		obj, err := l.Store.IntellectualObjectByIdentifier(ctx, event.IntellectualObjectIdentifier)
		if err != nil {
			return err
		}
		event.IntellectualObjectID = obj.ID
		event.InstitutionID = obj.InstitutionID
		return nil
	}
	if event.IntellectualObjectID != 0 && event.IntellectualObjectIdentifier == "" {
		obj, err := l.Store.IntellectualObjectByID(ctx, event.IntellectualObjectID)
		if err != nil {
			return err
		}
		event.IntellectualObjectIdentifier = obj.Identifier
		event.InstitutionID = obj.InstitutionID
	}
	if event.IntellectualObjectID == 0 {
		return service.NewValidationError("intellectual_object_id",
			"Event must reference an object or file")
	}
	return nil
}

// Events returns events visible to user, matching the filter.
func (l *Ledger) Events(ctx context.Context, user *registry.User, filter db.EventFilter, paging db.Paging) ([]*registry.PremisEvent, int, error) {
	policy.ScopeEvents(user, &filter)
	return l.Store.PremisEvents(ctx, filter, paging)
}

// FailedFixityChecks returns fixity check events with a Failure
// outcome recorded at or after since, scoped to what user may see.
func (l *Ledger) FailedFixityChecks(ctx context.Context, user *registry.User, since time.Time, paging db.Paging) ([]*registry.PremisEvent, int, error) {
	filter := db.EventFilter{
		EventType:    constants.EventFixityCheck,
		Outcome:      constants.OutcomeFailure,
		CreatedAfter: since,
		Sort:         "date_time desc",
	}
	policy.ScopeEvents(user, &filter)
	return l.Store.PremisEvents(ctx, filter, paging)
}

func (l *Ledger) targetOf(event *registry.PremisEvent) string {
	if event.GenericFileIdentifier != "" {
		return event.GenericFileIdentifier
	}
	return event.IntellectualObjectIdentifier
}
