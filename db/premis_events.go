package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/models/registry"
	"github.com/simple-thread/pharos/models/service"
)

const eventColumns = `pe.id, pe.identifier, pe.event_type, pe.date_time,
	pe.detail, pe.outcome, pe.outcome_detail, pe.outcome_information,
	pe.object, pe.agent, pe.institution_id, pe.intellectual_object_id,
	pe.intellectual_object_identifier, pe.generic_file_id,
	pe.generic_file_identifier, pe.created_at, pe.updated_at`

const eventFrom = ` FROM premis_events pe
	JOIN intellectual_objects obj ON obj.id = pe.intellectual_object_id`

var eventSorts = map[string]string{
	"date_time":       "pe.date_time",
	"date_time desc":  "pe.date_time DESC",
	"created_at":      "pe.created_at",
	"created_at desc": "pe.created_at DESC",
	"identifier":      "pe.identifier",
}

// SavePremisEvent inserts a new event. Events are append-only; there is
// no update path. A fixity check event also advances the parent file's
// last_fixity_check, and a deletion event flips the target's state to
// deleted, both in the same transaction as the insert.
func (s *Store) SavePremisEvent(ctx context.Context, event *registry.PremisEvent) error {
	return s.inTransaction(ctx, func(tx *sql.Tx) error {
		return s.insertPremisEventTx(ctx, tx, event)
	})
}

func (s *Store) insertPremisEventTx(ctx context.Context, tx *sql.Tx, event *registry.PremisEvent) error {
	event.Init()
	if err := event.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now
	res, err := tx.ExecContext(ensureContext(ctx), `
		INSERT INTO premis_events (identifier, event_type, date_time, detail,
			outcome, outcome_detail, outcome_information, object, agent,
			institution_id, intellectual_object_id,
			intellectual_object_identifier, generic_file_id,
			generic_file_identifier, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Identifier, event.EventType, fmtTime(event.DateTime),
		event.Detail, event.Outcome, event.OutcomeDetail,
		event.OutcomeInformation, event.Object, event.Agent,
		event.InstitutionID, event.IntellectualObjectID,
		event.IntellectualObjectIdentifier, nullableID(event.GenericFileID),
		event.GenericFileIdentifier, fmtTime(event.CreatedAt),
		fmtTime(event.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert premis event: %w", err)
	}
	event.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}
	return s.applyEventSideEffects(ctx, tx, event)
}

// applyEventSideEffects keeps the registry's derived fields in step
// with the event ledger. Running inside the event's own transaction
// means a reader can never observe a fixity event without the matching
// last_fixity_check, or a deletion event without the 'D' state.
func (s *Store) applyEventSideEffects(ctx context.Context, tx *sql.Tx, event *registry.PremisEvent) error {
	ctx = ensureContext(ctx)
	if event.IsFixityCheck() && event.GenericFileID != 0 {
		_, err := tx.ExecContext(ctx, `
			UPDATE generic_files SET last_fixity_check = ?, updated_at = ?
			WHERE id = ?`,
			fmtTime(event.DateTime), fmtTime(time.Now().UTC()), event.GenericFileID)
		if err != nil {
			return fmt.Errorf("update last_fixity_check: %w", err)
		}
	}
	if event.EventType == constants.EventDeletion {
		now := fmtTime(time.Now().UTC())
		if event.GenericFileID != 0 {
			_, err := tx.ExecContext(ctx, `
				UPDATE generic_files SET state = ?, updated_at = ?
				WHERE id = ?`,
				constants.StateDeleted, now, event.GenericFileID)
			if err != nil {
				return fmt.Errorf("mark file deleted: %w", err)
			}
		} else if event.IntellectualObjectID != 0 {
			_, err := tx.ExecContext(ctx, `
				UPDATE intellectual_objects SET state = ?, updated_at = ?
				WHERE id = ?`,
				constants.StateDeleted, now, event.IntellectualObjectID)
			if err != nil {
				return fmt.Errorf("mark object deleted: %w", err)
			}
		}
	}
	return nil
}

// PremisEventByIdentifier returns the event with the given UUID
// identifier, or a NotFoundError.
func (s *Store) PremisEventByIdentifier(ctx context.Context, identifier string) (*registry.PremisEvent, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+eventColumns+eventFrom+" WHERE pe.identifier = ?", identifier)
	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, service.NewNotFoundError("PremisEvent", identifier)
	}
	return event, err
}

// PremisEvents returns events matching the filter, plus the total
// pre-pagination count.
func (s *Store) PremisEvents(ctx context.Context, filter EventFilter, paging Paging) ([]*registry.PremisEvent, int, error) {
	w := filter.where()
	var total int
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(*)"+eventFrom+w.sql(), w.args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	limit, offset := paging.LimitOffset()
	query := "SELECT " + eventColumns + eventFrom + w.sql() +
		orderBy(filter.Sort, eventSorts, "pe.date_time DESC") + " LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ensureContext(ctx), query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var events []*registry.PremisEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}
	return events, total, rows.Err()
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func scanEvent(row rowScanner) (*registry.PremisEvent, error) {
	event := &registry.PremisEvent{}
	var outcomeInfo, fileIdentifier sql.NullString
	var fileID sql.NullInt64
	var dateTime, createdAt, updatedAt sql.NullString
	err := row.Scan(&event.ID, &event.Identifier, &event.EventType, &dateTime,
		&event.Detail, &event.Outcome, &event.OutcomeDetail, &outcomeInfo,
		&event.Object, &event.Agent, &event.InstitutionID,
		&event.IntellectualObjectID, &event.IntellectualObjectIdentifier,
		&fileID, &fileIdentifier, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	event.OutcomeInformation = outcomeInfo.String
	event.GenericFileID = fileID.Int64
	event.GenericFileIdentifier = fileIdentifier.String
	event.DateTime = parseTime(dateTime)
	event.CreatedAt = parseTime(createdAt)
	event.UpdatedAt = parseTime(updatedAt)
	return event, nil
}
