package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/simple-thread/pharos/models/registry"
	"github.com/simple-thread/pharos/models/service"
)

// SaveWorkItemState upserts the state snapshot for a work item. Each
// item has at most one state record; a second save for the same
// work_item_id replaces the payload rather than adding a row.
func (s *Store) SaveWorkItemState(ctx context.Context, state *registry.WorkItemState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	state.UpdatedAt = now
	res, err := s.execWithRetry(ctx, `
		UPDATE work_item_states SET action = ?, state = ?, updated_at = ?
		WHERE work_item_id = ?`,
		state.Action, state.State, fmtTime(state.UpdatedAt), state.WorkItemID)
	if err != nil {
		return fmt.Errorf("update work item state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		if state.ID == 0 {
			row := s.db.QueryRowContext(ensureContext(ctx),
				"SELECT id, created_at FROM work_item_states WHERE work_item_id = ?",
				state.WorkItemID)
			var createdAt sql.NullString
			if err := row.Scan(&state.ID, &createdAt); err != nil {
				return err
			}
			state.CreatedAt = parseTime(createdAt)
		}
		return nil
	}
	state.CreatedAt = now
	insertRes, err := s.execWithRetry(ctx, `
		INSERT INTO work_item_states (work_item_id, action, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		state.WorkItemID, state.Action, state.State,
		fmtTime(state.CreatedAt), fmtTime(state.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert work item state: %w", err)
	}
	state.ID, err = insertRes.LastInsertId()
	return err
}

// WorkItemStateForItem returns the state snapshot for the given work
// item, or a NotFoundError if the item has never saved one.
func (s *Store) WorkItemStateForItem(ctx context.Context, workItemID int64) (*registry.WorkItemState, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `
		SELECT id, work_item_id, action, state, created_at, updated_at
		FROM work_item_states WHERE work_item_id = ?`, workItemID)
	state := &registry.WorkItemState{}
	var createdAt, updatedAt sql.NullString
	err := row.Scan(&state.ID, &state.WorkItemID, &state.Action, &state.State,
		&createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, service.NewNotFoundError("WorkItemState", strconv.FormatInt(workItemID, 10))
	}
	if err != nil {
		return nil, err
	}
	state.CreatedAt = parseTime(createdAt)
	state.UpdatedAt = parseTime(updatedAt)
	return state, nil
}
