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

const dpnItemColumns = `id, remote_node, task, identifier, queued_at,
	completed_at, note, state, created_at, updated_at`

var dpnItemSorts = map[string]string{
	"identifier":      "identifier",
	"queued_at":       "queued_at",
	"queued_at desc":  "queued_at DESC",
	"created_at":      "created_at",
	"created_at desc": "created_at DESC",
}

// SaveDpnWorkItem inserts or updates a DPN work item.
func (s *Store) SaveDpnWorkItem(ctx context.Context, item *registry.DpnWorkItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	item.UpdatedAt = now
	if item.ID == 0 {
		item.CreatedAt = now
		res, err := s.execWithRetry(ctx, `
			INSERT INTO dpn_work_items (remote_node, task, identifier,
				queued_at, completed_at, note, state, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.RemoteNode, item.Task, item.Identifier,
			fmtTime(item.QueuedAt), fmtTime(item.CompletedAt), item.Note,
			item.State, fmtTime(item.CreatedAt), fmtTime(item.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert dpn work item: %w", err)
		}
		item.ID, err = res.LastInsertId()
		return err
	}
	res, err := s.execWithRetry(ctx, `
		UPDATE dpn_work_items SET remote_node = ?, task = ?, identifier = ?,
			queued_at = ?, completed_at = ?, note = ?, state = ?, updated_at = ?
		WHERE id = ?`,
		item.RemoteNode, item.Task, item.Identifier, fmtTime(item.QueuedAt),
		fmtTime(item.CompletedAt), item.Note, item.State,
		fmtTime(item.UpdatedAt), item.ID)
	if err != nil {
		return fmt.Errorf("update dpn work item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return service.NewNotFoundError("DpnWorkItem", strconv.FormatInt(item.ID, 10))
	}
	return nil
}

// DpnWorkItemByID returns the DPN item with the given id, or a
// NotFoundError.
func (s *Store) DpnWorkItemByID(ctx context.Context, id int64) (*registry.DpnWorkItem, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+dpnItemColumns+" FROM dpn_work_items WHERE id = ?", id)
	item, err := scanDpnItem(row)
	if err == sql.ErrNoRows {
		return nil, service.NewNotFoundError("DpnWorkItem", strconv.FormatInt(id, 10))
	}
	return item, err
}

// DpnWorkItems returns DPN items matching the filter, plus the total
// pre-pagination count.
func (s *Store) DpnWorkItems(ctx context.Context, filter DpnWorkItemFilter, paging Paging) ([]*registry.DpnWorkItem, int, error) {
	w := filter.where()
	var total int
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(*) FROM dpn_work_items"+w.sql(), w.args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	limit, offset := paging.LimitOffset()
	query := "SELECT " + dpnItemColumns + " FROM dpn_work_items" + w.sql() +
		orderBy(filter.Sort, dpnItemSorts, "created_at DESC") + " LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ensureContext(ctx), query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*registry.DpnWorkItem
	for rows.Next() {
		item, err := scanDpnItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func scanDpnItem(row rowScanner) (*registry.DpnWorkItem, error) {
	item := &registry.DpnWorkItem{}
	var remoteNode, note, state sql.NullString
	var queuedAt, completedAt, createdAt, updatedAt sql.NullString
	err := row.Scan(&item.ID, &remoteNode, &item.Task, &item.Identifier,
		&queuedAt, &completedAt, &note, &state, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	item.RemoteNode = remoteNode.String
	item.Note = note.String
	item.State = state.String
	item.QueuedAt = parseTime(queuedAt)
	item.CompletedAt = parseTime(completedAt)
	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)
	return item, nil
}
