package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/models/registry"
	"github.com/simple-thread/pharos/models/service"
)

const workItemColumns = `id, name, etag, bag_date, bucket, institution,
	user, action, stage, status, outcome, note, date, retry, reviewed,
	needs_admin_review, node, pid, object_identifier,
	generic_file_identifier, size, queued_at, stage_started_at,
	created_at, updated_at`

var workItemSorts = map[string]string{
	"date":            "date",
	"date desc":       "date DESC",
	"name":            "name",
	"created_at":      "created_at",
	"created_at desc": "created_at DESC",
	"updated_at desc": "updated_at DESC",
	"institution":     "institution",
}

// WorkItemCounts holds facet counts for a filtered work item set. Keys
// are the distinct values found in the filtered rows, so the UI can
// render only facets that would return results.
type WorkItemCounts struct {
	Statuses     map[string]int `json:"statuses"`
	Stages       map[string]int `json:"stages"`
	Actions      map[string]int `json:"actions"`
	Institutions map[string]int `json:"institutions"`
}

// SaveWorkItem inserts or updates a work item.
func (s *Store) SaveWorkItem(ctx context.Context, item *registry.WorkItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	item.UpdatedAt = now
	if item.ID == 0 {
		item.CreatedAt = now
		if item.Date.IsZero() {
			item.Date = now
		}
		res, err := s.execWithRetry(ctx, `
			INSERT INTO work_items (name, etag, bag_date, bucket, institution,
				user, action, stage, status, outcome, note, date, retry,
				reviewed, needs_admin_review, node, pid, object_identifier,
				generic_file_identifier, size, queued_at, stage_started_at,
				created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.Name, item.ETag, fmtTime(item.BagDate), item.Bucket,
			item.Institution, item.User, item.Action, item.Stage, item.Status,
			item.Outcome, item.Note, fmtTime(item.Date), boolArg(item.Retry),
			boolArg(item.Reviewed), boolArg(item.NeedsAdminReview), item.Node,
			item.Pid, item.ObjectIdentifier, item.GenericFileIdentifier,
			item.Size, fmtTime(item.QueuedAt), fmtTime(item.StageStartedAt),
			fmtTime(item.CreatedAt), fmtTime(item.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert work item: %w", err)
		}
		item.ID, err = res.LastInsertId()
		return err
	}
	item.Date = now
	res, err := s.execWithRetry(ctx, `
		UPDATE work_items SET name = ?, etag = ?, bag_date = ?, bucket = ?,
			institution = ?, user = ?, action = ?, stage = ?, status = ?,
			outcome = ?, note = ?, date = ?, retry = ?, reviewed = ?,
			needs_admin_review = ?, node = ?, pid = ?, object_identifier = ?,
			generic_file_identifier = ?, size = ?, queued_at = ?,
			stage_started_at = ?, updated_at = ?
		WHERE id = ?`,
		item.Name, item.ETag, fmtTime(item.BagDate), item.Bucket,
		item.Institution, item.User, item.Action, item.Stage, item.Status,
		item.Outcome, item.Note, fmtTime(item.Date), boolArg(item.Retry),
		boolArg(item.Reviewed), boolArg(item.NeedsAdminReview), item.Node,
		item.Pid, item.ObjectIdentifier, item.GenericFileIdentifier,
		item.Size, fmtTime(item.QueuedAt), fmtTime(item.StageStartedAt),
		fmtTime(item.UpdatedAt), item.ID)
	if err != nil {
		return fmt.Errorf("update work item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return service.NewNotFoundError("WorkItem", strconv.FormatInt(item.ID, 10))
	}
	return nil
}

// WorkItemByID returns the item with the given id, or a NotFoundError.
func (s *Store) WorkItemByID(ctx context.Context, id int64) (*registry.WorkItem, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+workItemColumns+" FROM work_items WHERE id = ?", id)
	item, err := scanWorkItem(row)
	if err == sql.ErrNoRows {
		return nil, service.NewNotFoundError("WorkItem", strconv.FormatInt(id, 10))
	}
	return item, err
}

// WorkItemByNaturalKey returns the most recent item matching the
// etag + name + bag_date triple that identifies one uploaded bag.
// Polling workers treat the NotFoundError as "ingest has not started",
// so this must never return anything else on a miss.
func (s *Store) WorkItemByNaturalKey(ctx context.Context, etag, name string, bagDate time.Time) (*registry.WorkItem, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+workItemColumns+` FROM work_items
		WHERE etag = ? AND name = ? AND bag_date = ?
		ORDER BY date DESC LIMIT 1`,
		etag, name, fmtTime(bagDate))
	item, err := scanWorkItem(row)
	if err == sql.ErrNoRows {
		return nil, service.NewNotFoundError("WorkItem",
			fmt.Sprintf("%s/%s/%s", etag, name, bagDate.UTC().Format(time.RFC3339)))
	}
	return item, err
}

// WorkItems returns items matching the filter, plus the total
// pre-pagination count.
func (s *Store) WorkItems(ctx context.Context, filter WorkItemFilter, paging Paging) ([]*registry.WorkItem, int, error) {
	w := filter.where()
	var total int
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(*) FROM work_items"+w.sql(), w.args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	limit, offset := paging.LimitOffset()
	query := "SELECT " + workItemColumns + " FROM work_items" + w.sql() +
		orderBy(filter.Sort, workItemSorts, "date DESC") + " LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ensureContext(ctx), query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*registry.WorkItem
	for rows.Next() {
		item, err := scanWorkItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// CountWorkItems returns facet counts over the filtered item set,
// grouped by status, stage, action and institution.
func (s *Store) CountWorkItems(ctx context.Context, filter WorkItemFilter) (*WorkItemCounts, error) {
	counts := &WorkItemCounts{
		Statuses:     make(map[string]int),
		Stages:       make(map[string]int),
		Actions:      make(map[string]int),
		Institutions: make(map[string]int),
	}
	facets := []struct {
		column string
		dest   map[string]int
	}{
		{"status", counts.Statuses},
		{"stage", counts.Stages},
		{"action", counts.Actions},
		{"institution", counts.Institutions},
	}
	for _, facet := range facets {
		w := filter.where()
		query := fmt.Sprintf("SELECT %s, COUNT(*) FROM work_items%s GROUP BY %s",
			facet.column, w.sql(), facet.column)
		rows, err := s.db.QueryContext(ensureContext(ctx), query, w.args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var value string
			var count int
			if err := rows.Scan(&value, &count); err != nil {
				rows.Close()
				return nil, err
			}
			facet.dest[value] = count
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return counts, nil
}

// ClaimWorkItem assigns a pending item to the worker identified by node
// and pid. The status check and the assignment happen in one UPDATE, so
// when two workers race for the same item exactly one claim succeeds;
// the loser gets a ConflictError. With allowFailedRetry, a Failed item
// flagged for retry may also be claimed.
func (s *Store) ClaimWorkItem(ctx context.Context, id int64, node string, pid int, allowFailedRetry bool) (*registry.WorkItem, error) {
	now := time.Now().UTC()
	statusClause := "status = ?"
	args := []any{constants.StatusStarted, node, pid, fmtTime(now), fmtTime(now), id, constants.StatusPending}
	if allowFailedRetry {
		statusClause = "(status = ? OR (status = ? AND retry = 1))"
		args = append(args, constants.StatusFailed)
	}
	res, err := s.execWithRetry(ctx, `
		UPDATE work_items SET status = ?, node = ?, pid = ?,
			stage_started_at = ?, updated_at = ?
		WHERE id = ? AND `+statusClause+" AND (node IS NULL OR node = '')", args...)
	if err != nil {
		return nil, fmt.Errorf("claim work item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 1 {
		return s.WorkItemByID(ctx, id)
	}
	// The claim missed. Distinguish a vanished item from a lost race.
	item, err := s.WorkItemByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, service.NewConflictError(item.Action)
}

// CreateDeleteWorkItem creates a Delete work item for a file after
// verifying no unresolved Ingest or Restore item mentions the file.
// The check and the insert share one immediate transaction, so two
// racing requests cannot both pass the guard against a conflicting
// item committed in between. A pending Delete for the same file does
// not block; a repeat request is allowed to queue behind the first.
func (s *Store) CreateDeleteWorkItem(ctx context.Context, item *registry.WorkItem) error {
	if item.Action != constants.ActionDelete {
		return service.NewValidationError("action", "Action must be Delete")
	}
	if err := item.Validate(); err != nil {
		return err
	}
	return s.inTransaction(ctx, func(tx *sql.Tx) error {
		// Object-level Ingest and Restore items carry only an object
		// identifier, and an in-flight one covers every file in the
		// bag, so they must block a file delete too.
		rows, err := tx.QueryContext(ensureContext(ctx), `
			SELECT action, status FROM work_items
			WHERE (generic_file_identifier = ?
				OR (object_identifier = ?
					AND (generic_file_identifier IS NULL OR generic_file_identifier = '')))
			AND action IN (?, ?)`,
			item.GenericFileIdentifier, item.ObjectIdentifier,
			constants.ActionIngest, constants.ActionRestore)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var action, status string
			if err := rows.Scan(&action, &status); err != nil {
				return err
			}
			pending := registry.WorkItem{Action: action, Status: status}
			if pending.BlocksFileDeletion() {
				return service.NewConflictError(action)
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
		now := time.Now().UTC()
		item.CreatedAt = now
		item.UpdatedAt = now
		if item.Date.IsZero() {
			item.Date = now
		}
		res, err := tx.ExecContext(ensureContext(ctx), `
			INSERT INTO work_items (name, etag, bag_date, bucket, institution,
				user, action, stage, status, outcome, note, date, retry,
				reviewed, needs_admin_review, node, pid, object_identifier,
				generic_file_identifier, size, queued_at, stage_started_at,
				created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.Name, item.ETag, fmtTime(item.BagDate), item.Bucket,
			item.Institution, item.User, item.Action, item.Stage, item.Status,
			item.Outcome, item.Note, fmtTime(item.Date), boolArg(item.Retry),
			boolArg(item.Reviewed), boolArg(item.NeedsAdminReview), item.Node,
			item.Pid, item.ObjectIdentifier, item.GenericFileIdentifier,
			item.Size, fmtTime(item.QueuedAt), fmtTime(item.StageStartedAt),
			fmtTime(item.CreatedAt), fmtTime(item.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert delete work item: %w", err)
		}
		item.ID, err = res.LastInsertId()
		return err
	})
}

// LatestRestoreItem returns the most recent Restore work item for the
// given object identifier, or a NotFoundError.
func (s *Store) LatestRestoreItem(ctx context.Context, objectIdentifier string) (*registry.WorkItem, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+workItemColumns+` FROM work_items
		WHERE action = ? AND object_identifier = ?
		ORDER BY date DESC LIMIT 1`,
		constants.ActionRestore, objectIdentifier)
	item, err := scanWorkItem(row)
	if err == sql.ErrNoRows {
		return nil, service.NewNotFoundError("WorkItem", objectIdentifier)
	}
	return item, err
}

func scanWorkItem(row rowScanner) (*registry.WorkItem, error) {
	item := &registry.WorkItem{}
	var etag, bucket, outcome, note, node, objIdentifier, fileIdentifier sql.NullString
	var bagDate, date, queuedAt, stageStartedAt, createdAt, updatedAt sql.NullString
	var retry, reviewed, needsAdminReview int
	err := row.Scan(&item.ID, &item.Name, &etag, &bagDate, &bucket,
		&item.Institution, &item.User, &item.Action, &item.Stage,
		&item.Status, &outcome, &note, &date, &retry, &reviewed,
		&needsAdminReview, &node, &item.Pid, &objIdentifier,
		&fileIdentifier, &item.Size, &queuedAt, &stageStartedAt,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	item.ETag = etag.String
	item.Bucket = bucket.String
	item.Outcome = outcome.String
	item.Note = note.String
	item.Node = node.String
	item.ObjectIdentifier = objIdentifier.String
	item.GenericFileIdentifier = fileIdentifier.String
	item.Retry = retry == 1
	item.Reviewed = reviewed == 1
	item.NeedsAdminReview = needsAdminReview == 1
	item.BagDate = parseTime(bagDate)
	item.Date = parseTime(date)
	item.QueuedAt = parseTime(queuedAt)
	item.StageStartedAt = parseTime(stageStartedAt)
	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)
	return item, nil
}
