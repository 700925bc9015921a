// Package workitems manages the WorkItem lifecycle: creation, queuing,
// worker claims, stage and status transitions, and admin review.
package workitems

import (
	"context"
	"time"

	"github.com/op/go-logging"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/models/registry"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/network"
)

// Tracker creates and advances work items, handing queueable actions
// to NSQ and caching resumable worker state in Redis.
type Tracker struct {
	Store  *db.Store
	NSQ    network.NSQClientInterface
	Redis  *network.RedisClient
	Logger *logging.Logger
}

func NewTracker(store *db.Store, nsq network.NSQClientInterface, redis *network.RedisClient, logger *logging.Logger) *Tracker {
	return &Tracker{
		Store:  store,
		NSQ:    nsq,
		Redis:  redis,
		Logger: logger,
	}
}

// Create saves a new work item in the initial Requested/Pending state
// and queues it if its action has an NSQ topic. A failed enqueue does
// not roll back the item; pollers will pick it up from the database.
func (t *Tracker) Create(ctx context.Context, item *registry.WorkItem) error {
	item.Stage = constants.StageRequested
	item.Status = constants.StatusPending
	item.Retry = true
	if err := t.Store.SaveWorkItem(ctx, item); err != nil {
		return err
	}
	t.enqueue(ctx, item)
	return nil
}

func (t *Tracker) enqueue(ctx context.Context, item *registry.WorkItem) {
	topic, ok := constants.TopicFor(item.Action)
	if !ok || t.NSQ == nil {
		return
	}
	if err := t.NSQ.Enqueue(topic, item.ID); err != nil {
		t.Logger.Errorf("Could not queue WorkItem %d to %s: %v", item.ID, topic, err)
		return
	}
	item.QueuedAt = time.Now().UTC()
	if err := t.Store.SaveWorkItem(ctx, item); err != nil {
		t.Logger.Errorf("WorkItem %d queued but QueuedAt not saved: %v", item.ID, err)
	}
}

// Advance applies a worker's stage/status/note update to an item.
// Terminal items never change again: a Success, Failed or Cancelled
// item rejects further updates.
func (t *Tracker) Advance(ctx context.Context, item *registry.WorkItem) error {
	existing, err := t.Store.WorkItemByID(ctx, item.ID)
	if err != nil {
		return err
	}
	if existing.ProcessingHasCompleted() {
		return service.NewValidationError("status",
			"Item has reached a final status and cannot change")
	}
	if err := t.Store.SaveWorkItem(ctx, item); err != nil {
		return err
	}
	if item.ProcessingHasCompleted() {
		t.evictState(item.ID)
	}
	return nil
}

// Claim atomically assigns a pending item to a worker. Exactly one of
// several racing claimants wins; the rest get a ConflictError.
func (t *Tracker) Claim(ctx context.Context, id int64, node string, pid int, allowFailedRetry bool) (*registry.WorkItem, error) {
	return t.Store.ClaimWorkItem(ctx, id, node, pid, allowFailedRetry)
}

// Release clears a worker's claim on an item without changing its
// stage, returning it to Pending so another worker can pick it up.
func (t *Tracker) Release(ctx context.Context, id int64) error {
	item, err := t.Store.WorkItemByID(ctx, id)
	if err != nil {
		return err
	}
	if item.ProcessingHasCompleted() {
		return service.NewValidationError("status",
			"Item has reached a final status and cannot be released")
	}
	item.ClearNodeAndPid()
	item.Status = constants.StatusPending
	return t.Store.SaveWorkItem(ctx, item)
}

// MarkReviewed marks a finished item as reviewed. Only items in a
// final status can be reviewed.
func (t *Tracker) MarkReviewed(ctx context.Context, id int64) (*registry.WorkItem, error) {
	item, err := t.Store.WorkItemByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.ProcessingHasCompleted() {
		return nil, service.NewValidationError("reviewed",
			"Only items that have finished processing can be marked reviewed")
	}
	item.Reviewed = true
	if err := t.Store.SaveWorkItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Requeue posts an existing item back to its NSQ topic, optionally
// rewinding it to the given stage. Admins use this to retry items
// stuck after a worker crash.
func (t *Tracker) Requeue(ctx context.Context, id int64, stage string) (*registry.WorkItem, error) {
	item, err := t.Store.WorkItemByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if stage != "" {
		item.Stage = stage
	}
	item.Status = constants.StatusPending
	item.Retry = true
	item.ClearNodeAndPid()
	if err := t.Store.SaveWorkItem(ctx, item); err != nil {
		return nil, err
	}
	t.enqueue(ctx, item)
	return item, nil
}

// ItemsInNeedOfAction returns unclaimed items of the given action that
// are ready for a worker: stage Requested, status Pending, retry on.
// With fallbackAllowFailed, a second query includes Failed items
// flagged for retry when no Pending items exist.
func (t *Tracker) ItemsInNeedOfAction(ctx context.Context, action string, fallbackAllowFailed bool) ([]*registry.WorkItem, error) {
	retry := true
	filter := db.WorkItemFilter{
		Action:    action,
		Stage:     constants.StageRequested,
		Statuses:  []string{constants.StatusPending},
		Retry:     &retry,
		NodeEmpty: true,
		Sort:      "date",
	}
	items, _, err := t.Store.WorkItems(ctx, filter, db.Paging{PerPage: 100})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 && fallbackAllowFailed {
		filter.Statuses = []string{constants.StatusFailed}
		items, _, err = t.Store.WorkItems(ctx, filter, db.Paging{PerPage: 100})
		if err != nil {
			return nil, err
		}
	}
	return items, nil
}

// SetRestorationStatus updates the most recent Restore item for the
// given object, so external restoration workers don't need the item id.
func (t *Tracker) SetRestorationStatus(ctx context.Context, objectIdentifier, stage, status, note string, retry bool) (*registry.WorkItem, error) {
	item, err := t.Store.LatestRestoreItem(ctx, objectIdentifier)
	if err != nil {
		return nil, err
	}
	if item.ProcessingHasCompleted() {
		return nil, service.NewValidationError("status",
			"Item has reached a final status and cannot change")
	}
	item.Stage = stage
	item.Status = status
	item.Note = note
	item.Retry = retry
	if err := t.Store.SaveWorkItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// IngestedSince returns successfully ingested items for one
// institution with a completion date at or after since.
func (t *Tracker) IngestedSince(ctx context.Context, institution string, since time.Time, paging db.Paging) ([]*registry.WorkItem, int, error) {
	filter := db.WorkItemFilter{
		Action:      constants.ActionIngest,
		Stage:       constants.StageCleanup,
		Statuses:    []string{constants.StatusSuccess},
		Institution: institution,
		DateSince:   since,
		Sort:        "date desc",
	}
	return t.Store.WorkItems(ctx, filter, paging)
}

// SaveState stores a worker's resumable state snapshot for an item and
// refreshes the cache.
func (t *Tracker) SaveState(ctx context.Context, state *registry.WorkItemState) error {
	if err := t.Store.SaveWorkItemState(ctx, state); err != nil {
		return err
	}
	if t.Redis != nil {
		if err := t.Redis.WorkItemStateSave(state.WorkItemID, state.State); err != nil {
			t.Logger.Warningf("Could not cache state for WorkItem %d: %v", state.WorkItemID, err)
		}
	}
	return nil
}

// State returns the state snapshot for an item, from cache when
// possible.
func (t *Tracker) State(ctx context.Context, workItemID int64) (*registry.WorkItemState, error) {
	if t.Redis != nil {
		payload, err := t.Redis.WorkItemStateGet(workItemID)
		if err == nil {
			item, itemErr := t.Store.WorkItemByID(ctx, workItemID)
			if itemErr != nil {
				return nil, itemErr
			}
			return &registry.WorkItemState{
				WorkItemID: workItemID,
				Action:     item.Action,
				State:      payload,
			}, nil
		}
		if !network.IsCacheMiss(err) {
			t.Logger.Warningf("State cache read failed for WorkItem %d: %v", workItemID, err)
		}
	}
	return t.Store.WorkItemStateForItem(ctx, workItemID)
}

func (t *Tracker) evictState(workItemID int64) {
	if t.Redis == nil {
		return
	}
	if err := t.Redis.WorkItemStateDelete(workItemID); err != nil {
		t.Logger.Warningf("Could not evict state cache for WorkItem %d: %v", workItemID, err)
	}
}
