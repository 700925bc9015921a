package registry

import (
	"encoding/json"
	"os"
	"time"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/util"
)

// WorkItem describes one asynchronous task run against an object or
// file by an out-of-process worker, and tracks its current stage and
// status. Items are created through the API or by an ingest trigger,
// then mutated by workers (stage/status/node/pid) and by admin review
// actions (reviewed/retry). They are never deleted outside of
// test-data cleanup.
type WorkItem struct {
	ID                    int64     `json:"id,omitempty"`
	Name                  string    `json:"name"`
	ETag                  string    `json:"etag"`
	BagDate               time.Time `json:"bag_date"`
	Bucket                string    `json:"bucket,omitempty"`
	Institution           string    `json:"institution"`
	User                  string    `json:"user"`
	Action                string    `json:"action"`
	Stage                 string    `json:"stage"`
	Status                string    `json:"status"`
	Outcome               string    `json:"outcome,omitempty"`
	Note                  string    `json:"note,omitempty"`
	Date                  time.Time `json:"date"`
	Retry                 bool      `json:"retry"`
	Reviewed              bool      `json:"reviewed"`
	NeedsAdminReview      bool      `json:"needs_admin_review"`
	Node                  string    `json:"node,omitempty"`
	Pid                   int       `json:"pid,omitempty"`
	ObjectIdentifier      string    `json:"object_identifier,omitempty"`
	GenericFileIdentifier string    `json:"generic_file_identifier,omitempty"`
	Size                  int64     `json:"size,omitempty"`
	QueuedAt              time.Time `json:"queued_at,omitempty"`
	StageStartedAt        time.Time `json:"stage_started_at,omitempty"`
	CreatedAt             time.Time `json:"created_at,omitempty"`
	UpdatedAt             time.Time `json:"updated_at,omitempty"`
}

func WorkItemFromJSON(jsonData []byte) (*WorkItem, error) {
	item := &WorkItem{}
	err := json.Unmarshal(jsonData, item)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (item *WorkItem) ToJSON() ([]byte, error) {
	return json.Marshal(item)
}

// Validate rejects missing identifying fields and any action, stage or
// status value outside the fixed enums. Values are never silently
// coerced.
func (item *WorkItem) Validate() error {
	errs := &service.ValidationError{}
	if item.Name == "" {
		errs.Add("name", "Name is required")
	}
	if item.Institution == "" {
		errs.Add("institution", "Institution is required")
	}
	if item.User == "" {
		errs.Add("user", "User is required")
	}
	if !util.StringListContains(constants.ActionValues, item.Action) {
		errs.Add("action", "Action is missing or not in the list of valid actions")
	}
	if !util.StringListContains(constants.StageValues, item.Stage) {
		errs.Add("stage", "Stage is missing or not in the list of valid stages")
	}
	if !util.StringListContains(constants.StatusValues, item.Status) {
		errs.Add("status", "Status is missing or not in the list of valid statuses")
	}
	if errs.IsEmpty() {
		return nil
	}
	return errs
}

// ProcessingHasCompleted returns true if this WorkItem is in one of
// the terminal states "Success", "Failed", or "Cancelled". Those
// states indicate that no further processing should occur.
func (item *WorkItem) ProcessingHasCompleted() bool {
	return util.StringListContains(constants.CompletedStatusValues, item.Status)
}

// BlocksFileDeletion returns true if this item should prevent a new
// Delete request for its file. Only unresolved Ingest and Restore
// items block deletion; a pending Delete may coexist with another
// Delete request.
func (item *WorkItem) BlocksFileDeletion() bool {
	if item.ProcessingHasCompleted() {
		return false
	}
	return item.Action == constants.ActionIngest || item.Action == constants.ActionRestore
}

// SetNodeAndPid sets the Node and Pid properties of this WorkItem to
// the hostname and pid of the current process.
func (item *WorkItem) SetNodeAndPid() {
	hostname, _ := os.Hostname()
	item.Node = hostname
	item.Pid = os.Getpid()
}

// ClearNodeAndPid sets this WorkItem's Node to an empty string and its
// Pid to zero.
func (item *WorkItem) ClearNodeAndPid() {
	item.Node = ""
	item.Pid = 0
}

// MarkInProgress sets this WorkItem's Node and Pid, as well as the
// Stage, Status, and Note.
func (item *WorkItem) MarkInProgress(stage, status, note string) {
	item.SetNodeAndPid()
	item.Stage = stage
	item.Status = status
	item.Note = note
	item.StageStartedAt = time.Now().UTC()
}

// MarkNoLongerInProgress clears this WorkItem's Node and Pid, and sets
// the Stage, Status, and Note. The caller should also set Retry and
// NeedsAdminReview if necessary.
func (item *WorkItem) MarkNoLongerInProgress(stage, status, note string) {
	item.ClearNodeAndPid()
	item.Stage = stage
	item.Status = status
	item.Note = note
}
