package registry

import (
	"encoding/json"
	"time"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/util"
)

// DpnWorkItem tracks one DPN replication task. QueuedAt and
// CompletedAt are zero until the task is queued or finished.
type DpnWorkItem struct {
	ID          int64     `json:"id,omitempty"`
	RemoteNode  string    `json:"remote_node"`
	Task        string    `json:"task"`
	Identifier  string    `json:"identifier"`
	QueuedAt    time.Time `json:"queued_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	Note        string    `json:"note,omitempty"`
	State       string    `json:"state,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

func DpnWorkItemFromJSON(jsonData []byte) (*DpnWorkItem, error) {
	item := &DpnWorkItem{}
	err := json.Unmarshal(jsonData, item)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (item *DpnWorkItem) ToJSON() ([]byte, error) {
	return json.Marshal(item)
}

// Validate checks required fields. An unknown task is an
// ExternalStateError because the task list is fixed by the DPN
// federation, not by us.
func (item *DpnWorkItem) Validate() error {
	if item.Identifier == "" {
		return service.NewValidationError("identifier", "Identifier is required")
	}
	if !util.StringListContains(constants.DPNTaskValues, item.Task) {
		return service.NewExternalStateError("task", item.Task, constants.DPNTaskValues)
	}
	return nil
}

// IsQueued returns true once the item has been handed to a worker.
func (item *DpnWorkItem) IsQueued() bool {
	return !item.QueuedAt.IsZero()
}

// IsCompleted returns true once a worker has reported completion.
func (item *DpnWorkItem) IsCompleted() bool {
	return !item.CompletedAt.IsZero()
}
