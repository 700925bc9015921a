package registry

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"github.com/klauspost/compress/zlib"

	"github.com/simple-thread/pharos/models/service"
)

// stateMarker prefixes compressed state payloads. Payloads without the
// marker are legacy plaintext JSON and are returned as-is. Using an
// explicit marker instead of sniffing for braces means a payload that
// happens to start with '{' can't be misread as compressed.
var stateMarker = []byte("PZ1\n")

// WorkItemState is a point-in-time snapshot of a WorkItem's internal
// processing state: an opaque JSON blob workers use to resume
// interrupted jobs. The payload is stored zlib-compressed behind a
// format marker.
type WorkItemState struct {
	ID         int64     `json:"id,omitempty"`
	WorkItemID int64     `json:"work_item_id"`
	Action     string    `json:"action"`
	State      []byte    `json:"-"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

func NewWorkItemState(workItemID int64, action string, plaintext []byte) (*WorkItemState, error) {
	state := &WorkItemState{
		WorkItemID: workItemID,
		Action:     action,
	}
	err := state.SetState(plaintext)
	if err != nil {
		return nil, err
	}
	return state, nil
}

// SetState compresses plaintext and stores it as the payload. Payloads
// already carrying the marker are stored unchanged, so a read-back
// value can be written again without double compression.
func (state *WorkItemState) SetState(plaintext []byte) error {
	if len(plaintext) == 0 {
		state.State = nil
		return nil
	}
	if bytes.HasPrefix(plaintext, stateMarker) {
		state.State = plaintext
		return nil
	}
	var buf bytes.Buffer
	buf.Write(stateMarker)
	writer := zlib.NewWriter(&buf)
	_, err := writer.Write(plaintext)
	if err != nil {
		return err
	}
	err = writer.Close()
	if err != nil {
		return err
	}
	state.State = buf.Bytes()
	return nil
}

// UnzippedState returns the decompressed payload. Payloads without the
// format marker predate compression and come back unaltered.
func (state *WorkItemState) UnzippedState() ([]byte, error) {
	if len(state.State) == 0 {
		return nil, nil
	}
	if !bytes.HasPrefix(state.State, stateMarker) {
		return state.State, nil
	}
	reader, err := zlib.NewReader(bytes.NewReader(state.State[len(stateMarker):]))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// HasMarker returns true if the stored payload carries the compression
// marker.
func (state *WorkItemState) HasMarker() bool {
	return bytes.HasPrefix(state.State, stateMarker)
}

func (state *WorkItemState) Validate() error {
	if state.WorkItemID == 0 {
		return service.NewValidationError("work_item_id", "WorkItem is required")
	}
	if state.Action == "" {
		return service.NewValidationError("action", "Action is required")
	}
	return nil
}

// ToJSON serializes the state record with the payload decompressed,
// which is the form API clients expect.
func (state *WorkItemState) ToJSON() ([]byte, error) {
	plaintext, err := state.UnzippedState()
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]interface{}{
		"id":           state.ID,
		"work_item_id": state.WorkItemID,
		"action":       state.Action,
		"state":        string(plaintext),
		"created_at":   state.CreatedAt,
		"updated_at":   state.UpdatedAt,
	})
}
