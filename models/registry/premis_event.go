package registry

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/util"
)

// PremisEvent is an immutable preservation audit record. Once saved,
// events are never updated or deleted. Object and file identifiers are
// denormalized onto the event at save time so queries need no joins.
type PremisEvent struct {
	ID                           int64     `json:"id,omitempty"`
	Identifier                   string    `json:"identifier"`
	EventType                    string    `json:"event_type"`
	DateTime                     time.Time `json:"date_time"`
	Detail                       string    `json:"detail"`
	Outcome                      string    `json:"outcome"`
	OutcomeDetail                string    `json:"outcome_detail"`
	OutcomeInformation           string    `json:"outcome_information,omitempty"`
	Object                       string    `json:"object"`
	Agent                        string    `json:"agent"`
	InstitutionID                int64     `json:"institution_id"`
	IntellectualObjectID         int64     `json:"intellectual_object_id"`
	IntellectualObjectIdentifier string    `json:"intellectual_object_identifier"`
	GenericFileID                int64     `json:"generic_file_id,omitempty"`
	GenericFileIdentifier        string    `json:"generic_file_identifier,omitempty"`
	CreatedAt                    time.Time `json:"created_at,omitempty"`
	UpdatedAt                    time.Time `json:"updated_at,omitempty"`
}

func PremisEventFromJSON(jsonData []byte) (*PremisEvent, error) {
	event := &PremisEvent{}
	err := json.Unmarshal(jsonData, event)
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (event *PremisEvent) ToJSON() ([]byte, error) {
	return json.Marshal(event)
}

// Init assigns an identifier and timestamp if the caller omitted them.
func (event *PremisEvent) Init() {
	if event.Identifier == "" {
		event.Identifier = uuid.New().String()
	}
	if event.DateTime.IsZero() {
		event.DateTime = time.Now().UTC()
	}
}

// Validate checks that all required PREMIS fields are present and the
// event type is one of the known values.
func (event *PremisEvent) Validate() error {
	errs := &service.ValidationError{}
	if event.Identifier == "" {
		errs.Add("identifier", "Identifier is required")
	} else if !util.LooksLikeUUID(event.Identifier) {
		errs.Add("identifier", "Identifier must be a UUID")
	}
	if !util.StringListContains(constants.EventTypeValues, event.EventType) {
		errs.Add("event_type", "EventType is missing or not in the list of known event types")
	}
	if event.DateTime.IsZero() {
		errs.Add("date_time", "DateTime is required")
	}
	if event.Detail == "" {
		errs.Add("detail", "Detail is required")
	}
	if event.Outcome != constants.OutcomeSuccess && event.Outcome != constants.OutcomeFailure {
		errs.Add("outcome", "Outcome must be Success or Failure")
	}
	if event.OutcomeDetail == "" {
		errs.Add("outcome_detail", "OutcomeDetail is required")
	}
	if event.Object == "" {
		errs.Add("object", "Object is required")
	}
	if event.Agent == "" {
		errs.Add("agent", "Agent is required")
	}
	if errs.IsEmpty() {
		return nil
	}
	return errs
}

// IsFixityCheck returns true for fixity check events, which carry the
// side effect of updating the parent file's last_fixity_check.
func (event *PremisEvent) IsFixityCheck() bool {
	return event.EventType == constants.EventFixityCheck
}

// NewDeletionRequestEvent returns the event recorded when a user
// requests deletion of a file. The actual removal from storage is
// reported later by the deletion worker.
func NewDeletionRequestEvent(objIdentifier, fileIdentifier, requestedBy string) *PremisEvent {
	return &PremisEvent{
		Identifier:                   uuid.New().String(),
		EventType:                    constants.EventDeletion,
		DateTime:                     time.Now().UTC(),
		Detail:                       "File deleted from preservation storage",
		Outcome:                      constants.OutcomeSuccess,
		OutcomeDetail:                requestedBy,
		OutcomeInformation:           "Deletion requested by " + requestedBy,
		Object:                       "Pharos registry",
		Agent:                        "https://github.com/simple-thread/pharos",
		IntellectualObjectIdentifier: objIdentifier,
		GenericFileIdentifier:        fileIdentifier,
	}
}
