package registry

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/models/service"
)

type Institution struct {
	ID              int64     `json:"id,omitempty"`
	Identifier      string    `json:"identifier"`
	Name            string    `json:"name"`
	Type            string    `json:"type"`
	ReceivingBucket string    `json:"receiving_bucket"`
	RestoreBucket   string    `json:"restore_bucket"`
	DeactivatedAt   time.Time `json:"deactivated_at,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

func InstitutionFromJSON(jsonData []byte) (*Institution, error) {
	inst := &Institution{}
	err := json.Unmarshal(jsonData, inst)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func (inst *Institution) ToJSON() ([]byte, error) {
	return json.Marshal(inst)
}

// Validate checks required fields. Identifier should be a domain-like
// string such as "test.edu".
func (inst *Institution) Validate() error {
	errs := &service.ValidationError{}
	if inst.Identifier == "" {
		errs.Add("identifier", "Identifier is required")
	} else if !strings.Contains(inst.Identifier, ".") {
		errs.Add("identifier", "Identifier must be a domain name")
	}
	if inst.Name == "" {
		errs.Add("name", "Name is required")
	}
	if inst.Type != constants.InstTypeMember && inst.Type != constants.InstTypeSub {
		errs.Add("type", "Type must be member or subscription")
	}
	if errs.IsEmpty() {
		return nil
	}
	return errs
}

// IsActive returns true unless the institution has been deactivated.
func (inst *Institution) IsActive() bool {
	return inst.DeactivatedAt.IsZero()
}

// Deactivate marks the institution inactive as of now. Deactivation
// does not touch the institution's objects or files.
func (inst *Institution) Deactivate() {
	if inst.DeactivatedAt.IsZero() {
		inst.DeactivatedAt = time.Now().UTC()
	}
}
