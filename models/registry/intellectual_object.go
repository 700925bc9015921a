package registry

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/util"
)

type IntellectualObject struct {
	ID                    int64     `json:"id,omitempty"`
	Identifier            string    `json:"identifier"`
	BagName               string    `json:"bag_name"`
	Title                 string    `json:"title,omitempty"`
	Description           string    `json:"description,omitempty"`
	AltIdentifier         string    `json:"alt_identifier,omitempty"`
	Access                string    `json:"access"`
	State                 string    `json:"state"`
	StorageOption         string    `json:"storage_option"`
	ETag                  string    `json:"etag,omitempty"`
	InstitutionID         int64     `json:"institution_id"`
	InstitutionIdentifier string    `json:"institution_identifier,omitempty"`
	SourceOrganization    string    `json:"source_organization,omitempty"`
	CreatedAt             time.Time `json:"created_at,omitempty"`
	UpdatedAt             time.Time `json:"updated_at,omitempty"`
}

func IntellectualObjectFromJSON(jsonData []byte) (*IntellectualObject, error) {
	obj := &IntellectualObject{}
	err := json.Unmarshal(jsonData, obj)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (obj *IntellectualObject) ToJSON() ([]byte, error) {
	return json.Marshal(obj)
}

// IdentifierMinusInstitution returns the bag name portion of the
// object identifier, which has the form "institution.edu/bag_name".
func (obj *IntellectualObject) IdentifierMinusInstitution() (string, error) {
	parts := strings.SplitN(obj.Identifier, "/", 2)
	if len(parts) < 2 {
		return "", fmt.Errorf("invalid identifier '%s': missing institution prefix", obj.Identifier)
	}
	return parts[1], nil
}

// Validate checks required fields and allow-list values. StorageOption
// outside the fixed set is an ExternalStateError, not a plain
// validation failure, because that set is shared with the storage
// pipeline.
func (obj *IntellectualObject) Validate() error {
	errs := &service.ValidationError{}
	if obj.Identifier == "" {
		errs.Add("identifier", "Identifier is required")
	} else if !strings.Contains(obj.Identifier, "/") {
		errs.Add("identifier", "Identifier must have the form institution/bag_name")
	}
	if obj.InstitutionID == 0 {
		errs.Add("institution_id", "Institution is required")
	}
	if !util.StringListContains(constants.AccessSettings, obj.Access) {
		errs.Add("access", "Access must be consortia, institution, or restricted")
	}
	if !util.StringListContains(constants.States, obj.State) {
		errs.Add("state", "State must be A or D")
	}
	if !errs.IsEmpty() {
		return errs
	}
	if !util.StringListContains(constants.StorageOptions, obj.StorageOption) {
		return service.NewExternalStateError("storage_option", obj.StorageOption, constants.StorageOptions)
	}
	return nil
}
