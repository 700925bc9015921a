package registry

import (
	"encoding/json"
	"time"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/util"
)

type GenericFile struct {
	ID                           int64     `json:"id,omitempty"`
	Identifier                   string    `json:"identifier"`
	URI                          string    `json:"uri"`
	Size                         int64     `json:"size"`
	FileFormat                   string    `json:"file_format"`
	State                        string    `json:"state"`
	StorageOption                string    `json:"storage_option"`
	LastFixityCheck              time.Time `json:"last_fixity_check,omitempty"`
	IntellectualObjectID         int64     `json:"intellectual_object_id"`
	IntellectualObjectIdentifier string    `json:"intellectual_object_identifier,omitempty"`
	InstitutionID                int64     `json:"institution_id"`
	CreatedAt                    time.Time `json:"created_at,omitempty"`
	UpdatedAt                    time.Time `json:"updated_at,omitempty"`

	// Checksums are serialized with the file on create and batch
	// submission. Lists and lookups may omit them.
	Checksums []*Checksum `json:"checksums,omitempty"`
}

func GenericFileFromJSON(jsonData []byte) (*GenericFile, error) {
	gf := &GenericFile{}
	err := json.Unmarshal(jsonData, gf)
	if err != nil {
		return nil, err
	}
	return gf, nil
}

func (gf *GenericFile) ToJSON() ([]byte, error) {
	return json.Marshal(gf)
}

// Validate checks required fields and the storage_option allow-list.
// It does not check the frozen-field rules (institution and
// storage_option immutability); the store enforces those on update,
// where the persisted record is available for comparison.
func (gf *GenericFile) Validate() error {
	errs := &service.ValidationError{}
	if gf.Identifier == "" {
		errs.Add("identifier", "Identifier is required")
	}
	if gf.URI == "" {
		errs.Add("uri", "URI is required")
	}
	if gf.Size < 0 {
		errs.Add("size", "Size cannot be negative")
	}
	if gf.FileFormat == "" {
		errs.Add("file_format", "FileFormat is required")
	}
	if gf.IntellectualObjectID == 0 {
		errs.Add("intellectual_object_id", "IntellectualObject is required")
	}
	if !util.StringListContains(constants.States, gf.State) {
		errs.Add("state", "State must be A or D")
	}
	if !errs.IsEmpty() {
		return errs
	}
	if !util.StringListContains(constants.StorageOptions, gf.StorageOption) {
		return service.NewExternalStateError("storage_option", gf.StorageOption, constants.StorageOptions)
	}
	return nil
}

// IsDeleted returns true if this file has been soft-deleted.
func (gf *GenericFile) IsDeleted() bool {
	return gf.State == constants.StateDeleted
}

// FindChecksumByDigest returns the checksum with the given digest, or
// nil. No need to specify the algorithm, since md5, sha256 and sha512
// digests have different lengths.
func (gf *GenericFile) FindChecksumByDigest(digest string) *Checksum {
	for _, cs := range gf.Checksums {
		if cs.Digest == digest {
			return cs
		}
	}
	return nil
}

// HasChecksum returns true if the file has a checksum with the
// specified digest.
func (gf *GenericFile) HasChecksum(digest string) bool {
	return gf.FindChecksumByDigest(digest) != nil
}
