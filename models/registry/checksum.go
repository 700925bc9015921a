package registry

import (
	"encoding/json"
	"time"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/util"
)

type Checksum struct {
	ID            int64     `json:"id,omitempty"`
	GenericFileID int64     `json:"generic_file_id,omitempty"`
	Algorithm     string    `json:"algorithm"`
	Digest        string    `json:"digest"`
	DateTime      time.Time `json:"datetime"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

func ChecksumFromJSON(jsonData []byte) (*Checksum, error) {
	cs := &Checksum{}
	err := json.Unmarshal(jsonData, cs)
	if err != nil {
		return nil, err
	}
	return cs, nil
}

func (cs *Checksum) ToJSON() ([]byte, error) {
	return json.Marshal(cs)
}

func (cs *Checksum) Validate() error {
	errs := &service.ValidationError{}
	if !util.StringListContains(constants.DigestAlgorithms, cs.Algorithm) {
		errs.Add("algorithm", "Algorithm must be md5, sha256, or sha512")
	}
	if cs.Digest == "" {
		errs.Add("digest", "Digest is required")
	}
	if errs.IsEmpty() {
		return nil
	}
	return errs
}
