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

const fileColumns = `gf.id, gf.identifier, gf.uri, gf.size, gf.file_format,
	gf.state, gf.storage_option, gf.last_fixity_check,
	gf.intellectual_object_id, obj.identifier, gf.institution_id,
	gf.created_at, gf.updated_at`

const fileFrom = ` FROM generic_files gf
	JOIN intellectual_objects obj ON obj.id = gf.intellectual_object_id`

var fileSorts = map[string]string{
	"identifier":             "gf.identifier",
	"created_at":             "gf.created_at",
	"updated_at desc":        "gf.updated_at DESC",
	"last_fixity_check":      "gf.last_fixity_check",
	"last_fixity_check desc": "gf.last_fixity_check DESC",
}

// CreateGenericFile inserts a new file and its checksums. The file's
// storage option and institution come from the owning object: a file
// can never have a storage option different from its object's, and
// those two fields are frozen from this point on.
func (s *Store) CreateGenericFile(ctx context.Context, gf *registry.GenericFile) error {
	return s.inTransaction(ctx, func(tx *sql.Tx) error {
		return s.createGenericFileTx(ctx, tx, gf)
	})
}

func (s *Store) createGenericFileTx(ctx context.Context, tx *sql.Tx, gf *registry.GenericFile) error {
	obj, err := s.objectForFileTx(ctx, tx, gf.IntellectualObjectID)
	if err != nil {
		return err
	}
	gf.StorageOption = obj.StorageOption
	gf.InstitutionID = obj.InstitutionID
	gf.IntellectualObjectIdentifier = obj.Identifier
	if gf.State == "" {
		gf.State = constants.StateActive
	}
	if err := gf.Validate(); err != nil {
		return err
	}
	if len(gf.Checksums) == 0 {
		return service.NewValidationError("checksums", "At least one checksum is required")
	}
	now := time.Now().UTC()
	gf.CreatedAt = now
	gf.UpdatedAt = now
	res, err := tx.ExecContext(ensureContext(ctx), `
		INSERT INTO generic_files (identifier, uri, size, file_format, state,
			storage_option, last_fixity_check, intellectual_object_id,
			institution_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		gf.Identifier, gf.URI, gf.Size, gf.FileFormat, gf.State,
		gf.StorageOption, fmtTime(gf.LastFixityCheck),
		gf.IntellectualObjectID, gf.InstitutionID,
		fmtTime(gf.CreatedAt), fmtTime(gf.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert generic file: %w", err)
	}
	gf.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}
	// Ingest sometimes submits the same digest twice, once from the
	// payload manifest and once from the tag manifest. Store one row.
	saved := &registry.GenericFile{ID: gf.ID}
	for _, cs := range gf.Checksums {
		if saved.HasChecksum(cs.Digest) {
			continue
		}
		cs.GenericFileID = gf.ID
		if err := insertChecksumTx(ctx, tx, cs); err != nil {
			return err
		}
		saved.Checksums = append(saved.Checksums, cs)
	}
	gf.Checksums = saved.Checksums
	return nil
}

// UpdateGenericFile updates mutable fields of an existing file.
// Institution and storage option are frozen after creation, and a
// deleted file can never return to the active state.
func (s *Store) UpdateGenericFile(ctx context.Context, gf *registry.GenericFile) error {
	existing, err := s.GenericFileByID(ctx, gf.ID)
	if err != nil {
		return err
	}
	if gf.StorageOption != "" && gf.StorageOption != existing.StorageOption {
		return service.NewValidationError("storage_option", "Storage option cannot be changed")
	}
	if gf.InstitutionID != 0 && gf.InstitutionID != existing.InstitutionID {
		return service.NewValidationError("institution_id", "Institution cannot be changed")
	}
	if existing.State == constants.StateDeleted && gf.State == constants.StateActive {
		return service.NewValidationError("state", "A deleted file cannot be reactivated")
	}
	gf.StorageOption = existing.StorageOption
	gf.InstitutionID = existing.InstitutionID
	gf.IntellectualObjectID = existing.IntellectualObjectID
	if err := gf.Validate(); err != nil {
		return err
	}
	gf.UpdatedAt = time.Now().UTC()
	_, err = s.execWithRetry(ctx, `
		UPDATE generic_files SET uri = ?, size = ?, file_format = ?,
			state = ?, last_fixity_check = ?, updated_at = ?
		WHERE id = ?`,
		gf.URI, gf.Size, gf.FileFormat, gf.State,
		fmtTime(gf.LastFixityCheck), fmtTime(gf.UpdatedAt), gf.ID)
	if err != nil {
		return fmt.Errorf("update generic file: %w", err)
	}
	return nil
}

// GenericFileByID returns the file with the given id, without
// checksums, or a NotFoundError.
func (s *Store) GenericFileByID(ctx context.Context, id int64) (*registry.GenericFile, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+fileColumns+fileFrom+" WHERE gf.id = ?", id)
	gf, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, service.NewNotFoundError("GenericFile", strconv.FormatInt(id, 10))
	}
	return gf, err
}

// GenericFileByIdentifier returns the file with the given identifier,
// including its checksums, or a NotFoundError.
func (s *Store) GenericFileByIdentifier(ctx context.Context, identifier string) (*registry.GenericFile, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+fileColumns+fileFrom+" WHERE gf.identifier = ?", identifier)
	gf, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, service.NewNotFoundError("GenericFile", identifier)
	}
	if err != nil {
		return nil, err
	}
	gf.Checksums, err = s.checksumsForFile(ctx, gf.ID)
	return gf, err
}

// GenericFiles returns files matching the filter, plus the total
// pre-pagination count.
func (s *Store) GenericFiles(ctx context.Context, filter FileFilter, paging Paging) ([]*registry.GenericFile, int, error) {
	w := filter.where()
	var total int
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(*)"+fileFrom+w.sql(), w.args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	limit, offset := paging.LimitOffset()
	query := "SELECT " + fileColumns + fileFrom + w.sql() +
		orderBy(filter.Sort, fileSorts, "gf.identifier") + " LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ensureContext(ctx), query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var files []*registry.GenericFile
	for rows.Next() {
		gf, err := scanFile(rows)
		if err != nil {
			return nil, 0, err
		}
		files = append(files, gf)
	}
	return files, total, rows.Err()
}

// SaveGenericFileBatch saves a batch of files, each with its checksums
// and premis events, in a single transaction. The batch is
// all-or-nothing: if any file, checksum or event fails, nothing from
// the batch persists, and the returned error names the failing
// sub-item.
func (s *Store) SaveGenericFileBatch(ctx context.Context, objID int64, files []*registry.GenericFile, events map[string][]*registry.PremisEvent) error {
	return s.inTransaction(ctx, func(tx *sql.Tx) error {
		for _, gf := range files {
			if len(gf.Checksums) == 0 {
				return service.NewValidationError("checksums",
					fmt.Sprintf("GenericFile %s is missing checksums", gf.Identifier))
			}
			if len(events[gf.Identifier]) == 0 {
				return service.NewValidationError("premis_events",
					fmt.Sprintf("GenericFile %s is missing premis events", gf.Identifier))
			}
			gf.IntellectualObjectID = objID
			if err := s.createGenericFileTx(ctx, tx, gf); err != nil {
				return fmt.Errorf("GenericFile %s: %w", gf.Identifier, err)
			}
			for _, event := range events[gf.Identifier] {
				event.GenericFileID = gf.ID
				event.GenericFileIdentifier = gf.Identifier
				event.IntellectualObjectID = gf.IntellectualObjectID
				event.IntellectualObjectIdentifier = gf.IntellectualObjectIdentifier
				event.InstitutionID = gf.InstitutionID
				if err := s.insertPremisEventTx(ctx, tx, event); err != nil {
					return fmt.Errorf("event %s for %s: %w", event.EventType, gf.Identifier, err)
				}
			}
		}
		return nil
	})
}

func (s *Store) checksumsForFile(ctx context.Context, fileID int64) ([]*registry.Checksum, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT id, generic_file_id, algorithm, digest, datetime, created_at, updated_at
		FROM checksums WHERE generic_file_id = ? ORDER BY id`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var checksums []*registry.Checksum
	for rows.Next() {
		cs := &registry.Checksum{}
		var datetime, createdAt, updatedAt sql.NullString
		err := rows.Scan(&cs.ID, &cs.GenericFileID, &cs.Algorithm, &cs.Digest,
			&datetime, &createdAt, &updatedAt)
		if err != nil {
			return nil, err
		}
		cs.DateTime = parseTime(datetime)
		cs.CreatedAt = parseTime(createdAt)
		cs.UpdatedAt = parseTime(updatedAt)
		checksums = append(checksums, cs)
	}
	return checksums, rows.Err()
}

func insertChecksumTx(ctx context.Context, tx *sql.Tx, cs *registry.Checksum) error {
	if err := cs.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if cs.DateTime.IsZero() {
		cs.DateTime = now
	}
	cs.CreatedAt = now
	cs.UpdatedAt = now
	res, err := tx.ExecContext(ensureContext(ctx), `
		INSERT INTO checksums (generic_file_id, algorithm, digest, datetime,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		cs.GenericFileID, cs.Algorithm, cs.Digest, fmtTime(cs.DateTime),
		fmtTime(cs.CreatedAt), fmtTime(cs.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert checksum: %w", err)
	}
	cs.ID, err = res.LastInsertId()
	return err
}

func (s *Store) objectForFileTx(ctx context.Context, tx *sql.Tx, objID int64) (*registry.IntellectualObject, error) {
	row := tx.QueryRowContext(ensureContext(ctx),
		"SELECT "+objectColumns+objectFrom+" WHERE obj.id = ?", objID)
	obj, err := scanObject(row)
	if err == sql.ErrNoRows {
		return nil, service.NewNotFoundError("IntellectualObject", strconv.FormatInt(objID, 10))
	}
	return obj, err
}

func scanFile(row rowScanner) (*registry.GenericFile, error) {
	gf := &registry.GenericFile{}
	var fileFormat sql.NullString
	var lastFixity, createdAt, updatedAt sql.NullString
	err := row.Scan(&gf.ID, &gf.Identifier, &gf.URI, &gf.Size, &fileFormat,
		&gf.State, &gf.StorageOption, &lastFixity, &gf.IntellectualObjectID,
		&gf.IntellectualObjectIdentifier, &gf.InstitutionID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	gf.FileFormat = fileFormat.String
	gf.LastFixityCheck = parseTime(lastFixity)
	gf.CreatedAt = parseTime(createdAt)
	gf.UpdatedAt = parseTime(updatedAt)
	return gf, nil
}
