package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/simple-thread/pharos/models/registry"
	"github.com/simple-thread/pharos/models/service"
)

const objectColumns = `obj.id, obj.identifier, obj.bag_name, obj.title,
	obj.description, obj.alt_identifier, obj.access, obj.state,
	obj.storage_option, obj.etag, obj.institution_id,
	inst.identifier, obj.source_organization, obj.created_at, obj.updated_at`

const objectFrom = ` FROM intellectual_objects obj
	JOIN institutions inst ON inst.id = obj.institution_id`

var objectSorts = map[string]string{
	"identifier":      "obj.identifier",
	"created_at":      "obj.created_at",
	"created_at desc": "obj.created_at DESC",
	"updated_at desc": "obj.updated_at DESC",
}

// SaveIntellectualObject inserts or updates an object. On insert it
// assigns the new ID to obj.
func (s *Store) SaveIntellectualObject(ctx context.Context, obj *registry.IntellectualObject) error {
	if err := obj.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	obj.UpdatedAt = now
	if obj.ID == 0 {
		obj.CreatedAt = now
		res, err := s.execWithRetry(ctx, `
			INSERT INTO intellectual_objects (identifier, bag_name, title,
				description, alt_identifier, access, state, storage_option,
				etag, institution_id, source_organization, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			obj.Identifier, obj.BagName, obj.Title, obj.Description,
			obj.AltIdentifier, obj.Access, obj.State, obj.StorageOption,
			obj.ETag, obj.InstitutionID, obj.SourceOrganization,
			fmtTime(obj.CreatedAt), fmtTime(obj.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert object: %w", err)
		}
		obj.ID, err = res.LastInsertId()
		return err
	}
	_, err := s.execWithRetry(ctx, `
		UPDATE intellectual_objects SET bag_name = ?, title = ?,
			description = ?, alt_identifier = ?, access = ?, state = ?,
			storage_option = ?, etag = ?, source_organization = ?, updated_at = ?
		WHERE id = ?`,
		obj.BagName, obj.Title, obj.Description, obj.AltIdentifier,
		obj.Access, obj.State, obj.StorageOption, obj.ETag,
		obj.SourceOrganization, fmtTime(obj.UpdatedAt), obj.ID)
	if err != nil {
		return fmt.Errorf("update object: %w", err)
	}
	return nil
}

// IntellectualObjectByID returns the object with the given id, or a
// NotFoundError.
func (s *Store) IntellectualObjectByID(ctx context.Context, id int64) (*registry.IntellectualObject, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+objectColumns+objectFrom+" WHERE obj.id = ?", id)
	obj, err := scanObject(row)
	if err == sql.ErrNoRows {
		return nil, service.NewNotFoundError("IntellectualObject", strconv.FormatInt(id, 10))
	}
	return obj, err
}

// IntellectualObjectByIdentifier returns the object with the given
// identifier, or a NotFoundError.
func (s *Store) IntellectualObjectByIdentifier(ctx context.Context, identifier string) (*registry.IntellectualObject, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+objectColumns+objectFrom+" WHERE obj.identifier = ?", identifier)
	obj, err := scanObject(row)
	if err == sql.ErrNoRows {
		return nil, service.NewNotFoundError("IntellectualObject", identifier)
	}
	return obj, err
}

// IntellectualObjects returns objects matching the filter, plus the
// total pre-pagination count.
func (s *Store) IntellectualObjects(ctx context.Context, filter ObjectFilter, paging Paging) ([]*registry.IntellectualObject, int, error) {
	w := filter.where()
	var total int
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(*)"+objectFrom+w.sql(), w.args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	limit, offset := paging.LimitOffset()
	query := "SELECT " + objectColumns + objectFrom + w.sql() +
		orderBy(filter.Sort, objectSorts, "obj.identifier") + " LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ensureContext(ctx), query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var objects []*registry.IntellectualObject
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, 0, err
		}
		objects = append(objects, obj)
	}
	return objects, total, rows.Err()
}

func scanObject(row rowScanner) (*registry.IntellectualObject, error) {
	obj := &registry.IntellectualObject{}
	var bagName, title, description, altIdentifier, etag, sourceOrg sql.NullString
	var createdAt, updatedAt sql.NullString
	err := row.Scan(&obj.ID, &obj.Identifier, &bagName, &title, &description,
		&altIdentifier, &obj.Access, &obj.State, &obj.StorageOption, &etag,
		&obj.InstitutionID, &obj.InstitutionIdentifier, &sourceOrg,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	obj.BagName = bagName.String
	obj.Title = title.String
	obj.Description = description.String
	obj.AltIdentifier = altIdentifier.String
	obj.ETag = etag.String
	obj.SourceOrganization = sourceOrg.String
	obj.CreatedAt = parseTime(createdAt)
	obj.UpdatedAt = parseTime(updatedAt)
	return obj, nil
}
