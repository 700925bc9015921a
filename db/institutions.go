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

const institutionColumns = `id, identifier, name, type, receiving_bucket,
	restore_bucket, deactivated_at, created_at, updated_at`

var institutionSorts = map[string]string{
	"name":       "name",
	"identifier": "identifier",
}

// SaveInstitution inserts or updates an institution. On insert it
// assigns the new ID to inst.
func (s *Store) SaveInstitution(ctx context.Context, inst *registry.Institution) error {
	if err := inst.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	inst.UpdatedAt = now
	if inst.ID == 0 {
		inst.CreatedAt = now
		res, err := s.execWithRetry(ctx, `
			INSERT INTO institutions (identifier, name, type, receiving_bucket,
				restore_bucket, deactivated_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			inst.Identifier, inst.Name, inst.Type, inst.ReceivingBucket,
			inst.RestoreBucket, fmtTime(inst.DeactivatedAt),
			fmtTime(inst.CreatedAt), fmtTime(inst.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert institution: %w", err)
		}
		inst.ID, err = res.LastInsertId()
		return err
	}
	_, err := s.execWithRetry(ctx, `
		UPDATE institutions SET identifier = ?, name = ?, type = ?,
			receiving_bucket = ?, restore_bucket = ?, deactivated_at = ?,
			updated_at = ?
		WHERE id = ?`,
		inst.Identifier, inst.Name, inst.Type, inst.ReceivingBucket,
		inst.RestoreBucket, fmtTime(inst.DeactivatedAt),
		fmtTime(inst.UpdatedAt), inst.ID)
	if err != nil {
		return fmt.Errorf("update institution: %w", err)
	}
	return nil
}

// InstitutionByID returns the institution with the given id, or a
// NotFoundError.
func (s *Store) InstitutionByID(ctx context.Context, id int64) (*registry.Institution, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+institutionColumns+" FROM institutions WHERE id = ?", id)
	inst, err := scanInstitution(row)
	if err == sql.ErrNoRows {
		return nil, service.NewNotFoundError("Institution", strconv.FormatInt(id, 10))
	}
	return inst, err
}

// InstitutionByIdentifier returns the institution with the given
// domain identifier, or a NotFoundError.
func (s *Store) InstitutionByIdentifier(ctx context.Context, identifier string) (*registry.Institution, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+institutionColumns+" FROM institutions WHERE identifier = ?", identifier)
	inst, err := scanInstitution(row)
	if err == sql.ErrNoRows {
		return nil, service.NewNotFoundError("Institution", identifier)
	}
	return inst, err
}

// Institutions returns institutions matching the filter, plus the
// total pre-pagination count.
func (s *Store) Institutions(ctx context.Context, filter InstitutionFilter, paging Paging) ([]*registry.Institution, int, error) {
	w := filter.where()
	var total int
	err := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT COUNT(*) FROM institutions"+w.sql(), w.args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	limit, offset := paging.LimitOffset()
	query := "SELECT " + institutionColumns + " FROM institutions" + w.sql() +
		orderBy(filter.Sort, institutionSorts, "name") + " LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ensureContext(ctx), query, append(w.args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var insts []*registry.Institution
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, 0, err
		}
		insts = append(insts, inst)
	}
	return insts, total, rows.Err()
}

// InstitutionIdentifiers returns the identifiers of all institutions
// except APTrust itself. The work items view uses this for its
// per-institution facet counts.
func (s *Store) InstitutionIdentifiers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT identifier FROM institutions WHERE identifier != ? ORDER BY identifier",
		constants.APTrustID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var identifiers []string
	for rows.Next() {
		var identifier string
		if err := rows.Scan(&identifier); err != nil {
			return nil, err
		}
		identifiers = append(identifiers, identifier)
	}
	return identifiers, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstitution(row rowScanner) (*registry.Institution, error) {
	inst := &registry.Institution{}
	var receivingBucket, restoreBucket sql.NullString
	var deactivatedAt, createdAt, updatedAt sql.NullString
	err := row.Scan(&inst.ID, &inst.Identifier, &inst.Name, &inst.Type,
		&receivingBucket, &restoreBucket, &deactivatedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	inst.ReceivingBucket = receivingBucket.String
	inst.RestoreBucket = restoreBucket.String
	inst.DeactivatedAt = parseTime(deactivatedAt)
	inst.CreatedAt = parseTime(createdAt)
	inst.UpdatedAt = parseTime(updatedAt)
	return inst, nil
}
