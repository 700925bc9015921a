package db

import (
	"fmt"
	"strings"
	"time"
)

// Paging is offset-based pagination. Page numbering starts at 1.
type Paging struct {
	Page    int
	PerPage int
}

// Normalize applies the defaults the API has always used.
func (p Paging) Normalize() Paging {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 10
	}
	return p
}

// LimitOffset returns the SQL limit and offset for this page.
func (p Paging) LimitOffset() (int, int) {
	p = p.Normalize()
	return p.PerPage, (p.Page - 1) * p.PerPage
}

// whereBuilder accumulates WHERE clauses and their args.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *whereBuilder) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// orderBy returns an ORDER BY clause for the requested sort key,
// consulting a per-entity whitelist. Unknown keys fall back to the
// default, so a caller-supplied sort param can never inject SQL.
func orderBy(sort string, allowed map[string]string, dflt string) string {
	if column, ok := allowed[sort]; ok {
		return " ORDER BY " + column
	}
	return " ORDER BY " + dflt
}

// InstitutionFilter narrows institution queries. RestrictToID is the
// authorization scope: non-admins see only their own institution.
type InstitutionFilter struct {
	Identifier   string
	Type         string
	RestrictToID int64
	Sort         string
}

func (f InstitutionFilter) where() *whereBuilder {
	w := &whereBuilder{}
	if f.Identifier != "" {
		w.add("identifier = ?", f.Identifier)
	}
	if f.Type != "" {
		w.add("type = ?", f.Type)
	}
	if f.RestrictToID != 0 {
		w.add("id = ?", f.RestrictToID)
	}
	return w
}

// ObjectFilter narrows intellectual object queries. The Scope* fields
// are set by the authorization layer, never from request params, and
// are applied in SQL so out-of-scope rows are never fetched.
type ObjectFilter struct {
	Identifier     string
	IdentifierLike string
	Access         string
	State          string
	StorageOption  string
	InstitutionID  int64
	CreatedBefore  time.Time
	CreatedAfter   time.Time
	UpdatedBefore  time.Time
	UpdatedAfter   time.Time

	// TextQuery matches identifier, alt_identifier, bag_name, etag or
	// title. Used when search_field is "All Fields".
	TextQuery string

	ScopeInstitutionID     int64
	ScopeExcludeRestricted bool

	Sort string
}

func (f ObjectFilter) where() *whereBuilder {
	w := &whereBuilder{}
	if f.Identifier != "" {
		w.add("obj.identifier = ?", f.Identifier)
	}
	if f.IdentifierLike != "" {
		w.add("obj.identifier LIKE ?", "%"+f.IdentifierLike+"%")
	}
	if f.Access != "" {
		w.add("access = ?", f.Access)
	}
	if f.State != "" && !strings.EqualFold(f.State, "all") {
		w.add("state = ?", f.State)
	}
	if f.StorageOption != "" {
		w.add("storage_option = ?", f.StorageOption)
	}
	if f.InstitutionID != 0 {
		w.add("institution_id = ?", f.InstitutionID)
	}
	addTimeRange(w, "obj.created_at", f.CreatedAfter, f.CreatedBefore)
	addTimeRange(w, "obj.updated_at", f.UpdatedAfter, f.UpdatedBefore)
	if f.TextQuery != "" {
		like := "%" + f.TextQuery + "%"
		w.add("(obj.identifier LIKE ? OR alt_identifier LIKE ? OR bag_name LIKE ? OR etag LIKE ? OR title LIKE ?)",
			like, like, like, like, like)
	}
	// Consortia objects are visible to every member institution, so
	// the ownership scope carves them out. Restricted exclusion is
	// unaffected: restricted and consortia are different access values.
	if f.ScopeInstitutionID != 0 {
		w.add("(institution_id = ? OR access = 'consortia')", f.ScopeInstitutionID)
	}
	if f.ScopeExcludeRestricted {
		w.add("access != 'restricted'")
	}
	return w
}

// FileFilter narrows generic file queries. Scope fields behave as in
// ObjectFilter; the restricted check joins the owning object because
// access lives there.
type FileFilter struct {
	Identifier           string
	IdentifierLike       string
	URI                  string
	URILike              string
	FileFormat           string
	State                string
	StorageOption        string
	InstitutionID        int64
	IntellectualObjectID int64
	NotCheckedSince      time.Time
	CreatedBefore        time.Time
	CreatedAfter         time.Time
	UpdatedBefore        time.Time
	UpdatedAfter         time.Time

	// TextQuery matches identifier or uri.
	TextQuery string

	ScopeInstitutionID     int64
	ScopeExcludeRestricted bool

	Sort string
}

func (f FileFilter) where() *whereBuilder {
	w := &whereBuilder{}
	if f.Identifier != "" {
		w.add("gf.identifier = ?", f.Identifier)
	}
	if f.IdentifierLike != "" {
		w.add("gf.identifier LIKE ?", "%"+f.IdentifierLike+"%")
	}
	if f.URI != "" {
		w.add("gf.uri = ?", f.URI)
	}
	if f.URILike != "" {
		w.add("gf.uri LIKE ?", "%"+f.URILike+"%")
	}
	if f.FileFormat != "" {
		w.add("gf.file_format = ?", f.FileFormat)
	}
	if f.State != "" && !strings.EqualFold(f.State, "all") {
		w.add("gf.state = ?", f.State)
	}
	if f.StorageOption != "" {
		w.add("gf.storage_option = ?", f.StorageOption)
	}
	if f.InstitutionID != 0 {
		w.add("gf.institution_id = ?", f.InstitutionID)
	}
	if f.IntellectualObjectID != 0 {
		w.add("gf.intellectual_object_id = ?", f.IntellectualObjectID)
	}
	if !f.NotCheckedSince.IsZero() {
		w.add("gf.last_fixity_check <= ? AND gf.state = 'A'", fmtTime(f.NotCheckedSince))
	}
	addTimeRange(w, "gf.created_at", f.CreatedAfter, f.CreatedBefore)
	addTimeRange(w, "gf.updated_at", f.UpdatedAfter, f.UpdatedBefore)
	if f.TextQuery != "" {
		like := "%" + f.TextQuery + "%"
		w.add("(gf.identifier LIKE ? OR gf.uri LIKE ?)", like, like)
	}
	if f.ScopeInstitutionID != 0 {
		w.add("(gf.institution_id = ? OR obj.access = 'consortia')", f.ScopeInstitutionID)
	}
	if f.ScopeExcludeRestricted {
		w.add("obj.access != 'restricted'")
	}
	return w
}

// EventFilter narrows premis event queries.
type EventFilter struct {
	EventType            string
	Outcome              string
	Identifier           string
	ObjectIdentifier     string
	FileIdentifier       string
	InstitutionID        int64
	IntellectualObjectID int64
	GenericFileID        int64
	CreatedBefore        time.Time
	CreatedAfter         time.Time

	ScopeInstitutionID     int64
	ScopeExcludeRestricted bool

	Sort string
}

func (f EventFilter) where() *whereBuilder {
	w := &whereBuilder{}
	if f.EventType != "" {
		w.add("pe.event_type = ?", f.EventType)
	}
	if f.Outcome != "" {
		w.add("pe.outcome = ?", f.Outcome)
	}
	if f.Identifier != "" {
		w.add("pe.identifier = ?", f.Identifier)
	}
	if f.ObjectIdentifier != "" {
		w.add("pe.intellectual_object_identifier = ?", f.ObjectIdentifier)
	}
	if f.FileIdentifier != "" {
		w.add("pe.generic_file_identifier = ?", f.FileIdentifier)
	}
	if f.InstitutionID != 0 {
		w.add("pe.institution_id = ?", f.InstitutionID)
	}
	if f.IntellectualObjectID != 0 {
		w.add("pe.intellectual_object_id = ?", f.IntellectualObjectID)
	}
	if f.GenericFileID != 0 {
		w.add("pe.generic_file_id = ?", f.GenericFileID)
	}
	if !f.CreatedAfter.IsZero() {
		w.add("pe.created_at >= ?", fmtTime(f.CreatedAfter))
	}
	if !f.CreatedBefore.IsZero() {
		w.add("pe.created_at < ?", fmtTime(f.CreatedBefore))
	}
	if f.ScopeInstitutionID != 0 {
		w.add("(pe.institution_id = ? OR obj.access = 'consortia')", f.ScopeInstitutionID)
	}
	if f.ScopeExcludeRestricted {
		w.add("obj.access != 'restricted'")
	}
	return w
}

// WorkItemFilter narrows work item queries. Pointer fields distinguish
// "not filtered" from "filtered to false". NodeEmpty matches items no
// worker has claimed.
type WorkItemFilter struct {
	Name                  string
	NameContains          string
	ETag                  string
	BagDate               time.Time
	Action                string
	Stage                 string
	Statuses              []string
	Institution           string
	ObjectIdentifier      string
	GenericFileIdentifier string
	Node                  string
	NodeEmpty             bool
	Retry                 *bool
	Reviewed              *bool
	NeedsAdminReview      *bool
	UpdatedSince          time.Time
	DateSince             time.Time

	// TextQuery matches name or etag.
	TextQuery string

	ScopeInstitution string

	Sort string
}

func (f WorkItemFilter) where() *whereBuilder {
	w := &whereBuilder{}
	if f.Name != "" {
		w.add("name = ?", f.Name)
	}
	if f.NameContains != "" {
		w.add("name LIKE ?", "%"+f.NameContains+"%")
	}
	if f.ETag != "" {
		w.add("etag = ?", f.ETag)
	}
	if !f.BagDate.IsZero() {
		w.add("bag_date = ?", fmtTime(f.BagDate))
	}
	if f.Action != "" {
		w.add("action = ?", f.Action)
	}
	if f.Stage != "" {
		w.add("stage = ?", f.Stage)
	}
	if len(f.Statuses) == 1 {
		w.add("status = ?", f.Statuses[0])
	} else if len(f.Statuses) > 1 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.Statuses)), ",")
		args := make([]any, len(f.Statuses))
		for i, status := range f.Statuses {
			args[i] = status
		}
		w.add(fmt.Sprintf("status IN (%s)", placeholders), args...)
	}
	if f.Institution != "" {
		w.add("institution = ?", f.Institution)
	}
	if f.ObjectIdentifier != "" {
		w.add("object_identifier = ?", f.ObjectIdentifier)
	}
	if f.GenericFileIdentifier != "" {
		w.add("generic_file_identifier = ?", f.GenericFileIdentifier)
	}
	if f.Node != "" {
		w.add("node = ?", f.Node)
	}
	if f.NodeEmpty {
		w.add("(node IS NULL OR node = '')")
	}
	if f.Retry != nil {
		w.add("retry = ?", boolArg(*f.Retry))
	}
	if f.Reviewed != nil {
		w.add("reviewed = ?", boolArg(*f.Reviewed))
	}
	if f.NeedsAdminReview != nil {
		w.add("needs_admin_review = ?", boolArg(*f.NeedsAdminReview))
	}
	if !f.UpdatedSince.IsZero() {
		w.add("updated_at >= ?", fmtTime(f.UpdatedSince))
	}
	if !f.DateSince.IsZero() {
		w.add("date >= ?", fmtTime(f.DateSince))
	}
	if f.TextQuery != "" {
		like := "%" + f.TextQuery + "%"
		w.add("(name LIKE ? OR etag LIKE ?)", like, like)
	}
	if f.ScopeInstitution != "" {
		w.add("institution = ?", f.ScopeInstitution)
	}
	return w
}

// DpnWorkItemFilter narrows DPN work item queries. DPN items are
// visible to system admins only, so there are no scope fields.
type DpnWorkItemFilter struct {
	RemoteNode      string
	Task            string
	Identifier      string
	State           string
	QueuedBefore    time.Time
	QueuedAfter     time.Time
	CompletedBefore time.Time
	CompletedAfter  time.Time
	IsQueued        *bool
	IsCompleted     *bool

	Sort string
}

func (f DpnWorkItemFilter) where() *whereBuilder {
	w := &whereBuilder{}
	if f.RemoteNode != "" {
		w.add("remote_node = ?", f.RemoteNode)
	}
	if f.Task != "" {
		w.add("task = ?", f.Task)
	}
	if f.Identifier != "" {
		w.add("identifier = ?", f.Identifier)
	}
	if f.State != "" {
		w.add("state = ?", f.State)
	}
	if !f.QueuedAfter.IsZero() {
		w.add("queued_at > ?", fmtTime(f.QueuedAfter))
	}
	if !f.QueuedBefore.IsZero() {
		w.add("queued_at < ?", fmtTime(f.QueuedBefore))
	}
	if !f.CompletedAfter.IsZero() {
		w.add("completed_at > ?", fmtTime(f.CompletedAfter))
	}
	if !f.CompletedBefore.IsZero() {
		w.add("completed_at < ?", fmtTime(f.CompletedBefore))
	}
	if f.IsQueued != nil {
		if *f.IsQueued {
			w.add("queued_at IS NOT NULL")
		} else {
			w.add("queued_at IS NULL")
		}
	}
	if f.IsCompleted != nil {
		if *f.IsCompleted {
			w.add("completed_at IS NOT NULL")
		} else {
			w.add("completed_at IS NULL")
		}
	}
	return w
}

func addTimeRange(w *whereBuilder, column string, after, before time.Time) {
	if !after.IsZero() {
		w.add(column+" > ?", fmtTime(after))
	}
	if !before.IsZero() {
		w.add(column+" < ?", fmtTime(before))
	}
}

func boolArg(b bool) int {
	if b {
		return 1
	}
	return 0
}
