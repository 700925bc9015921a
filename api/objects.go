package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/models/registry"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/policy"
	"github.com/simple-thread/pharos/util"
)

func (s *Server) ListObjects(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	q := r.URL.Query()
	filter := db.ObjectFilter{
		Identifier:     q.Get("identifier"),
		IdentifierLike: q.Get("identifier_like"),
		Access:         q.Get("access"),
		State:          q.Get("state"),
		StorageOption:  q.Get("storage_option"),
		CreatedBefore:  parseTimeParam(q, "created_before"),
		CreatedAfter:   parseTimeParam(q, "created_after"),
		UpdatedBefore:  parseTimeParam(q, "updated_before"),
		UpdatedAfter:   parseTimeParam(q, "updated_after"),
		Sort:           q.Get("sort"),
	}
	applyObjectTextQuery(&filter, q.Get("q"), q.Get("search_field"))
	policy.ScopeObjects(user, &filter)
	paging := parsePaging(r)
	objects, total, err := s.Context.Store.IntellectualObjects(r.Context(), filter, paging)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeList(w, r, total, paging, objects)
}

func (s *Server) CreateObject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	obj := &registry.IntellectualObject{}
	if err := decodeBody(r, obj); err != nil {
		s.writeError(w, err)
		return
	}
	obj.ID = 0
	if err := s.Context.Store.SaveIntellectualObject(r.Context(), obj); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, obj)
}

func (s *Server) GetObject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	obj, err := s.loadViewableObject(r, user, pathIdentifier(ps))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, obj)
}

func (s *Server) UpdateObject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	existing, err := s.Context.Store.IntellectualObjectByIdentifier(r.Context(), pathIdentifier(ps))
	if err != nil {
		s.writeError(w, err)
		return
	}
	obj := &registry.IntellectualObject{}
	if err := decodeBody(r, obj); err != nil {
		s.writeError(w, err)
		return
	}
	obj.ID = existing.ID
	obj.Identifier = existing.Identifier
	if err := s.Context.Store.SaveIntellectualObject(r.Context(), obj); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, obj)
}

// fileSummary is the slim per-file record restoration clients ask for.
type fileSummary struct {
	Identifier string `json:"identifier"`
	Size       int64  `json:"size"`
	URI        string `json:"uri"`
}

// FileSummary lists an object's active files. Deleted files are
// excluded because there is nothing left to restore or audit.
func (s *Server) FileSummary(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	obj, err := s.loadViewableObject(r, user, pathIdentifier(ps))
	if err != nil {
		s.writeError(w, err)
		return
	}
	filter := db.FileFilter{
		IntellectualObjectID: obj.ID,
		State:                constants.StateActive,
	}
	paging := db.Paging{Page: 1, PerPage: 100000}
	files, _, err := s.Context.Store.GenericFiles(r.Context(), filter, paging)
	if err != nil {
		s.writeError(w, err)
		return
	}
	summaries := make([]fileSummary, len(files))
	for i, gf := range files {
		summaries[i] = fileSummary{Identifier: gf.Identifier, Size: gf.Size, URI: gf.URI}
	}
	s.writeJSON(w, http.StatusOK, summaries)
}

// RequestRestore queues a Restore work item for an object.
func (s *Server) RequestRestore(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	obj, err := s.Context.Store.IntellectualObjectByIdentifier(r.Context(), pathIdentifier(ps))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !policy.CanRequestRestore(user, obj.InstitutionID) {
		s.writeError(w, service.NewForbiddenError(""))
		return
	}
	// Older records may lack a bag name; the identifier suffix is
	// the same value.
	bagName := obj.BagName
	if bagName == "" {
		bagName, err = obj.IdentifierMinusInstitution()
		if err != nil {
			s.writeError(w, service.NewValidationError("identifier", err.Error()))
			return
		}
	}
	item := &registry.WorkItem{
		Name:             bagName,
		ETag:             obj.ETag,
		BagDate:          time.Now().UTC(),
		Institution:      obj.InstitutionIdentifier,
		User:             user.Email,
		Action:           constants.ActionRestore,
		ObjectIdentifier: obj.Identifier,
		Note:             fmt.Sprintf("Restoration of %s requested by %s", obj.Identifier, user.Email),
	}
	if err := s.Tracker.Create(r.Context(), item); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, item)
}

func (s *Server) loadViewableObject(r *http.Request, user *registry.User, identifier string) (*registry.IntellectualObject, error) {
	obj, err := s.Context.Store.IntellectualObjectByIdentifier(r.Context(), identifier)
	if err != nil {
		return nil, err
	}
	if !policy.CanViewObject(user, obj) {
		return nil, service.NewForbiddenError("")
	}
	return obj, nil
}

func applyObjectTextQuery(filter *db.ObjectFilter, q, field string) {
	if util.IsEmptySearchTerm(q) {
		return
	}
	// A named field gets an exact match; "All Fields" or anything
	// unrecognized falls back to the multi-field substring union.
	switch field {
	case "identifier":
		filter.Identifier = q
	default:
		filter.TextQuery = q
	}
}
