package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/models/registry"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/policy"
	"github.com/simple-thread/pharos/util"
)

func (s *Server) ListFiles(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	q := r.URL.Query()
	filter := db.FileFilter{
		Identifier:      q.Get("identifier"),
		IdentifierLike:  q.Get("identifier_like"),
		URI:             q.Get("uri"),
		FileFormat:      q.Get("file_format"),
		State:           q.Get("state"),
		StorageOption:   q.Get("storage_option"),
		NotCheckedSince: parseTimeParam(q, "not_checked_since"),
		CreatedBefore:   parseTimeParam(q, "created_before"),
		CreatedAfter:    parseTimeParam(q, "created_after"),
		UpdatedBefore:   parseTimeParam(q, "updated_before"),
		UpdatedAfter:    parseTimeParam(q, "updated_after"),
		Sort:            q.Get("sort"),
	}
	// The stale-fixity sweep drives scheduled checks and is an
	// operator-only view.
	if !filter.NotCheckedSince.IsZero() && !user.Admin() {
		s.writeError(w, service.NewForbiddenError(""))
		return
	}
	if text := q.Get("q"); !util.IsEmptySearchTerm(text) {
		if q.Get("search_field") == "identifier" {
			filter.Identifier = text
		} else {
			filter.TextQuery = text
		}
	}
	policy.ScopeFiles(user, &filter)
	paging := parsePaging(r)
	files, total, err := s.Context.Store.GenericFiles(r.Context(), filter, paging)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeList(w, r, total, paging, files)
}

func (s *Server) CreateFile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gf := &registry.GenericFile{}
	if err := decodeBody(r, gf); err != nil {
		s.writeError(w, err)
		return
	}
	gf.ID = 0
	if err := s.Context.Store.CreateGenericFile(r.Context(), gf); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, gf)
}

// batchPayload is the ingest recorder's bulk submission: an object's
// files plus the events that attest to how each arrived, keyed by file
// identifier. The whole batch lands or none of it does.
type batchPayload struct {
	IntellectualObjectID int64                              `json:"intellectual_object_id"`
	Files                []*registry.GenericFile            `json:"files"`
	Events               map[string][]*registry.PremisEvent `json:"events"`
}

func (s *Server) CreateFileBatch(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	payload := &batchPayload{}
	if err := decodeBody(r, payload); err != nil {
		s.writeError(w, err)
		return
	}
	err := s.Context.Store.SaveGenericFileBatch(r.Context(),
		payload.IntellectualObjectID, payload.Files, payload.Events)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, payload.Files)
}

func (s *Server) GetFile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	gf, err := s.Context.Store.GenericFileByIdentifier(r.Context(), pathIdentifier(ps))
	if err != nil {
		s.writeError(w, err)
		return
	}
	obj, err := s.Context.Store.IntellectualObjectByID(r.Context(), gf.IntellectualObjectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !policy.CanViewFile(user, gf, obj.Access) {
		s.writeError(w, service.NewForbiddenError(""))
		return
	}
	s.writeJSON(w, http.StatusOK, gf)
}

func (s *Server) UpdateFile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	existing, err := s.Context.Store.GenericFileByIdentifier(r.Context(), pathIdentifier(ps))
	if err != nil {
		s.writeError(w, err)
		return
	}
	gf := &registry.GenericFile{}
	if err := decodeBody(r, gf); err != nil {
		s.writeError(w, err)
		return
	}
	gf.ID = existing.ID
	gf.Identifier = existing.Identifier
	if err := s.Context.Store.UpdateGenericFile(r.Context(), gf); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, gf)
}

// RequestFileDeletion queues a guarded Delete work item. An
// already-deleted file is a no-op, not an error.
func (s *Server) RequestFileDeletion(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	item, err := s.Deletions.RequestFileDeletion(r.Context(), user, pathIdentifier(ps))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if item == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{"result": "already deleted"})
		return
	}
	s.writeJSON(w, http.StatusCreated, item)
}

// FinishFileDeletion records the deletion event after the worker has
// removed the bytes, flipping the file's state in the same
// transaction.
func (s *Server) FinishFileDeletion(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	event, err := s.Deletions.CompleteFileDeletion(r.Context(), pathIdentifier(ps), user.Email)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if event == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{"result": "already deleted"})
		return
	}
	s.writeJSON(w, http.StatusCreated, event)
}
