package api

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/models/registry"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/policy"
)

func (s *Server) ListEvents(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	q := r.URL.Query()
	filter := db.EventFilter{
		EventType:        q.Get("event_type"),
		Outcome:          q.Get("outcome"),
		Identifier:       q.Get("identifier"),
		ObjectIdentifier: q.Get("object_identifier"),
		FileIdentifier:   q.Get("file_identifier"),
		CreatedBefore:    parseTimeParam(q, "created_before"),
		CreatedAfter:     parseTimeParam(q, "created_after"),
		Sort:             q.Get("sort"),
	}
	if id, err := strconv.ParseInt(q.Get("generic_file_id"), 10, 64); err == nil {
		filter.GenericFileID = id
	}
	if id, err := strconv.ParseInt(q.Get("intellectual_object_id"), 10, 64); err == nil {
		filter.IntellectualObjectID = id
	}
	paging := parsePaging(r)
	events, total, err := s.Ledger.Events(r.Context(), user, filter, paging)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeList(w, r, total, paging, events)
}

func (s *Server) CreateEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	event := &registry.PremisEvent{}
	if err := decodeBody(r, event); err != nil {
		s.writeError(w, err)
		return
	}
	event.ID = 0
	saved, err := s.Ledger.RecordEvent(r.Context(), event)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) GetEvent(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	event, err := s.Context.Store.PremisEventByIdentifier(r.Context(), ps.ByName("identifier"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	obj, err := s.Context.Store.IntellectualObjectByID(r.Context(), event.IntellectualObjectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !policy.CanViewEvent(user, event, obj.Access) {
		s.writeError(w, service.NewForbiddenError(""))
		return
	}
	s.writeJSON(w, http.StatusOK, event)
}

// FailedFixityChecks surfaces fixity failures since a given time, the
// first thing an auditor asks for.
func (s *Server) FailedFixityChecks(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	since := parseTimeParam(r.URL.Query(), "since")
	paging := parsePaging(r)
	events, total, err := s.Ledger.FailedFixityChecks(r.Context(), user, since, paging)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeList(w, r, total, paging, events)
}
