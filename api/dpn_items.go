package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/models/registry"
)

func (s *Server) ListDpnWorkItems(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	q := r.URL.Query()
	filter := db.DpnWorkItemFilter{
		RemoteNode:      q.Get("remote_node"),
		Task:            q.Get("task"),
		Identifier:      q.Get("identifier"),
		State:           q.Get("state"),
		QueuedBefore:    parseTimeParam(q, "queued_before"),
		QueuedAfter:     parseTimeParam(q, "queued_after"),
		CompletedBefore: parseTimeParam(q, "completed_before"),
		CompletedAfter:  parseTimeParam(q, "completed_after"),
		IsQueued:        parseBoolParam(q, "is_queued"),
		IsCompleted:     parseBoolParam(q, "is_completed"),
		Sort:            q.Get("sort"),
	}
	paging := parsePaging(r)
	items, total, err := s.Context.Store.DpnWorkItems(r.Context(), filter, paging)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeList(w, r, total, paging, items)
}

func (s *Server) CreateDpnWorkItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	item := &registry.DpnWorkItem{}
	if err := decodeBody(r, item); err != nil {
		s.writeError(w, err)
		return
	}
	item.ID = 0
	if err := s.Context.Store.SaveDpnWorkItem(r.Context(), item); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, item)
}

func (s *Server) GetDpnWorkItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := pathID(ps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	item, err := s.Context.Store.DpnWorkItemByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *Server) UpdateDpnWorkItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := pathID(ps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	item := &registry.DpnWorkItem{}
	if err := decodeBody(r, item); err != nil {
		s.writeError(w, err)
		return
	}
	item.ID = id
	if err := s.Context.Store.SaveDpnWorkItem(r.Context(), item); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}
