package api

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/models/registry"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/policy"
	"github.com/simple-thread/pharos/util"
)

func workItemFilterFromQuery(r *http.Request) db.WorkItemFilter {
	q := r.URL.Query()
	filter := db.WorkItemFilter{
		Name:                  q.Get("name"),
		NameContains:          q.Get("name_contains"),
		ETag:                  q.Get("etag"),
		BagDate:               parseTimeParam(q, "bag_date"),
		Action:                q.Get("item_action"),
		Stage:                 q.Get("stage"),
		Institution:           q.Get("institution"),
		ObjectIdentifier:      q.Get("object_identifier"),
		GenericFileIdentifier: q.Get("file_identifier"),
		Node:                  q.Get("node"),
		Retry:                 parseBoolParam(q, "retry"),
		Reviewed:              parseBoolParam(q, "reviewed"),
		NeedsAdminReview:      parseBoolParam(q, "needs_admin_review"),
		UpdatedSince:          parseTimeParam(q, "updated_since"),
		Sort:                  q.Get("sort"),
	}
	if status := q.Get("status"); status != "" {
		filter.Statuses = strings.Split(status, ",")
	}
	if text := q.Get("q"); !util.IsEmptySearchTerm(text) {
		if q.Get("search_field") == "name" {
			filter.Name = text
		} else {
			filter.TextQuery = text
		}
	}
	return filter
}

func (s *Server) ListWorkItems(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	filter := workItemFilterFromQuery(r)
	policy.ScopeWorkItems(user, &filter)
	paging := parsePaging(r)
	items, total, err := s.Context.Store.WorkItems(r.Context(), filter, paging)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeList(w, r, total, paging, items)
}

func (s *Server) CreateWorkItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	item := &registry.WorkItem{}
	if err := decodeBody(r, item); err != nil {
		s.writeError(w, err)
		return
	}
	item.ID = 0
	if err := s.Tracker.Create(r.Context(), item); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, item)
}

func (s *Server) GetWorkItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	id, err := pathID(ps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	item, err := s.Context.Store.WorkItemByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !policy.CanViewWorkItem(user, item) {
		s.writeError(w, service.NewForbiddenError(""))
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

// GetWorkItemByKey looks an item up by its (etag, name, bag_date)
// natural key, for callers that never learned the surrogate id. A miss
// is a 404: no item means ingestion of that bag has not started.
func (s *Server) GetWorkItemByKey(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	q := r.URL.Query()
	etag := q.Get("etag")
	name := q.Get("name")
	bagDate := parseTimeParam(q, "bag_date")
	if etag == "" || name == "" || bagDate.IsZero() {
		s.writeError(w, service.NewValidationError("etag",
			"etag, name and bag_date are all required"))
		return
	}
	item, err := s.Context.Store.WorkItemByNaturalKey(r.Context(), etag, name, bagDate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !policy.CanViewWorkItem(user, item) {
		s.writeError(w, service.NewForbiddenError(""))
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

// UpdateWorkItem records a worker-reported transition. Terminal items
// reject further changes.
func (s *Server) UpdateWorkItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := pathID(ps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	item := &registry.WorkItem{}
	if err := decodeBody(r, item); err != nil {
		s.writeError(w, err)
		return
	}
	item.ID = id
	if err := s.Tracker.Advance(r.Context(), item); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

func (s *Server) MarkWorkItemReviewed(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	id, err := pathID(ps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	existing, err := s.Context.Store.WorkItemByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !policy.CanReviewWorkItem(user, existing) {
		s.writeError(w, service.NewForbiddenError(""))
		return
	}
	item, err := s.Tracker.MarkReviewed(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

type claimRequest struct {
	Node             string `json:"node"`
	Pid              int    `json:"pid"`
	AllowFailedRetry bool   `json:"allow_failed_retry"`
}

// ClaimWorkItem is the worker's atomic claim. Exactly one of several
// racing workers wins; the rest get a conflict.
func (s *Server) ClaimWorkItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := pathID(ps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	req := &claimRequest{}
	if err := decodeBody(r, req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Node == "" {
		s.writeError(w, service.NewValidationError("node", "Node is required to claim an item"))
		return
	}
	item, err := s.Tracker.Claim(r.Context(), id, req.Node, req.Pid, req.AllowFailedRetry)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

// ReleaseWorkItem clears a worker's claim so another node can pick the
// item up, for example after the claiming process died.
func (s *Server) ReleaseWorkItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := pathID(ps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Tracker.Release(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	item, err := s.Context.Store.WorkItemByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

type requeueRequest struct {
	Stage string `json:"stage"`
}

func (s *Server) RequeueWorkItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := pathID(ps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	req := &requeueRequest{}
	if err := decodeBody(r, req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Stage == "" {
		req.Stage = constants.StageRequested
	}
	item, err := s.Tracker.Requeue(r.Context(), id, req.Stage)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

// WorkItemCounts returns facet counts over the filtered set, computed
// before pagination.
func (s *Server) WorkItemCounts(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	filter := workItemFilterFromQuery(r)
	policy.ScopeWorkItems(user, &filter)
	counts, err := s.Context.Store.CountWorkItems(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, counts)
}

// PendingWorkItems is the dispatch queue workers poll. The fallback
// param widens the result to retryable failures when nothing is
// pending.
func (s *Server) PendingWorkItems(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	action := ps.ByName("action")
	if !util.StringListContains(constants.ActionValues, action) {
		s.writeError(w, service.NewExternalStateError("action", action, constants.ActionValues))
		return
	}
	fallback := r.URL.Query().Get("fallback") == "true"
	items, err := s.Tracker.ItemsInNeedOfAction(r.Context(), action, fallback)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

// IngestedSince reports successful ingests for an institution, used
// for member deposit reports.
func (s *Server) IngestedSince(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	q := r.URL.Query()
	institution := q.Get("institution")
	if !user.Admin() {
		institution = user.InstitutionIdentifier
	}
	since := parseTimeParam(q, "since")
	paging := parsePaging(r)
	items, total, err := s.Tracker.IngestedSince(r.Context(), institution, since, paging)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeList(w, r, total, paging, items)
}

type restorationStatusRequest struct {
	Stage  string `json:"stage"`
	Status string `json:"status"`
	Note   string `json:"note"`
	Retry  bool   `json:"retry"`
}

func (s *Server) SetRestorationStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	req := &restorationStatusRequest{}
	if err := decodeBody(r, req); err != nil {
		s.writeError(w, err)
		return
	}
	item, err := s.Tracker.SetRestorationStatus(r.Context(),
		pathIdentifier(ps), req.Stage, req.Status, req.Note, req.Retry)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

// itemStateBody carries the plaintext payload over the wire. Storage
// compression is invisible to clients.
type itemStateBody struct {
	WorkItemID int64  `json:"work_item_id"`
	Action     string `json:"action"`
	State      string `json:"state"`
}

func (s *Server) GetWorkItemState(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := pathID(ps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	state, err := s.Tracker.State(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	plaintext, err := state.UnzippedState()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, itemStateBody{
		WorkItemID: state.WorkItemID,
		Action:     state.Action,
		State:      string(plaintext),
	})
}

func (s *Server) SaveWorkItemState(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := pathID(ps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	body := &itemStateBody{}
	if err := decodeBody(r, body); err != nil {
		s.writeError(w, err)
		return
	}
	state, err := registry.NewWorkItemState(id, body.Action, []byte(body.State))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.Tracker.SaveState(r.Context(), state); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, itemStateBody{
		WorkItemID: state.WorkItemID,
		Action:     state.Action,
		State:      body.State,
	})
}
