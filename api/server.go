// Package api exposes the registry over HTTP. Routes follow the
// member API layout under /api/v2/. Every route names the minimum role
// needed to reach it; finer-grained checks (ownership, restricted
// access) happen in the policy layer after the record is loaded.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/deletion"
	"github.com/simple-thread/pharos/events"
	"github.com/simple-thread/pharos/models/common"
	"github.com/simple-thread/pharos/models/registry"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/policy"
	"github.com/simple-thread/pharos/workitems"
)

// Server is the registry's REST front end.
type Server struct {
	Context   *common.Context
	Tracker   *workitems.Tracker
	Ledger    *events.Ledger
	Deletions *deletion.Manager
	Decoder   TokenDecoder

	httpServer *http.Server
}

func NewServer(appCtx *common.Context, decoder TokenDecoder) *Server {
	ledger := events.NewLedger(appCtx.Store, appCtx.Logger)
	return &Server{
		Context:   appCtx,
		Tracker:   workitems.NewTracker(appCtx.Store, appCtx.NSQClient, appCtx.RedisClient, appCtx.Logger),
		Ledger:    ledger,
		Deletions: deletion.NewManager(appCtx.Store, ledger, appCtx.NSQClient, appCtx.Logger),
		Decoder:   decoder,
	}
}

// Run blocks, listening for and handling requests.
func (s *Server) Run() error {
	s.Context.Logger.Infof("Listening on %s", s.Context.Config.ListenAddress)
	s.httpServer = &http.Server{
		Addr:    s.Context.Config.ListenAddress,
		Handler: s.Routes(),
	}
	return s.httpServer.ListenAndServe()
}

// Stop shuts the listener down, letting in-flight requests finish.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Routes builds the route table. The role column is the minimum role
// needed; constants.RoleNone means no credentials required.
func (s *Server) Routes() http.Handler {
	var routes = []struct {
		method  string
		route   string
		role    string
		handler httprouter.Handle
	}{
		{"GET", "/", constants.RoleNone, s.WelcomeHandler},

		{"GET", "/api/v2/institutions", constants.RoleInstUser, s.ListInstitutions},
		{"POST", "/api/v2/institutions", constants.RoleAdmin, s.CreateInstitution},
		{"GET", "/api/v2/institutions/:identifier", constants.RoleInstUser, s.GetInstitution},
		{"PUT", "/api/v2/institutions/:identifier", constants.RoleAdmin, s.UpdateInstitution},
		{"DELETE", "/api/v2/institutions/:identifier", constants.RoleAdmin, s.DeactivateInstitution},

		{"GET", "/api/v2/objects", constants.RoleInstUser, s.ListObjects},
		{"POST", "/api/v2/objects", constants.RoleAdmin, s.CreateObject},
		{"GET", "/api/v2/objects/*identifier", constants.RoleInstUser, s.GetObject},
		{"PUT", "/api/v2/objects/*identifier", constants.RoleAdmin, s.UpdateObject},
		{"GET", "/api/v2/file_summary/*identifier", constants.RoleInstUser, s.FileSummary},
		{"POST", "/api/v2/restore/*identifier", constants.RoleInstUser, s.RequestRestore},

		{"GET", "/api/v2/files", constants.RoleInstUser, s.ListFiles},
		{"POST", "/api/v2/files", constants.RoleAdmin, s.CreateFile},
		{"POST", "/api/v2/files/batch", constants.RoleAdmin, s.CreateFileBatch},
		{"GET", "/api/v2/files/*identifier", constants.RoleInstUser, s.GetFile},
		{"PUT", "/api/v2/files/*identifier", constants.RoleAdmin, s.UpdateFile},
		{"DELETE", "/api/v2/files/*identifier", constants.RoleInstAdmin, s.RequestFileDeletion},
		{"POST", "/api/v2/finish_delete/*identifier", constants.RoleAdmin, s.FinishFileDeletion},

		{"GET", "/api/v2/events", constants.RoleInstUser, s.ListEvents},
		{"POST", "/api/v2/events", constants.RoleAdmin, s.CreateEvent},
		{"GET", "/api/v2/events/:identifier", constants.RoleInstUser, s.GetEvent},
		{"GET", "/api/v2/failed_fixity", constants.RoleInstUser, s.FailedFixityChecks},

		{"GET", "/api/v2/items", constants.RoleInstUser, s.ListWorkItems},
		{"POST", "/api/v2/items", constants.RoleAdmin, s.CreateWorkItem},
		{"GET", "/api/v2/items/:id", constants.RoleInstUser, s.GetWorkItem},
		{"GET", "/api/v2/item_by_key", constants.RoleInstUser, s.GetWorkItemByKey},
		{"PUT", "/api/v2/items/:id", constants.RoleAdmin, s.UpdateWorkItem},
		{"PUT", "/api/v2/items/:id/reviewed", constants.RoleInstAdmin, s.MarkWorkItemReviewed},
		{"POST", "/api/v2/items/:id/claim", constants.RoleAdmin, s.ClaimWorkItem},
		{"POST", "/api/v2/items/:id/release", constants.RoleAdmin, s.ReleaseWorkItem},
		{"POST", "/api/v2/items/:id/requeue", constants.RoleAdmin, s.RequeueWorkItem},
		{"GET", "/api/v2/item_counts", constants.RoleInstUser, s.WorkItemCounts},
		{"GET", "/api/v2/pending_items/:action", constants.RoleAdmin, s.PendingWorkItems},
		{"GET", "/api/v2/ingested_since", constants.RoleInstUser, s.IngestedSince},
		{"POST", "/api/v2/set_restoration_status/*identifier", constants.RoleAdmin, s.SetRestorationStatus},
		{"GET", "/api/v2/item_state/:id", constants.RoleAdmin, s.GetWorkItemState},
		{"POST", "/api/v2/item_state/:id", constants.RoleAdmin, s.SaveWorkItemState},

		{"GET", "/api/v2/dpn_items", constants.RoleAdmin, s.ListDpnWorkItems},
		{"POST", "/api/v2/dpn_items", constants.RoleAdmin, s.CreateDpnWorkItem},
		{"GET", "/api/v2/dpn_items/:id", constants.RoleAdmin, s.GetDpnWorkItem},
		{"PUT", "/api/v2/dpn_items/:id", constants.RoleAdmin, s.UpdateDpnWorkItem},

		{"GET", "/api/v2/search", constants.RoleInstUser, s.Search},
	}

	r := httprouter.New()
	for _, route := range routes {
		r.Handle(route.method, route.route,
			s.logWrapper(s.authWrapper(route.handler, route.role)))
	}
	return r
}

type userContextKey struct{}

// authWrapper verifies the caller's credentials and minimum role
// before invoking handler. The resolved user rides on the request
// context.
func (s *Server) authWrapper(handler httprouter.Handle, minRole string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if minRole == constants.RoleNone {
			handler(w, r, ps)
			return
		}
		email := r.Header.Get("X-Pharos-API-User")
		token := r.Header.Get("X-Pharos-API-Key")
		user, err := s.Decoder.TokenDecode(email, token)
		if err != nil {
			s.writeError(w, fmt.Errorf("token lookup: %w", err))
			return
		}
		if user == nil {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprintln(w, "Invalid API credentials")
			return
		}
		if err := s.resolveInstitution(r.Context(), user); err != nil {
			s.writeError(w, err)
			return
		}
		if err := policy.RequireRole(user, minRole); err != nil {
			s.writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey{}, user)
		handler(w, r.WithContext(ctx), ps)
	}
}

// resolveInstitution fills in the numeric institution id, which the
// token file doesn't carry.
func (s *Server) resolveInstitution(ctx context.Context, user *registry.User) error {
	if user.InstitutionIdentifier == "" || user.InstitutionIdentifier == constants.APTrustID {
		return nil
	}
	inst, err := s.Context.Store.InstitutionByIdentifier(ctx, user.InstitutionIdentifier)
	if err != nil {
		if service.Kind(err) == service.KindNotFound {
			return service.NewForbiddenError("Unknown institution in API credentials")
		}
		return err
	}
	if !inst.IsActive() {
		return service.NewForbiddenError("Institution has been deactivated")
	}
	user.InstitutionID = inst.ID
	return nil
}

func (s *Server) logWrapper(handler httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		start := time.Now()
		handler(w, r, ps)
		s.Context.Logger.Infof("%s %s (%v)", r.Method, r.URL.Path, time.Since(start))
	}
}

func currentUser(r *http.Request) *registry.User {
	user, _ := r.Context().Value(userContextKey{}).(*registry.User)
	return user
}

// listResponse is the envelope every list endpoint returns.
type listResponse struct {
	Count    int         `json:"count"`
	Next     string      `json:"next"`
	Previous string      `json:"previous"`
	Results  interface{} `json:"results"`
}

func (s *Server) writeList(w http.ResponseWriter, r *http.Request, total int, paging db.Paging, results interface{}) {
	paging = paging.Normalize()
	resp := listResponse{
		Count:   total,
		Results: results,
	}
	if paging.Page*paging.PerPage < total {
		resp.Next = pageURL(r.URL, paging.Page+1)
	}
	if paging.Page > 1 {
		resp.Previous = pageURL(r.URL, paging.Page-1)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func pageURL(u *url.URL, page int) string {
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	copied := *u
	copied.RawQuery = q.Encode()
	return copied.String()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, val interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(val); err != nil {
		s.Context.Logger.Errorf("Could not encode response: %v", err)
	}
}

// errorBody is the JSON shape of every error response. Kind lets
// clients branch without parsing the message.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := service.Kind(err)
	status := http.StatusInternalServerError
	switch kind {
	case service.KindValidation:
		status = http.StatusBadRequest
	case service.KindForbidden:
		status = http.StatusForbidden
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindConflict:
		status = http.StatusConflict
	case service.KindExternalState:
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.Context.Logger.Errorf("Internal error: %v", err)
	}
	s.writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

// WelcomeHandler answers unauthenticated health probes.
func (s *Server) WelcomeHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.writeJSON(w, http.StatusOK, map[string]string{"service": "pharos", "status": "ok"})
}

// Request parsing helpers shared by the handlers.

func parsePaging(r *http.Request) db.Paging {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	return db.Paging{Page: page, PerPage: perPage}.Normalize()
}

func pathIdentifier(ps httprouter.Params) string {
	// Catch-all params include the leading slash.
	identifier := ps.ByName("identifier")
	if len(identifier) > 0 && identifier[0] == '/' {
		identifier = identifier[1:]
	}
	return identifier
}

func pathID(ps httprouter.Params) (int64, error) {
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, service.NewValidationError("id", "ID must be a positive integer")
	}
	return id, nil
}

func parseTimeParam(q url.Values, name string) time.Time {
	value := q.Get(name)
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t
	}
	return time.Time{}
}

func parseBoolParam(q url.Values, name string) *bool {
	value := q.Get(name)
	if value == "" {
		return nil
	}
	b := value == "true" || value == "1"
	return &b
}

func decodeBody(r *http.Request, val interface{}) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(val); err != nil {
		return service.NewValidationError("body", "Request body is not valid JSON")
	}
	return nil
}
