package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/models/registry"
	"github.com/simple-thread/pharos/models/service"
	"github.com/simple-thread/pharos/policy"
)

func (s *Server) ListInstitutions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	q := r.URL.Query()
	filter := db.InstitutionFilter{
		Identifier: q.Get("identifier"),
		Type:       q.Get("type"),
		Sort:       q.Get("sort"),
	}
	policy.ScopeInstitutions(user, &filter)
	paging := parsePaging(r)
	insts, total, err := s.Context.Store.Institutions(r.Context(), filter, paging)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeList(w, r, total, paging, insts)
}

func (s *Server) CreateInstitution(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	inst := &registry.Institution{}
	if err := decodeBody(r, inst); err != nil {
		s.writeError(w, err)
		return
	}
	inst.ID = 0
	if err := s.Context.Store.SaveInstitution(r.Context(), inst); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, inst)
}

func (s *Server) GetInstitution(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	inst, err := s.Context.Store.InstitutionByIdentifier(r.Context(), ps.ByName("identifier"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !policy.CanViewInstitution(user, inst) {
		s.writeError(w, service.NewForbiddenError(""))
		return
	}
	s.writeJSON(w, http.StatusOK, inst)
}

func (s *Server) UpdateInstitution(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	existing, err := s.Context.Store.InstitutionByIdentifier(r.Context(), ps.ByName("identifier"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	inst := &registry.Institution{}
	if err := decodeBody(r, inst); err != nil {
		s.writeError(w, err)
		return
	}
	inst.ID = existing.ID
	inst.Identifier = existing.Identifier
	if err := s.Context.Store.SaveInstitution(r.Context(), inst); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, inst)
}

// DeactivateInstitution soft-disables an institution. Holdings remain
// queryable; only API access for its users stops.
func (s *Server) DeactivateInstitution(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	inst, err := s.Context.Store.InstitutionByIdentifier(r.Context(), ps.ByName("identifier"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	inst.Deactivate()
	if err := s.Context.Store.SaveInstitution(r.Context(), inst); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, inst)
}
