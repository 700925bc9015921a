package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/policy"
	"github.com/simple-thread/pharos/util"
)

// searchResult groups cross-entity matches. Each collection is scoped
// and paginated independently; there is no cross-entity ranking.
type searchResult struct {
	Objects     interface{} `json:"objects,omitempty"`
	ObjectCount int         `json:"object_count"`
	Files       interface{} `json:"files,omitempty"`
	FileCount   int         `json:"file_count"`
	Items       interface{} `json:"work_items,omitempty"`
	ItemCount   int         `json:"work_item_count"`
}

// Search answers q/search_field/object_type queries. A named
// object_type searches one collection; "All Types" unions objects,
// files and work items. q of "*" or empty matches everything.
func (s *Server) Search(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user := currentUser(r)
	q := r.URL.Query()
	text := q.Get("q")
	if util.IsEmptySearchTerm(text) {
		text = ""
	}
	objectType := q.Get("object_type")
	if objectType == "" {
		objectType = constants.TypeAll
	}
	paging := parsePaging(r)
	result := &searchResult{}

	wantObjects := objectType == constants.TypeAll || objectType == constants.TypeObject
	wantFiles := objectType == constants.TypeAll || objectType == constants.TypeFile
	wantItems := objectType == constants.TypeAll || objectType == constants.TypeWorkItem

	if wantObjects {
		filter := db.ObjectFilter{TextQuery: text}
		policy.ScopeObjects(user, &filter)
		objects, total, err := s.Context.Store.IntellectualObjects(r.Context(), filter, paging)
		if err != nil {
			s.writeError(w, err)
			return
		}
		result.Objects = objects
		result.ObjectCount = total
	}
	if wantFiles {
		filter := db.FileFilter{TextQuery: text}
		policy.ScopeFiles(user, &filter)
		files, total, err := s.Context.Store.GenericFiles(r.Context(), filter, paging)
		if err != nil {
			s.writeError(w, err)
			return
		}
		result.Files = files
		result.FileCount = total
	}
	if wantItems {
		filter := db.WorkItemFilter{TextQuery: text}
		policy.ScopeWorkItems(user, &filter)
		items, total, err := s.Context.Store.WorkItems(r.Context(), filter, paging)
		if err != nil {
			s.writeError(w, err)
			return
		}
		result.Items = items
		result.ItemCount = total
	}
	s.writeJSON(w, http.StatusOK, result)
}
