// Package policy decides what an authenticated caller may see and do.
// Checks on single records answer yes or no; list queries instead get
// their scope narrowed before they hit the database, so out-of-scope
// rows are never fetched at all. The two paths must agree: any record
// a scoped list can return must also pass the single-record check.
package policy

import (
	"github.com/simple-thread/pharos/constants"
	"github.com/simple-thread/pharos/db"
	"github.com/simple-thread/pharos/models/registry"
	"github.com/simple-thread/pharos/models/service"
)

// CanViewInstitution reports whether user may read inst's record.
func CanViewInstitution(user *registry.User, inst *registry.Institution) bool {
	return user.Admin() || user.InstitutionID == inst.ID
}

// CanViewObject reports whether user may read obj. Consortia objects
// are visible to every member user regardless of owning institution.
// Restricted objects are visible only to system admins and the owning
// institution's admins.
func CanViewObject(user *registry.User, obj *registry.IntellectualObject) bool {
	if user.Admin() {
		return true
	}
	if obj.Access == constants.AccessConsortia {
		return true
	}
	if user.InstitutionID != obj.InstitutionID {
		return false
	}
	if obj.Access == constants.AccessRestricted {
		return user.InstitutionalAdmin()
	}
	return true
}

// CanViewFile reports whether user may read gf. objAccess is the
// owning object's access setting, which governs consortia and
// restricted visibility.
func CanViewFile(user *registry.User, gf *registry.GenericFile, objAccess string) bool {
	if user.Admin() {
		return true
	}
	if objAccess == constants.AccessConsortia {
		return true
	}
	if user.InstitutionID != gf.InstitutionID {
		return false
	}
	if objAccess == constants.AccessRestricted {
		return user.InstitutionalAdmin()
	}
	return true
}

// CanViewEvent reports whether user may read event. Events inherit the
// visibility of the object they describe.
func CanViewEvent(user *registry.User, event *registry.PremisEvent, objAccess string) bool {
	if user.Admin() {
		return true
	}
	if objAccess == constants.AccessConsortia {
		return true
	}
	if user.InstitutionID != event.InstitutionID {
		return false
	}
	if objAccess == constants.AccessRestricted {
		return user.InstitutionalAdmin()
	}
	return true
}

// CanViewWorkItem reports whether user may read item.
func CanViewWorkItem(user *registry.User, item *registry.WorkItem) bool {
	return user.Admin() || user.InstitutionIdentifier == item.Institution
}

// CanCreateRecord reports whether user may create or update registry
// records (objects, files, events, work item state). Only the
// preservation pipeline writes these, and it authenticates as admin.
func CanCreateRecord(user *registry.User) bool {
	return user.Admin()
}

// CanRequestDeletion reports whether user may request deletion of a
// file belonging to institutionID. Regular institutional users cannot
// destroy holdings.
func CanRequestDeletion(user *registry.User, institutionID int64) bool {
	if user.Admin() {
		return true
	}
	return user.InstitutionalAdmin() && user.InstitutionID == institutionID
}

// CanRequestRestore reports whether user may request restoration of an
// object belonging to institutionID.
func CanRequestRestore(user *registry.User, institutionID int64) bool {
	if user.Admin() {
		return true
	}
	return user.InstitutionID == institutionID &&
		(user.InstitutionalAdmin() || user.InstitutionalUser())
}

// CanReviewWorkItem reports whether user may mark a finished item
// reviewed.
func CanReviewWorkItem(user *registry.User, item *registry.WorkItem) bool {
	if user.Admin() {
		return true
	}
	return user.InstitutionalAdmin() && user.InstitutionIdentifier == item.Institution
}

// RequireRole returns a ForbiddenError unless user's role is at least
// minRole. Role order, strongest first: admin, institutional_admin,
// institutional_user.
func RequireRole(user *registry.User, minRole string) error {
	if roleRank(user.Role) >= roleRank(minRole) {
		return nil
	}
	return service.NewForbiddenError("")
}

func roleRank(role string) int {
	switch role {
	case constants.RoleAdmin:
		return 3
	case constants.RoleInstAdmin:
		return 2
	case constants.RoleInstUser:
		return 1
	default:
		return 0
	}
}

// ScopeInstitutions narrows an institution list to what user may see.
func ScopeInstitutions(user *registry.User, filter *db.InstitutionFilter) {
	if !user.Admin() {
		filter.RestrictToID = user.InstitutionID
	}
}

// ScopeObjects narrows an object list to what user may see. The
// filter's scope fields are trusted and must never be set from request
// params.
func ScopeObjects(user *registry.User, filter *db.ObjectFilter) {
	if user.Admin() {
		return
	}
	filter.ScopeInstitutionID = user.InstitutionID
	filter.ScopeExcludeRestricted = user.InstitutionalUser()
}

// ScopeFiles narrows a file list to what user may see.
func ScopeFiles(user *registry.User, filter *db.FileFilter) {
	if user.Admin() {
		return
	}
	filter.ScopeInstitutionID = user.InstitutionID
	filter.ScopeExcludeRestricted = user.InstitutionalUser()
}

// ScopeEvents narrows an event list to what user may see.
func ScopeEvents(user *registry.User, filter *db.EventFilter) {
	if user.Admin() {
		return
	}
	filter.ScopeInstitutionID = user.InstitutionID
	filter.ScopeExcludeRestricted = user.InstitutionalUser()
}

// ScopeWorkItems narrows a work item list to what user may see.
func ScopeWorkItems(user *registry.User, filter *db.WorkItemFilter) {
	if !user.Admin() {
		filter.ScopeInstitution = user.InstitutionIdentifier
	}
}
