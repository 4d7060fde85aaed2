package auth

import (
	"sort"

	"github.com/docmem/docmem/internal/models"
)

// HasPermission is the pure authorization decision: may the principal
// perform action on resource, optionally scoped to projectID. Only the role
// the presented token is bound to counts; other roles the user holds do not.
// Missing keys at any level of the grant tree deny (closed world).
func HasPermission(user *models.UserContext, resource models.Resource, action models.Action, projectID string) bool {
	if user == nil {
		return false
	}

	perms := user.CurrentRole.Permissions

	// System admin overrides every other check, for any resource and
	// action, known to the schema or not.
	if perms.IsAdmin() {
		return true
	}

	if resource == models.ResourceProject {
		// Project-scoped checks always carry a project id; an absent id
		// is a caller bug and denies.
		if projectID == "" {
			return false
		}
		return perms.ProjectAllows(projectID, action)
	}

	if perms.Global == nil {
		return false
	}
	return perms.Global.ForResource(resource).Allows(action)
}

// ProjectAccess is the result of resolving which projects a principal may
// read. All=true is the "every project" sentinel; otherwise IDs is the
// concrete (deduplicated, sorted) list, possibly empty.
type ProjectAccess struct {
	All bool
	IDs []string
}

// AccessibleProjects pre-computes read scope for listing endpoints, so they
// can filter the query instead of running HasPermission per row.
func AccessibleProjects(user *models.UserContext) ProjectAccess {
	if user == nil {
		return ProjectAccess{IDs: []string{}}
	}

	perms := user.CurrentRole.Permissions
	if perms.IsAdmin() {
		return ProjectAccess{All: true}
	}

	projects := perms.Projects
	if projects == nil {
		return ProjectAccess{IDs: []string{}}
	}
	if projects.All != nil && projects.All.Read {
		return ProjectAccess{All: true}
	}

	seen := make(map[string]struct{})
	ids := make([]string, 0, len(projects.Specific))
	for id, grant := range projects.Specific {
		if grant == nil || !grant.Read {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ProjectAccess{IDs: ids}
}

// CanCreateProjects reports whether the principal may create new projects:
// system admins and holders of the all-projects write grant.
func CanCreateProjects(user *models.UserContext) bool {
	if user == nil {
		return false
	}
	perms := user.CurrentRole.Permissions
	if perms.IsAdmin() {
		return true
	}
	return perms.Projects != nil && perms.Projects.All != nil && perms.Projects.All.Write
}
