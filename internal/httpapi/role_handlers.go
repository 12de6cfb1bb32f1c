package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"memoria.org/internal/access"
	"memoria.org/internal/identity"
	"memoria.org/internal/roles"
)

type grantRoleRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type inviteRequest struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	ProfileID string `json:"profile_id,omitempty"`
}

type inviteResponse struct {
	InvitationID string `json:"invitation_id"`
}

func (a *API) handleOrgScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/orgs/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	orgID := parts[0]
	switch parts[1] {
	case "roles":
		switch len(parts) {
		case 2:
			a.handleOrgRoles(w, r, orgID)
		case 3:
			a.handleOrgRoleMember(w, r, orgID, parts[2])
		default:
			writeError(w, r, http.StatusNotFound, "resource not found")
		}
	case "invitations":
		if len(parts) != 2 {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.handleOrgInvitations(w, r, orgID)
	case "audit":
		if len(parts) != 2 {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.handleOrgAudit(w, r, orgID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// handleOrgRoles serves POST (grant a role by email) and GET (list grants)
// for an organization scope.
func (a *API) handleOrgRoles(w http.ResponseWriter, r *http.Request, orgID string) {
	switch r.Method {
	case http.MethodPost:
		a.grantOrgRole(w, r, orgID)
	case http.MethodGet:
		a.listOrgRoles(w, r, orgID)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// requireOrgAdmin enforces the admin gate shared by the role-management and
// audit endpoints. On failure it writes the response and returns false.
func (a *API) requireOrgAdmin(w http.ResponseWriter, r *http.Request, orgID, actor string) bool {
	admin, err := a.access.Evaluator().IsAdmin(r.Context(), orgID, actor)
	if err != nil {
		writeDomainError(w, r, err)
		return false
	}
	if !admin {
		writeError(w, r, http.StatusForbidden, "admin role required")
		return false
	}
	return true
}

func (a *API) grantOrgRole(w http.ResponseWriter, r *http.Request, orgID string) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	if !a.requireOrgAdmin(w, r, orgID, actor) {
		return
	}
	var req grantRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := roles.OrgRole(req.Role)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	user, err := a.identity.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "no account for that email")
			return
		}
		writeDomainError(w, r, err)
		return
	}
	scope := access.Scope{OrgID: orgID}
	if err := a.access.Grant(r.Context(), actor, user.ID, scope, role); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"org_id":  orgID,
		"user_id": user.ID,
		"role":    role,
	})
}

// listOrgRoles requires membership in the organization: grants carry invited
// email addresses, so outsiders must not see them.
func (a *API) listOrgRoles(w http.ResponseWriter, r *http.Request, orgID string) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	_, member, err := a.access.Evaluator().EffectiveRole(r.Context(), actor, access.Scope{OrgID: orgID})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !member {
		writeError(w, r, http.StatusForbidden, "organization role required")
		return
	}
	grants, err := a.access.ListGrants(r.Context(), access.Scope{OrgID: orgID})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": grants})
}

// handleOrgRoleMember removes a user's role in the organization. Only org
// admins may call it; the admin check runs before the grant lookup so
// non-admins cannot probe for grant existence. Unknown users and users with
// no grant both come back 404.
func (a *API) handleOrgRoleMember(w http.ResponseWriter, r *http.Request, orgID, userID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	if !a.requireOrgAdmin(w, r, orgID, actor) {
		return
	}
	scope := access.Scope{OrgID: orgID}
	grants, err := a.access.ListGrants(r.Context(), scope)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	found := false
	for _, g := range grants {
		if g.PrincipalID == userID && !g.Pending {
			found = true
			break
		}
	}
	if !found {
		writeError(w, r, http.StatusNotFound, "no role grant for that user")
		return
	}
	if err := a.access.Revoke(r.Context(), actor, userID, scope); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleOrgInvitations(w http.ResponseWriter, r *http.Request, orgID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var req inviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := roles.Parse(req.Role)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	scope := access.Scope{OrgID: orgID, ProfileID: strings.TrimSpace(req.ProfileID)}
	id, err := a.access.Invite(r.Context(), actor, req.Email, scope, role)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inviteResponse{InvitationID: id})
}

func (a *API) handleOrgAudit(w http.ResponseWriter, r *http.Request, orgID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	if !a.requireOrgAdmin(w, r, orgID, actor) {
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := a.rec.ListByOrg(r.Context(), orgID, limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
