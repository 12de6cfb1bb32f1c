package httpapi

import (
	"net/http"
	"strings"

	"memoria.org/internal/profile"
)

type createProfileRequest struct {
	OrgID string `json:"org_id"`
	Type  string `json:"type"`
	Name  string `json:"name"`
}

type transitionRequest struct {
	Comment string `json:"comment,omitempty"`
}

type profileResponse struct {
	*profile.Profile
	Completeness int `json:"completeness"`
}

func (a *API) handleProfiles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createProfile(w, r)
	case http.MethodGet:
		a.listProfiles(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var req createProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	typ, err := profile.ParseType(req.Type)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	p, err := a.workflow.Create(r.Context(), actor, req.OrgID, typ, req.Name)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/profiles/"+p.ID)
	writeJSON(w, http.StatusCreated, profileResponse{Profile: p, Completeness: profile.CompletenessScore(p)})
}

func (a *API) listProfiles(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorID(w, r); !ok {
		return
	}
	orgID := strings.TrimSpace(r.URL.Query().Get("org_id"))
	if orgID == "" {
		writeError(w, r, http.StatusBadRequest, "org_id query parameter is required")
		return
	}
	items, err := a.workflow.ListByOrg(r.Context(), orgID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]profileResponse, 0, len(items))
	for _, p := range items {
		out = append(out, profileResponse{Profile: p, Completeness: profile.CompletenessScore(p)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": out})
}

func (a *API) handleProfileResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/profiles/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	switch len(parts) {
	case 1:
		a.handleProfile(w, r, parts[0])
	case 2:
		a.handleProfileAction(w, r, parts[0], parts[1])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := actorID(w, r); !ok {
			return
		}
		p, err := a.workflow.Get(r.Context(), id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profileResponse{Profile: p, Completeness: profile.CompletenessScore(p)})
	case http.MethodPatch:
		actor, ok := actorID(w, r)
		if !ok {
			return
		}
		var buf profile.DraftBuffer
		if err := decodeJSON(w, r, &buf); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		p, err := a.workflow.SaveDraft(r.Context(), actor, id, buf)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, profileResponse{Profile: p, Completeness: profile.CompletenessScore(p)})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

// handleProfileAction drives the lifecycle: submit, approve, reject, archive.
func (a *API) handleProfileAction(w http.ResponseWriter, r *http.Request, id, action string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	var err error
	switch action {
	case "submit":
		err = a.workflow.Submit(r.Context(), actor, id)
	case "approve":
		err = a.workflow.Approve(r.Context(), actor, id, req.Comment)
	case "reject":
		err = a.workflow.Reject(r.Context(), actor, id, req.Comment)
	case "archive":
		err = a.workflow.Archive(r.Context(), actor, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	p, err := a.workflow.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: p, Completeness: profile.CompletenessScore(p)})
}
