package httpapi

import (
	"net/http"
	"time"

	"propertyhub.org/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userView  `json:"user"`
}

type workstreamView struct {
	ID          string `json:"id"`
	Permission  string `json:"permission"`
	PropertyHub bool   `json:"property_hub"`
}

type userView struct {
	ID             string           `json:"id"`
	Email          string           `json:"email"`
	DisplayName    string           `json:"display_name"`
	GlobalAdmin    bool             `json:"global_admin"`
	Roles          []string         `json:"roles"`
	Workstreams    []workstreamView `json:"workstreams"`
	PropertyGroups []string         `json:"property_groups"`
}

type accessView struct {
	GlobalAdmin      bool              `json:"global_admin"`
	PropertyHub      bool              `json:"property_hub"`
	PropertyHubAdmin bool              `json:"property_hub_admin"`
	Workstreams      map[string]string `json:"workstreams"`
	PropertyGroups   []string          `json:"property_groups"`
}

func newUserView(id, email, name string, f auth.Facts) userView {
	v := userView{
		ID:             id,
		Email:          email,
		DisplayName:    name,
		GlobalAdmin:    f.GlobalAdmin,
		Roles:          f.RoleList(),
		Workstreams:    make([]workstreamView, 0, len(f.Workstreams)),
		PropertyGroups: f.PropertyGroupList(),
	}
	for _, wsID := range f.WorkstreamIDs() {
		access := f.Workstreams[wsID]
		v.Workstreams = append(v.Workstreams, workstreamView{
			ID:          wsID,
			Permission:  string(access.Permission),
			PropertyHub: access.PropertyHub,
		})
	}
	return v
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	session, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      newUserView(session.Account.ID, session.Account.Email, session.Account.DisplayName, session.Facts),
	})
}

// handleMe re-reads the account so a deleted or deactivated subject gets 401.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrAbort(w, r)
	if !ok {
		return
	}
	id, err := a.auth.Me(r.Context(), p)
	if err != nil {
		handleError(w, r, err)
		return
	}
	acct := id.Account
	writeJSON(w, http.StatusOK, map[string]any{
		"user": newUserView(acct.ID, acct.Email, acct.DisplayName, auth.BuildFacts(id)),
	})
}

// handleAccess evaluates the menu-level checks for the caller's token.
func (a *API) handleAccess(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrAbort(w, r)
	if !ok {
		return
	}
	f := p.Facts
	view := accessView{
		GlobalAdmin:      allowed(f, auth.GlobalAdmin()),
		PropertyHub:      allowed(f, auth.PropertyHubAccess()),
		PropertyHubAdmin: allowed(f, auth.PropertyHubAdminAccess()),
		Workstreams:      make(map[string]string, len(f.Workstreams)),
		PropertyGroups:   f.PropertyGroupList(),
	}
	for wsID, access := range f.Workstreams {
		view.Workstreams[wsID] = string(access.Permission)
	}
	writeJSON(w, http.StatusOK, view)
}

func allowed(f auth.Facts, c auth.Check) bool {
	ok, err := auth.Resolve(f, c)
	return err == nil && ok
}
