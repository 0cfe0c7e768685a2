package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"propertyhub.org/internal/audit"
	"propertyhub.org/internal/auth"
)

type createAccountRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	Inactive    bool   `json:"inactive"`
}

type updateAccountRequest struct {
	DisplayName *string `json:"display_name"`
	Active      *bool   `json:"active"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

type createRoleRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type createWorkstreamRequest struct {
	Name        string `json:"name"`
	PropertyHub *bool  `json:"property_hub"`
}

type createPropertyGroupRequest struct {
	Name string `json:"name"`
}

type workstreamGrantRequest struct {
	Permission string `json:"permission"`
}

func (a *API) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	acct, err := a.admin.CreateAccount(r.Context(), auth.NewAccount{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Inactive:    req.Inactive,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/accounts/%s", acct.ID))
	writeJSON(w, http.StatusCreated, acct)
}

// updateAccount changes the display name and/or the active flag.
func (a *API) updateAccount(w http.ResponseWriter, r *http.Request) {
	var req updateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.DisplayName == nil && req.Active == nil {
		writeError(w, r, http.StatusBadRequest, "display_name or active is required")
		return
	}
	id := chi.URLParam(r, "id")
	var (
		acct auth.Account
		err  error
	)
	if req.DisplayName != nil {
		if acct, err = a.admin.UpdateProfile(r.Context(), id, *req.DisplayName); err != nil {
			handleError(w, r, err)
			return
		}
	}
	if req.Active != nil {
		if acct, err = a.admin.SetActive(r.Context(), id, *req.Active); err != nil {
			handleError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, acct)
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := a.admin.ResetPassword(r.Context(), chi.URLParam(r, "id"), req.Password); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) assignRole(w http.ResponseWriter, r *http.Request) {
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	grant, err := a.admin.AssignRole(r.Context(), chi.URLParam(r, "id"), req.RoleID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, grant)
}

func (a *API) removeRole(w http.ResponseWriter, r *http.Request) {
	if err := a.admin.RemoveRole(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "roleID")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) grantWorkstream(w http.ResponseWriter, r *http.Request) {
	var req workstreamGrantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	grant, err := a.admin.GrantWorkstream(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "wsID"), req.Permission)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (a *API) revokeWorkstream(w http.ResponseWriter, r *http.Request) {
	if err := a.admin.RevokeWorkstream(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "wsID")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) grantPropertyGroup(w http.ResponseWriter, r *http.Request) {
	grant, err := a.admin.GrantPropertyGroup(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "groupID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (a *API) revokePropertyGroup(w http.ResponseWriter, r *http.Request) {
	grant, err := a.admin.RevokePropertyGroup(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "groupID"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, grant)
}

func (a *API) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.admin.CreateRole(r.Context(), req.Name, req.Kind)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) createWorkstream(w http.ResponseWriter, r *http.Request) {
	var req createWorkstreamRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ws, err := a.admin.CreateWorkstream(r.Context(), req.Name, req.PropertyHub)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws)
}

func (a *API) createPropertyGroup(w http.ResponseWriter, r *http.Request) {
	var req createPropertyGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	group, err := a.admin.CreatePropertyGroup(r.Context(), req.Name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

type listAuditResponse struct {
	Items []audit.Entry `json:"items"`
}

func (a *API) listAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parsePositiveInt(q.Get("limit"), audit.DefaultListLimit, 1, audit.MaxListLimit)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, err := a.audit.List(r.Context(), audit.Filter{
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		ActorID:    q.Get("actor_id"),
		Limit:      limit,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	if items == nil {
		items = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, listAuditResponse{Items: items})
}
