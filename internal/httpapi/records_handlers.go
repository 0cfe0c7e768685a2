package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"propertyhub.org/internal/records"
)

type createRecordRequest struct {
	PropertyGroupID string `json:"property_group_id"`
	Title           string `json:"title"`
	Body            string `json:"body"`
}

type updateRecordRequest struct {
	PropertyGroupID *string `json:"property_group_id"`
	Title           *string `json:"title"`
	Body            *string `json:"body"`
}

type listRecordsResponse struct {
	Items []records.Record `json:"items"`
}

func recordType(w http.ResponseWriter, r *http.Request) (records.Type, bool) {
	typ, err := records.ParseType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return "", false
	}
	return typ, true
}

func (a *API) createRecord(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrAbort(w, r)
	if !ok {
		return
	}
	typ, ok := recordType(w, r)
	if !ok {
		return
	}
	var req createRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := a.records.Create(r.Context(), p, records.Record{
		Type:            typ,
		PropertyGroupID: req.PropertyGroupID,
		Title:           req.Title,
		Body:            req.Body,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/records/%s/%s", rec.Type, rec.ID))
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) listRecords(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrAbort(w, r)
	if !ok {
		return
	}
	typ, ok := recordType(w, r)
	if !ok {
		return
	}
	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 50, 1, 500)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	items, err := a.records.List(r.Context(), p, typ, limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listRecordsResponse{Items: items})
}

func (a *API) getRecord(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrAbort(w, r)
	if !ok {
		return
	}
	typ, ok := recordType(w, r)
	if !ok {
		return
	}
	rec, err := a.records.Get(r.Context(), p, typ, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) updateRecord(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrAbort(w, r)
	if !ok {
		return
	}
	typ, ok := recordType(w, r)
	if !ok {
		return
	}
	var req updateRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := a.records.Update(r.Context(), p, typ, chi.URLParam(r, "id"), records.Patch{
		Title:           req.Title,
		Body:            req.Body,
		PropertyGroupID: req.PropertyGroupID,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) deleteRecord(w http.ResponseWriter, r *http.Request) {
	p, ok := principalOrAbort(w, r)
	if !ok {
		return
	}
	typ, ok := recordType(w, r)
	if !ok {
		return
	}
	if err := a.records.Delete(r.Context(), p, typ, chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
