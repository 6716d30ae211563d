package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/churchadmin/internal/api/request"
	"github.com/edvin/churchadmin/internal/api/response"
	"github.com/edvin/churchadmin/internal/core"
	"github.com/edvin/churchadmin/internal/model"
)

type Settings struct {
	settings *core.SettingsService
	filters  *core.FilterService
}

func NewSettings(settings *core.SettingsService, filters *core.FilterService) *Settings {
	return &Settings{settings: settings, filters: filters}
}

func (h *Settings) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.settings.Get(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, st)
}

func (h *Settings) Update(w http.ResponseWriter, r *http.Request) {
	var req request.UpdateSettings
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	st := &model.BackupSettings{
		ID:               1,
		NotifyEmail:      req.NotifyEmail,
		BorgRepoPath:     req.BorgRepoPath,
		IncludeFiles:     req.IncludeFiles,
		IncludeDatabase:  req.IncludeDatabase,
		CompressionLevel: req.CompressionLevel,
	}
	if err := h.settings.Update(r.Context(), st); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	updated, err := h.settings.Get(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, updated)
}

func (h *Settings) ListFilters(w http.ResponseWriter, r *http.Request) {
	filters, err := h.filters.List(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if filters == nil {
		filters = []model.BackupFilter{}
	}
	response.WriteJSON(w, http.StatusOK, filters)
}

func (h *Settings) UpdateFilter(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateFilter
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	f := &model.BackupFilter{
		ID:          id,
		Pattern:     req.Pattern,
		Enabled:     req.Enabled,
		Description: req.Description,
	}
	if err := h.filters.Update(r.Context(), f); err != nil {
		if strings.Contains(err.Error(), "not found") {
			response.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, f)
}
