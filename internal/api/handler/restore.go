package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/edvin/churchadmin/internal/api/request"
	"github.com/edvin/churchadmin/internal/api/response"
	"github.com/edvin/churchadmin/internal/backup"
	"github.com/edvin/churchadmin/internal/core"
)

type Restore struct {
	orch     *backup.RestoreOrchestrator
	restores *core.RestoreService
}

func NewRestore(orch *backup.RestoreOrchestrator, restores *core.RestoreService) *Restore {
	return &Restore{orch: orch, restores: restores}
}

// Create queues a restore of the artifact named in the URL. The response
// already carries the target path or database so callers know where the
// restored data will land.
func (h *Restore) Create(w http.ResponseWriter, r *http.Request) {
	artifactID, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.RestoreArtifact
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	restore, err := h.orch.Submit(r.Context(), artifactID, req.Mode)
	if err != nil {
		switch {
		case errors.Is(err, backup.ErrQueueFull):
			response.WriteError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, pgx.ErrNoRows):
			response.WriteError(w, http.StatusNotFound, "artifact not found")
		default:
			response.WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	response.WriteJSON(w, http.StatusAccepted, restore)
}

func (h *Restore) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	restore, err := h.restores.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.WriteError(w, http.StatusNotFound, "restore not found")
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, restore)
}
