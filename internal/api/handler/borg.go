package handler

import (
	"errors"
	"net/http"

	"github.com/edvin/churchadmin/internal/api/request"
	"github.com/edvin/churchadmin/internal/api/response"
	"github.com/edvin/churchadmin/internal/backup"
	"github.com/edvin/churchadmin/internal/model"
)

type Borg struct {
	orch   *backup.Orchestrator
	runner *backup.BorgRunner
}

func NewBorg(orch *backup.Orchestrator, runner *backup.BorgRunner) *Borg {
	return &Borg{orch: orch, runner: runner}
}

// Run queues a borg snapshot job. It goes through the same queue and borg
// resource class as every other job, so two snapshot runs never overlap.
func (h *Borg) Run(w http.ResponseWriter, r *http.Request) {
	var req request.RunBorg
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.orch.Submit(r.Context(), model.KindBorg, req.RequestedBy, nil)
	if err != nil {
		if errors.Is(err, backup.ErrQueueFull) {
			response.WriteError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusAccepted, job)
}

func (h *Borg) ListArchives(w http.ResponseWriter, r *http.Request) {
	archives, err := h.runner.List(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	if archives == nil {
		archives = []backup.BorgArchive{}
	}
	response.WriteJSON(w, http.StatusOK, archives)
}

func (h *Borg) Info(w http.ResponseWriter, r *http.Request) {
	info, err := h.runner.Info(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, info)
}
