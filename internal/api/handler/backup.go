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
	"github.com/edvin/churchadmin/internal/model"
)

type Backup struct {
	orch      *backup.Orchestrator
	jobs      *core.JobService
	artifacts *core.ArtifactService
}

func NewBackup(orch *backup.Orchestrator, jobs *core.JobService, artifacts *core.ArtifactService) *Backup {
	return &Backup{orch: orch, jobs: jobs, artifacts: artifacts}
}

func (h *Backup) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateBackup
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.orch.Submit(r.Context(), req.Kind, req.RequestedBy, req.Excludes)
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

func (h *Backup) List(w http.ResponseWriter, r *http.Request) {
	pg := request.ParsePagination(r)

	jobs, hasMore, err := h.jobs.List(r.Context(), pg.Limit, pg.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(jobs) > 0 {
		nextCursor = jobs[len(jobs)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, jobs, nextCursor, hasMore)
}

type jobDetail struct {
	*model.BackupJob
	Artifacts []model.BackupArtifact `json:"artifacts"`
}

func (h *Backup) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.WriteError(w, http.StatusNotFound, "backup job not found")
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	artifacts, err := h.artifacts.ListByJob(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if artifacts == nil {
		artifacts = []model.BackupArtifact{}
	}

	response.WriteJSON(w, http.StatusOK, jobDetail{BackupJob: job, Artifacts: artifacts})
}

func (h *Backup) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.jobs.Statistics(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, stats)
}

// Manifest serves the artifact's manifest sidecar as recorded on disk.
func (h *Backup) Manifest(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	artifact, err := h.artifacts.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.WriteError(w, http.StatusNotFound, "artifact not found")
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	m, err := backup.ReadManifest(artifact.ManifestPath)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, m)
}
