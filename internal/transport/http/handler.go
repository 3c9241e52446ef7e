package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"video-essay-service/internal/entity"
	"video-essay-service/internal/service"
)

type Handler struct {
	jobSvc *service.JobService
	files  ArtifactFiles
}

// ArtifactFiles is the read side of the artifact store the handlers need.
type ArtifactFiles interface {
	Path(jobID, name string) string
	Exists(jobID, name string) bool
	ListFrames(jobID string) ([]string, error)
}

func NewHandler(jobSvc *service.JobService, files ArtifactFiles) *Handler {
	return &Handler{jobSvc: jobSvc, files: files}
}

type createJobDTO struct {
	Topic        string              `json:"topic"`
	Style        string              `json:"style"`
	Length       int                 `json:"length"`
	ImagePrompts map[string][]string `json:"image_prompts,omitempty"`
}

type patchJobDTO struct {
	Script          *string                `json:"script,omitempty"`
	Transcript      *string                `json:"transcript,omitempty"`
	ImagePrompts    map[string][]string    `json:"image_prompts,omitempty"`
	ResearchContext *entity.ResearchResult `json:"research_context,omitempty"`
}

type jobListResp struct {
	Items []*entity.Job `json:"items"`
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrJobNotFound):
		writeErr(w, http.StatusNotFound, "job not found")
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrScriptNotReady),
		errors.Is(err, service.ErrAudioNotReady),
		errors.Is(err, service.ErrVideoDisabled),
		errors.Is(err, service.ErrEmptyPatch):
		writeErr(w, http.StatusBadRequest, err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, "internal error")
	}
}

// CreateJob godoc
// @Summary Create a generation job
// @Description Persists the job (script=queued) and schedules the script stage.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body createJobDTO true "job payload"
// @Success 201 {object} entity.Job
// @Failure 400 {object} apiError
// @Router /jobs [post]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var dto createJobDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	job, err := h.jobSvc.CreateJob(r.Context(), service.CreateJobRequest{
		Topic:        dto.Topic,
		Style:        dto.Style,
		Length:       dto.Length,
		ImagePrompts: dto.ImagePrompts,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, job)
}

// ListJobs godoc
// @Summary List recent jobs
// @Tags jobs
// @Produce json
// @Param limit query int false "max jobs to return (default 20)"
// @Success 200 {object} jobListResp
// @Router /jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	jobs, err := h.jobSvc.ListJobs(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []*entity.Job{}
	}
	writeJSON(w, http.StatusOK, jobListResp{Items: jobs})
}

// GetJob godoc
// @Summary Get job by id
// @Tags jobs
// @Produce json
// @Param id path string true "job id"
// @Success 200 {object} entity.Job
// @Failure 404 {object} apiError
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobSvc.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// PatchJob godoc
// @Summary Patch job content
// @Description Overrides script/transcript/image prompts/research context. Empty patches are rejected.
// @Tags jobs
// @Accept json
// @Produce json
// @Param id path string true "job id"
// @Param request body patchJobDTO true "fields to update"
// @Success 200 {object} entity.Job
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [patch]
func (h *Handler) PatchJob(w http.ResponseWriter, r *http.Request) {
	var dto patchJobDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	job, err := h.jobSvc.PatchJob(r.Context(), chi.URLParam(r, "id"), service.JobPatch{
		Script:          dto.Script,
		Transcript:      dto.Transcript,
		ImagePrompts:    dto.ImagePrompts,
		ResearchContext: dto.ResearchContext,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// RequestAudio godoc
// @Summary Schedule the audio stage
// @Tags jobs
// @Produce json
// @Param id path string true "job id"
// @Param voice query string false "voice override"
// @Success 202 {object} entity.Job
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id}/audio [post]
func (h *Handler) RequestAudio(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobSvc.RequestAudio(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("voice"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// RequestVideo godoc
// @Summary Schedule the video stage
// @Tags jobs
// @Produce json
// @Param id path string true "job id"
// @Success 202 {object} entity.Job
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id}/video [post]
func (h *Handler) RequestVideo(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobSvc.RequestVideo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// Rerender godoc
// @Summary Restart the pipeline from the script stage
// @Description Resets downstream stage statuses and artifacts and re-enqueues the script task.
// @Tags jobs
// @Produce json
// @Param id path string true "job id"
// @Success 202 {object} map[string]string
// @Failure 404 {object} apiError
// @Router /jobs/{id}/rerender [post]
func (h *Handler) Rerender(w http.ResponseWriter, r *http.Request) {
	if err := h.jobSvc.Rerender(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "script regeneration started"})
}
