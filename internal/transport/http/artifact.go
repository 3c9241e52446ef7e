package httptransport

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"video-essay-service/internal/artifact"
)

type artifactSpec struct {
	fileName    string
	contentType string
}

var artifactTypes = map[string]artifactSpec{
	"script":     {artifact.ScriptFile, "text/plain; charset=utf-8"},
	"transcript": {artifact.TranscriptFile, "text/plain; charset=utf-8"},
	"image":      {artifact.ImageFile, "image/png"},
	"audio":      {artifact.AudioFile, "audio/wav"},
	"video":      {artifact.VideoFile, "video/mp4"},
}

// RetrieveArtifact godoc
// @Summary Download a named artifact for a job
// @Description Types: script, transcript, image, audio, video, frames. Text artifacts fall back to the record when the file is missing.
// @Tags jobs
// @Produce plain
// @Param id path string true "job id"
// @Param type path string true "artifact type"
// @Success 200
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id}/artifact/{type} [get]
func (h *Handler) RetrieveArtifact(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	artifactType := chi.URLParam(r, "type")

	job, err := h.jobSvc.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	if artifactType == "frames" {
		h.serveFrameListing(w, jobID)
		return
	}

	spec, ok := artifactTypes[artifactType]
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid artifact type")
		return
	}

	path := h.files.Path(jobID, spec.fileName)
	if !h.files.Exists(jobID, spec.fileName) {
		// The record is authoritative for text artifacts; audio keeps a
		// recorded fallback path for jobs produced before reconciliation.
		switch artifactType {
		case "script":
			if job.Script != nil {
				writePlain(w, *job.Script)
				return
			}
		case "transcript":
			if job.Transcript != nil {
				writePlain(w, *job.Transcript)
				return
			}
		case "audio":
			if job.AudioPath != nil && *job.AudioPath != "" {
				path = *job.AudioPath
			}
		}
	}

	if !fileExists(path) {
		writeErr(w, http.StatusNotFound, "artifact not found")
		return
	}

	w.Header().Set("Content-Type", spec.contentType)
	w.Header().Set("Content-Disposition", `inline; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

func (h *Handler) serveFrameListing(w http.ResponseWriter, jobID string) {
	if h.files.Exists(jobID, artifact.ImageFile) {
		writePlain(w, artifact.ImageFile)
		return
	}

	names, err := h.files.ListFrames(jobID)
	if err != nil {
		writeErr(w, http.StatusNotFound, "frames not available")
		return
	}
	writePlain(w, strings.Join(names, "\n"))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
