package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voxserve/voxserve/internal/audio"
	"github.com/voxserve/voxserve/internal/engine"
	"github.com/voxserve/voxserve/internal/queue"
	"github.com/voxserve/voxserve/internal/synth"
	"github.com/voxserve/voxserve/internal/text"
)

const (
	maxUploadBytes      = 32 << 20
	speakerUploadPrefix = "speaker_upload_"
)

// Accepted container formats for reference-voice uploads.
var allowedSpeakerExts = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".ogg":  true,
	".flac": true,
}

// Dispatcher persists a synthesis job to the broker and returns its id.
type Dispatcher interface {
	EnqueueSynthesis(ctx context.Context, payload queue.SynthesisPayload) (string, error)
}

// StatusReader resolves a job id to a status snapshot.
type StatusReader interface {
	GetStatus(jobID string) (*queue.JobSnapshot, error)
}

type TTSHandler struct {
	dispatch  Dispatcher
	status    StatusReader
	engine    engine.Engine
	outputDir string
}

func NewTTSHandler(dispatch Dispatcher, status StatusReader, eng engine.Engine, outputDir string) *TTSHandler {
	return &TTSHandler{
		dispatch:  dispatch,
		status:    status,
		engine:    eng,
		outputDir: outputDir,
	}
}

// Languages lists the supported language codes and display names.
func (h *TTSHandler) Languages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, text.SupportedLanguages)
}

// Submit validates a multipart synthesis request and enqueues it. The
// response carries the job id and a status locator; the artifact is produced
// asynchronously.
func (h *TTSHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if !h.engine.IsReady() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "voice model is not ready, service cannot accept requests",
		})
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	input := r.FormValue("text")
	if strings.TrimSpace(input) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "field 'text' is required and must not be empty"})
		return
	}
	if len([]rune(input)) < synth.MinSegmentChars {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("input text too short, minimum is %d characters", synth.MinSegmentChars),
		})
		return
	}

	lang := strings.ToLower(r.FormValue("language"))
	if lang == "" {
		lang = "vi"
	}
	if !text.IsSupported(lang) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("language %q is not supported", lang),
		})
		return
	}

	form := flattenForm(r)

	payload := queue.SynthesisPayload{
		Text:          input,
		Language:      lang,
		NormalizeText: synth.ParseBool(form, "normalize_text", true),
		Model:         synth.ParseModelParams(form),
		Postproc:      synth.ParsePostprocParams(form),
		SubmittedAt:   time.Now().UTC(),
	}

	tempSpeaker, err := h.saveSpeakerUpload(r)
	if err != nil {
		var badExt *unsupportedUploadError
		if errors.As(err, &badExt) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": badExt.Error()})
			return
		}
		slog.Error("failed to store speaker upload", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store uploaded speaker audio"})
		return
	}
	if tempSpeaker != "" {
		payload.SpeakerPath = tempSpeaker
		payload.UploadedSpeaker = true
	}

	jobID, err := h.dispatch.EnqueueSynthesis(r.Context(), payload)
	if err != nil {
		slog.Error("job dispatch failed", "error", err)
		// Until dispatch succeeds the API owns the uploaded temp file.
		if tempSpeaker != "" {
			if rmErr := os.Remove(tempSpeaker); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				slog.Error("failed to clean up speaker upload after dispatch failure", "path", tempSpeaker, "error", rmErr)
			}
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to dispatch synthesis job"})
		return
	}

	slog.Info("synthesis job accepted", "job_id", jobID, "language", lang, "text_len", len(input))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message":    "synthesis request accepted and queued for processing",
		"task_id":    jobID,
		"status_url": statusURL(r, jobID),
	})
}

// Status returns a snapshot of the job; a job that merely has not finished is
// never an error, and an unknown id reports UNKNOWN.
func (h *TTSHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	snap, err := h.status.GetStatus(jobID)
	if err != nil {
		slog.Error("status lookup failed", "job_id", jobID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"task_id": jobID,
			"status":  string(queue.StatusUnknown),
			"error":   "cannot reach the task backend",
		})
		return
	}

	resp := map[string]interface{}{
		"task_id":   jobID,
		"status":    snap.Status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	switch snap.Status {
	case queue.StatusSuccess:
		resp["result"] = map[string]string{
			"message":      "speech synthesis completed successfully",
			"filename":     snap.Result.Filename,
			"download_url": resultURL(r, jobID),
		}
	case queue.StatusFailure:
		resp["error_details"] = snap.LastError
	default:
		resp["message"] = "request is queued or being processed"
		if snap.Retry != nil {
			resp["retry_info"] = snap.Retry
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Result streams the artifact of a successful job as an attachment. A purged
// artifact is a distinct not-found, a failed job a client error, and an
// unfinished job an in-progress indicator.
func (h *TTSHandler) Result(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	snap, err := h.status.GetStatus(jobID)
	if err != nil {
		slog.Error("result lookup failed", "job_id", jobID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "cannot reach the task backend"})
		return
	}

	switch snap.Status {
	case queue.StatusSuccess:
		h.serveArtifact(w, r, jobID, snap.Result.Filename)
	case queue.StatusFailure:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "synthesis failed, no result available; check the status endpoint for details",
		})
	default:
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"message": "processing not finished",
			"status":  snap.Status,
		})
	}
}

func (h *TTSHandler) serveArtifact(w http.ResponseWriter, r *http.Request, jobID, filename string) {
	// Serve strictly by basename inside the output dir; the recorded path is
	// never trusted directly.
	path := filepath.Join(h.outputDir, filepath.Base(filename))

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Error("artifact missing for successful job", "job_id", jobID, "path", path)
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "result file no longer exists on the server; it may have been purged",
			})
			return
		}
		slog.Error("failed to open artifact", "job_id", jobID, "path", path, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read result file"})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read result file"})
		return
	}

	w.Header().Set("Content-Type", audio.MimeTypeWAV)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(filename)))
	http.ServeContent(w, r, filename, info.ModTime(), f)
}

type unsupportedUploadError struct {
	filename string
}

func (e *unsupportedUploadError) Error() string {
	return fmt.Sprintf("unsupported speaker audio type %q; allowed: .wav, .mp3, .ogg, .flac", e.filename)
}

// saveSpeakerUpload persists an optional reference-voice upload to a temp
// file in the output dir. Returns "" when no file was uploaded.
func (h *TTSHandler) saveSpeakerUpload(r *http.Request) (string, error) {
	file, header, err := r.FormFile("speaker_audio_file")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read speaker upload: %w", err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".wav"
	}
	if !allowedSpeakerExts[ext] {
		return "", &unsupportedUploadError{filename: header.Filename}
	}

	if err := os.MkdirAll(h.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(h.outputDir, speakerUploadPrefix+"*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("store speaker upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}

	slog.Info("speaker upload stored", "path", tmp.Name())
	return tmp.Name(), nil
}

func flattenForm(r *http.Request) map[string]string {
	form := make(map[string]string, len(r.Form))
	for key, values := range r.Form {
		if len(values) > 0 {
			form[key] = values[0]
		}
	}
	if r.MultipartForm != nil {
		for key, values := range r.MultipartForm.Value {
			if len(values) > 0 {
				form[key] = values[0]
			}
		}
	}
	return form
}

func statusURL(r *http.Request, jobID string) string {
	return baseURL(r) + "/api/v1/tts/status/" + jobID
}

func resultURL(r *http.Request, jobID string) string {
	return baseURL(r) + "/api/v1/tts/result/" + jobID
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
