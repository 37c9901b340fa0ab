// Package workers contains the asynq task handlers run by the worker binary.
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/voxserve/voxserve/internal/audio"
	"github.com/voxserve/voxserve/internal/config"
	"github.com/voxserve/voxserve/internal/engine"
	"github.com/voxserve/voxserve/internal/engine/xtts"
	"github.com/voxserve/voxserve/internal/queue"
	"github.com/voxserve/voxserve/internal/synth"
)

const outputFileMode = 0o644

// SynthesisWorker processes synthesis jobs one at a time. The engine and
// orchestrator are created lazily on the first job and reused for the life of
// the process, amortizing the model load — the dominant latency cost of the
// whole system.
type SynthesisWorker struct {
	cfg *config.Config

	initOnce sync.Once
	synth    *synth.Synthesizer
	engine   engine.Engine
}

func NewSynthesisWorker(cfg *config.Config) *SynthesisWorker {
	return &SynthesisWorker{cfg: cfg}
}

func (w *SynthesisWorker) init() {
	w.initOnce.Do(func() {
		slog.Info("initializing synthesis services for this worker process")
		w.engine = xtts.New(xtts.Config{
			ModelDir:       w.cfg.Model.Dir,
			RuntimeURL:     w.cfg.Model.RuntimeURL,
			RuntimeTimeout: w.cfg.Model.RuntimeTimeout,
		})
		if !w.engine.IsReady() {
			slog.Error("voice model failed to load, this worker cannot process jobs",
				"missing", w.engine.MissingArtifacts())
		}
		w.synth = synth.New(w.engine, audio.NewProcessor(w.cfg.Model.SampleRate))
	})
}

// ProcessTask runs one job end to end. The task is acknowledged only after
// this returns, so every side effect before the terminal write is safe to
// repeat on redelivery: artifact names are collision-free and temp deletion
// tolerates an already-removed file.
func (w *SynthesisWorker) ProcessTask(ctx context.Context, t *asynq.Task) (err error) {
	w.init()

	var payload queue.SynthesisPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	jobID, _ := asynq.GetTaskID(ctx)
	slog.Info("synthesis job started", "job_id", jobID, "language", payload.Language,
		"text_len", len(payload.Text))

	// An uploaded speaker file belongs to whoever holds the unresolved job.
	// While the broker will redeliver, that is a future attempt of this job,
	// which still needs the file; only a resolved job may delete it.
	if payload.UploadedSpeaker {
		defer func() {
			if !jobResolved(ctx, err) {
				slog.Info("keeping uploaded speaker file for redelivery",
					"job_id", jobID, "path", payload.SpeakerPath)
				return
			}
			if rmErr := os.Remove(payload.SpeakerPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				slog.Error("failed to remove uploaded speaker file", "job_id", jobID, "path", payload.SpeakerPath, "error", rmErr)
			}
		}()
	}

	// The broker enforces the hard limit via the task deadline; carve out a
	// soft window before it so the job can finish cleanup cooperatively.
	if hard, ok := ctx.Deadline(); ok {
		grace := w.cfg.Worker.TaskTimeout - w.cfg.Worker.SoftTimeout
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, hard.Add(-grace))
		defer cancel()
	}

	speakerPath := payload.SpeakerPath
	if speakerPath == "" {
		speakerPath = w.cfg.Model.DefaultSpeaker
	}
	if _, err := os.Stat(speakerPath); err != nil {
		return fmt.Errorf("%w: %s: %w", engine.ErrSpeakerNotFound, speakerPath, asynq.SkipRetry)
	}

	output, report, err := w.synth.Synthesize(ctx, synth.Request{
		Text:          payload.Text,
		Language:      payload.Language,
		SpeakerWAV:    speakerPath,
		NormalizeText: payload.NormalizeText,
		Model:         payload.Model,
		Postproc:      payload.Postproc,
	})
	if err != nil {
		if isInputFailure(err) {
			// Deterministic input failures will fail identically on every
			// redelivery; record them terminally instead of retrying.
			return fmt.Errorf("synthesis failed: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("synthesis failed: %w", err)
	}

	if err := os.MkdirAll(w.cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	artifactPath := filepath.Join(w.cfg.Output.Dir, output.Filename)
	if err := os.WriteFile(artifactPath, output.Data, outputFileMode); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}

	result, err := json.Marshal(queue.SynthesisResult{
		Filename: output.Filename,
		FilePath: artifactPath,
	})
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if _, err := t.ResultWriter().Write(result); err != nil {
		return fmt.Errorf("record result: %w", err)
	}

	slog.Info("synthesis job succeeded", "job_id", jobID, "artifact", artifactPath,
		"bytes", len(output.Data), "segments_produced", report.Produced(),
		"elapsed", time.Since(payload.SubmittedAt).Round(time.Millisecond))
	return nil
}

// jobResolved reports whether this attempt settled the job: success, an error
// marked SkipRetry, or a retryable error on the final allowed attempt. Only a
// resolved job may release resources a redelivery would still need.
func jobResolved(ctx context.Context, err error) bool {
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		return true
	}
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return false
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	return ok && retried >= maxRetry
}

// isInputFailure reports whether the synthesis error is a property of the
// request rather than the environment.
func isInputFailure(err error) bool {
	return errors.Is(err, synth.ErrUnsupportedLanguage) ||
		errors.Is(err, synth.ErrNoSegments) ||
		errors.Is(err, synth.ErrNoAudioProduced) ||
		errors.Is(err, synth.ErrPostprocessEmpty) ||
		errors.Is(err, engine.ErrSpeakerNotFound)
}
