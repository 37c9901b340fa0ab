// Package xtts adapts the XTTS voice-cloning runtime to the engine contract.
// The model weights live on a shared volume; inference runs in a colocated
// runtime process reached over a loopback HTTP contract, so the Go worker
// stays free of accelerator bindings.
package xtts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/voxserve/voxserve/internal/engine"
)

// The three artifacts a usable model requires.
const (
	weightsFile = "model.pth"
	configFile  = "config.json"
	vocabFile   = "vocab.json"
)

type Config struct {
	ModelDir       string
	RuntimeURL     string
	RuntimeTimeout time.Duration
}

// Engine implements engine.Engine against a local XTTS runtime. Exactly one
// load attempt happens per process; a missing artifact leaves the engine
// permanently not loaded with no automatic retry.
type Engine struct {
	cfg     Config
	client  *http.Client
	loaded  bool
	missing []string
}

// New creates the adapter and performs the single load attempt.
func New(cfg Config) *Engine {
	if cfg.RuntimeTimeout <= 0 {
		cfg.RuntimeTimeout = 120 * time.Second
	}

	e := &Engine{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RuntimeTimeout},
	}
	e.load()
	return e
}

func (e *Engine) load() {
	for _, name := range []string{weightsFile, configFile, vocabFile} {
		if _, err := os.Stat(filepath.Join(e.cfg.ModelDir, name)); err != nil {
			e.missing = append(e.missing, name)
		}
	}
	if len(e.missing) > 0 {
		slog.Error("voice model artifacts missing, engine will stay not loaded",
			"dir", e.cfg.ModelDir, "missing", e.missing)
		return
	}

	e.loaded = true
	slog.Info("voice model artifacts located", "dir", e.cfg.ModelDir, "runtime", e.cfg.RuntimeURL)
}

func (e *Engine) IsReady() bool { return e.loaded }

func (e *Engine) MissingArtifacts() []string { return e.missing }

type conditioningRequest struct {
	AudioPath string `json:"audio_path"`
}

func (e *Engine) DeriveConditioning(ctx context.Context, referenceAudioPath string) (*engine.ConditioningLatents, error) {
	if !e.loaded {
		return nil, engine.ErrNotLoaded
	}
	if _, err := os.Stat(referenceAudioPath); err != nil {
		return nil, fmt.Errorf("%w: %s", engine.ErrSpeakerNotFound, referenceAudioPath)
	}

	var latents engine.ConditioningLatents
	err := e.post(ctx, "/conditioning", conditioningRequest{AudioPath: referenceAudioPath}, &latents)
	if err != nil {
		return nil, fmt.Errorf("derive conditioning latents from %s: %w", filepath.Base(referenceAudioPath), err)
	}
	return &latents, nil
}

type synthesizeRequest struct {
	Text     string                      `json:"text"`
	Language string                      `json:"language"`
	Latents  *engine.ConditioningLatents `json:"latents"`
	engine.InferenceParams
}

type synthesizeResponse struct {
	Wav        []float32 `json:"wav"`
	SampleRate int       `json:"sample_rate"`
}

func (e *Engine) SynthesizeSegment(ctx context.Context, req engine.SegmentRequest) (*engine.SegmentAudio, error) {
	if !e.loaded {
		return nil, engine.ErrNotLoaded
	}

	var resp synthesizeResponse
	err := e.post(ctx, "/synthesize", synthesizeRequest{
		Text:            req.Text,
		Language:        req.Language,
		Latents:         req.Latents,
		InferenceParams: req.Params,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("segment inference: %w", err)
	}

	return &engine.SegmentAudio{Samples: resp.Wav, SampleRate: resp.SampleRate}, nil
}

// ReleaseTransientMemory asks the runtime to drop per-inference accelerator
// allocations. Failures are logged, never propagated: the release is
// best-effort cleanup on paths that may already be failing.
func (e *Engine) ReleaseTransientMemory(ctx context.Context) {
	if !e.loaded {
		return
	}
	if err := e.post(ctx, "/cache/clear", struct{}{}, nil); err != nil {
		slog.Warn("release transient model memory failed", "error", err)
	}
}

func (e *Engine) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.RuntimeURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("runtime call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("runtime call %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(detail))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode runtime response for %s: %w", path, err)
	}
	return nil
}
