// Package engine defines the call contract for the voice-cloning model. The
// neural network itself is opaque: implementations own exactly one loaded
// model instance per process and expose conditioning-latent extraction and
// per-segment inference against it.
package engine

import (
	"context"
	"errors"
)

var (
	// ErrNotLoaded is returned by any inference call made before the model
	// loaded successfully. The condition is permanent for the process.
	ErrNotLoaded = errors.New("voice model is not loaded")

	// ErrSpeakerNotFound is returned when the reference-audio path does not
	// exist.
	ErrSpeakerNotFound = errors.New("speaker reference audio not found")
)

// ConditioningLatents is the fixed-size representation of a reference voice,
// derived once per request and reused across all of its segments. Latents are
// never cached across requests: re-deriving every call trades latency for
// immunity to stale-speaker bugs.
type ConditioningLatents struct {
	GPTCondLatent    []float32 `json:"gpt_cond_latent"`
	SpeakerEmbedding []float32 `json:"speaker_embedding"`
}

// InferenceParams is the per-call parameter set forwarded verbatim to the
// model for every segment.
type InferenceParams struct {
	Temperature         float64 `json:"temperature"`
	LengthPenalty       float64 `json:"length_penalty"`
	RepetitionPenalty   float64 `json:"repetition_penalty"`
	TopK                int     `json:"top_k"`
	TopP                float64 `json:"top_p"`
	Speed               float64 `json:"speed"`
	EnableTextSplitting bool    `json:"enable_text_splitting"`
}

// DefaultInferenceParams returns the tuned defaults for the voice-cloning
// model.
func DefaultInferenceParams() InferenceParams {
	return InferenceParams{
		Temperature:         0.3,
		LengthPenalty:       1.0,
		RepetitionPenalty:   10.0,
		TopK:                30,
		TopP:                0.85,
		Speed:               1.0,
		EnableTextSplitting: true,
	}
}

// SegmentRequest is one sentence-level inference call.
type SegmentRequest struct {
	Text     string
	Language string
	Latents  *ConditioningLatents
	Params   InferenceParams
}

// SegmentAudio is the raw waveform produced for one segment, mono float32 at
// the model's native sample rate.
type SegmentAudio struct {
	Samples    []float32
	SampleRate int
}

// Engine is the voice model adapter. Implementations do not serialize
// concurrent calls; the orchestrator guarantees one synthesis at a time per
// process.
type Engine interface {
	// IsReady reports whether a usable model is loaded.
	IsReady() bool

	// MissingArtifacts lists required model files that were absent at load
	// time. Empty when the model loaded, or failed for another reason.
	MissingArtifacts() []string

	// DeriveConditioning extracts conditioning latents from a reference
	// audio file.
	DeriveConditioning(ctx context.Context, referenceAudioPath string) (*ConditioningLatents, error)

	// SynthesizeSegment runs one sentence through the model.
	SynthesizeSegment(ctx context.Context, req SegmentRequest) (*SegmentAudio, error)

	// ReleaseTransientMemory frees per-inference accelerator allocations.
	// Called after every segment regardless of outcome to bound peak memory.
	ReleaseTransientMemory(ctx context.Context)
}
