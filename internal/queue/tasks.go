package queue

import (
	"time"

	"github.com/voxserve/voxserve/internal/audio"
	"github.com/voxserve/voxserve/internal/engine"
)

const (
	// TypeSynthesisGenerate is the asynq task type for one synthesis job.
	TypeSynthesisGenerate = "synthesis:generate"

	// QueueSynthesis is the queue all synthesis jobs go through.
	QueueSynthesis = "synthesis"
)

// SynthesisPayload carries a fully resolved request to the worker. Parameter
// sets are already typed; the worker never re-parses form values.
type SynthesisPayload struct {
	Text            string                 `json:"text"`
	Language        string                 `json:"language"`
	SpeakerPath     string                 `json:"speaker_path,omitempty"`
	UploadedSpeaker bool                   `json:"uploaded_speaker"`
	NormalizeText   bool                   `json:"normalize_text"`
	Model           engine.InferenceParams `json:"model_params"`
	Postproc        audio.Params           `json:"postproc_params"`
	SubmittedAt     time.Time              `json:"submitted_at"`
}

// SynthesisResult is the terminal payload recorded for a successful job; it
// locates the artifact in the shared output store.
type SynthesisResult struct {
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
}
