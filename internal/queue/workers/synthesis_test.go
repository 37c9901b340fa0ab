package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/voxserve/voxserve/internal/config"
	"github.com/voxserve/voxserve/internal/engine"
	"github.com/voxserve/voxserve/internal/queue"
	"github.com/voxserve/voxserve/internal/synth"
)

func workerConfig(t *testing.T, modelDir string) *config.Config {
	t.Helper()
	return &config.Config{
		Model: config.ModelConfig{
			Dir:            modelDir,
			DefaultSpeaker: filepath.Join(modelDir, "vi_sample.wav"),
			RuntimeURL:     "http://127.0.0.1:1",
			RuntimeTimeout: time.Second,
			SampleRate:     24000,
		},
		Output: config.OutputConfig{Dir: t.TempDir()},
		Worker: config.WorkerConfig{
			Concurrency: 1,
			TaskTimeout: 10 * time.Minute,
			SoftTimeout: 9 * time.Minute,
			MaxRetry:    2,
		},
	}
}

// writeModelArtifacts makes the engine's load attempt succeed; inference
// would still fail, but these tests never get that far.
func writeModelArtifacts(t *testing.T, dir string) {
	t.Helper()
	for _, name := range []string{"model.pth", "config.json", "vocab.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
}

func synthesisTask(t *testing.T, payload queue.SynthesisPayload) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(queue.TypeSynthesisGenerate, data)
}

func TestProcessTaskKeepsUploadedSpeakerOnRetryableFailure(t *testing.T) {
	t.Parallel()

	// Empty model dir: the engine never becomes ready, which is an
	// environment failure the broker will redeliver.
	w := NewSynthesisWorker(workerConfig(t, t.TempDir()))

	speaker := filepath.Join(t.TempDir(), "voice.wav")
	require.NoError(t, os.WriteFile(speaker, []byte("fake-wav"), 0o644))

	err := w.ProcessTask(context.Background(), synthesisTask(t, queue.SynthesisPayload{
		Text:            "Xin chào các bạn nhé.",
		Language:        "vi",
		SpeakerPath:     speaker,
		UploadedSpeaker: true,
	}))
	require.ErrorIs(t, err, synth.ErrModelNotReady)
	require.NotErrorIs(t, err, asynq.SkipRetry)

	// The redelivered attempt still needs the upload.
	_, statErr := os.Stat(speaker)
	require.NoError(t, statErr, "uploaded speaker must survive a retryable failure")
}

func TestProcessTaskRemovesUploadedSpeakerOnTerminalFailure(t *testing.T) {
	t.Parallel()

	modelDir := t.TempDir()
	writeModelArtifacts(t, modelDir)
	w := NewSynthesisWorker(workerConfig(t, modelDir))

	speaker := filepath.Join(t.TempDir(), "voice.wav")
	require.NoError(t, os.WriteFile(speaker, []byte("fake-wav"), 0o644))

	// An unsupported language fails identically on every delivery.
	err := w.ProcessTask(context.Background(), synthesisTask(t, queue.SynthesisPayload{
		Text:            "some text to synthesize",
		Language:        "xx",
		SpeakerPath:     speaker,
		UploadedSpeaker: true,
	}))
	require.ErrorIs(t, err, asynq.SkipRetry)

	_, statErr := os.Stat(speaker)
	require.ErrorIs(t, statErr, os.ErrNotExist, "terminally failed job must release its upload")
}

func TestJobResolved(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	require.True(t, jobResolved(ctx, nil))
	require.True(t, jobResolved(ctx, fmt.Errorf("bad input: %w", asynq.SkipRetry)))
	// Without broker retry metadata a plain error cannot be proven final.
	require.False(t, jobResolved(ctx, errors.New("redis gone")))
}

func TestIsInputFailure(t *testing.T) {
	t.Parallel()

	for _, err := range []error{
		synth.ErrUnsupportedLanguage,
		synth.ErrNoSegments,
		synth.ErrNoAudioProduced,
		synth.ErrPostprocessEmpty,
		engine.ErrSpeakerNotFound,
	} {
		require.True(t, isInputFailure(err), err.Error())
		// Wrapped errors must classify the same way.
		require.True(t, isInputFailure(fmt.Errorf("synthesis failed: %w", err)))
	}

	require.False(t, isInputFailure(errors.New("redis gone")))
	require.False(t, isInputFailure(synth.ErrModelNotReady))
	require.False(t, isInputFailure(engine.ErrNotLoaded))
}
