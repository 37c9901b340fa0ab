// Package synth orchestrates a full synthesis request: validation, text
// normalization, segmentation, per-segment model inference with failure
// isolation, concatenation, post-processing and serialization.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxserve/voxserve/internal/audio"
	"github.com/voxserve/voxserve/internal/engine"
	"github.com/voxserve/voxserve/internal/text"
)

// MinSegmentChars is the minimum character count for a segment (and the whole
// input) to be worth synthesizing.
const MinSegmentChars = 3

var (
	ErrModelNotReady       = errors.New("voice model is not ready")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrNoSegments          = errors.New("input text contains no synthesizable content")
	ErrNoAudioProduced     = errors.New("no audio produced from any segment")
	ErrPostprocessEmpty    = errors.New("audio empty after post-processing")
)

// Request is one immutable synthesis request, fully resolved: the speaker
// path points at an existing file and the parameter sets are already typed.
type Request struct {
	Text          string
	Language      string
	SpeakerWAV    string
	NormalizeText bool
	Model         engine.InferenceParams
	Postproc      audio.Params
}

// Output is the serialized artifact of one successful synthesis. The caller
// takes ownership and decides whether to persist or stream it.
type Output struct {
	Data     []byte
	Filename string
	MimeType string
}

// SegmentOutcome classifies what happened to one segment.
type SegmentOutcome string

const (
	SegmentSynthesized SegmentOutcome = "synthesized"
	SegmentSkipped     SegmentOutcome = "skipped_too_short"
	SegmentFailed      SegmentOutcome = "failed"
)

// SegmentResult records the fate of one segment; the orchestrator inspects
// the collected results instead of aborting on the first bad segment.
type SegmentResult struct {
	Index   int
	Text    string
	Outcome SegmentOutcome
	Samples int
	Err     string
}

// Report collects per-segment results for one request.
type Report []SegmentResult

// Produced counts segments that yielded audio.
func (r Report) Produced() int {
	n := 0
	for _, res := range r {
		if res.Outcome == SegmentSynthesized {
			n++
		}
	}
	return n
}

// Synthesizer drives the voice model through a multi-stage inference sequence
// per request. It serializes nothing itself; callers must not run concurrent
// syntheses against the same engine.
type Synthesizer struct {
	engine engine.Engine
	proc   *audio.Processor
}

func New(eng engine.Engine, proc *audio.Processor) *Synthesizer {
	return &Synthesizer{engine: eng, proc: proc}
}

// Synthesize runs the whole pipeline for one request. One bad segment
// degrades output quality but does not abort the request; overall success
// requires only that at least one segment produced audio.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (*Output, Report, error) {
	if !s.engine.IsReady() {
		if missing := s.engine.MissingArtifacts(); len(missing) > 0 {
			return nil, nil, fmt.Errorf("%w: missing model files: %s", ErrModelNotReady, strings.Join(missing, ", "))
		}
		return nil, nil, ErrModelNotReady
	}
	if !text.IsSupported(req.Language) {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, req.Language)
	}

	lang := strings.ToLower(req.Language)

	input := req.Text
	if req.NormalizeText && lang == "vi" {
		input = text.NormalizeVietnamese(input)
	}

	segments := text.Segment(input, lang)
	if len(segments) == 0 {
		return nil, nil, ErrNoSegments
	}
	slog.Info("input segmented", "segments", len(segments), "language", lang)

	latents, err := s.engine.DeriveConditioning(ctx, req.SpeakerWAV)
	if err != nil {
		return nil, nil, err
	}

	report := make(Report, 0, len(segments))
	var chunks [][]float32
	for i, seg := range segments {
		result := s.synthesizeSegment(ctx, i+1, seg, lang, latents, req.Model)
		report = append(report, result.SegmentResult)
		if result.samples != nil {
			chunks = append(chunks, result.samples)
		}
	}

	if len(chunks) == 0 {
		return nil, report, fmt.Errorf("%w: %d segments, %d skipped as too short",
			ErrNoAudioProduced, len(report), countOutcome(report, SegmentSkipped))
	}

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	waveform := make([]float32, 0, total)
	for _, c := range chunks {
		waveform = append(waveform, c...)
	}
	slog.Info("segments concatenated", "produced", len(chunks), "samples", total)

	processed := s.proc.Process(waveform, req.Postproc)
	if len(processed) == 0 {
		return nil, report, ErrPostprocessEmpty
	}

	data, err := audio.EncodeWAV(processed, s.proc.SampleRate())
	if err != nil {
		return nil, report, fmt.Errorf("serialize output: %w", err)
	}

	return &Output{
		Data:     data,
		Filename: text.SafeFilename(req.Text),
		MimeType: audio.MimeTypeWAV,
	}, report, nil
}

type segmentRun struct {
	SegmentResult
	samples []float32
}

// synthesizeSegment runs one segment with failure isolation: inference errors
// are recorded, not propagated, and transient model memory is released on
// every path.
func (s *Synthesizer) synthesizeSegment(ctx context.Context, index int, seg, lang string, latents *engine.ConditioningLatents, params engine.InferenceParams) segmentRun {
	run := segmentRun{SegmentResult: SegmentResult{Index: index, Text: seg}}

	if len([]rune(seg)) < MinSegmentChars {
		slog.Warn("segment below minimum length, skipping", "index", index, "text", seg)
		run.Outcome = SegmentSkipped
		return run
	}

	defer s.engine.ReleaseTransientMemory(ctx)

	out, err := s.engine.SynthesizeSegment(ctx, engine.SegmentRequest{
		Text:     seg,
		Language: lang,
		Latents:  latents,
		Params:   params,
	})
	if err != nil {
		slog.Error("segment inference failed", "index", index, "error", err)
		run.Outcome = SegmentFailed
		run.Err = err.Error()
		return run
	}

	samples := out.Samples
	if keep := text.KeepLength(seg, lang); keep > 0 && len(samples) > keep {
		slog.Debug("truncating suspected artifact tail", "index", index, "keep", keep, "got", len(samples))
		samples = samples[:keep]
	}

	if len(samples) == 0 {
		slog.Warn("segment produced no audio", "index", index)
		run.Outcome = SegmentFailed
		run.Err = "model returned an empty waveform"
		return run
	}

	run.Outcome = SegmentSynthesized
	run.Samples = len(samples)
	run.samples = samples
	return run
}

func countOutcome(r Report, o SegmentOutcome) int {
	n := 0
	for _, res := range r {
		if res.Outcome == o {
			n++
		}
	}
	return n
}
