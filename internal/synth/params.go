package synth

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/voxserve/voxserve/internal/audio"
	"github.com/voxserve/voxserve/internal/engine"
)

// Form-parameter parsing for the two override sets. Every field has an
// explicit type and default; a value that fails to parse falls back to the
// default instead of erroring.

// ParseModelParams resolves the model inference overrides from a flat form
// map.
func ParseModelParams(form map[string]string) engine.InferenceParams {
	p := engine.DefaultInferenceParams()
	p.Temperature = parseFloat(form, "temperature", p.Temperature)
	p.LengthPenalty = parseFloat(form, "length_penalty", p.LengthPenalty)
	p.RepetitionPenalty = parseFloat(form, "repetition_penalty", p.RepetitionPenalty)
	p.TopK = parseInt(form, "top_k", p.TopK)
	p.TopP = parseFloat(form, "top_p", p.TopP)
	p.Speed = parseFloat(form, "speed", p.Speed)
	p.EnableTextSplitting = ParseBool(form, "enable_text_splitting", p.EnableTextSplitting)
	return p
}

// ParsePostprocParams resolves the post-processing overrides from a flat form
// map.
func ParsePostprocParams(form map[string]string) audio.Params {
	p := audio.DefaultParams()
	p.TrimSilence = ParseBool(form, "trim_silence", p.TrimSilence)
	p.TrimTopDB = parseInt(form, "trim_top_db", p.TrimTopDB)
	p.ReduceNoise = ParseBool(form, "reduce_noise", p.ReduceNoise)
	if v, ok := form["denoise_method"]; ok {
		p.DenoiseMethod = v
	}
	p.ApplyCompressor = ParseBool(form, "apply_compressor", p.ApplyCompressor)
	p.CompThresholdDB = parseFloat(form, "comp_threshold_db", p.CompThresholdDB)
	p.CompRatio = parseFloat(form, "comp_ratio", p.CompRatio)
	p.CompAttackMs = parseFloat(form, "comp_attack_ms", p.CompAttackMs)
	p.CompReleaseMs = parseFloat(form, "comp_release_ms", p.CompReleaseMs)
	p.ApplyEQ = ParseBool(form, "apply_eq", p.ApplyEQ)
	p.EQPeakHz = parseFloat(form, "eq_peak_voice_hz", p.EQPeakHz)
	p.EQPeakQ = parseFloat(form, "eq_peak_voice_q", p.EQPeakQ)
	p.EQPeakGainDB = parseFloat(form, "eq_peak_voice_gain_db", p.EQPeakGainDB)
	p.NormalizeVolume = ParseBool(form, "normalize_volume", p.NormalizeVolume)
	p.NormTargetLimiterDB = parseFloat(form, "norm_target_limiter_db", p.NormTargetLimiterDB)
	return p
}

// ParseBool reads a boolean form value; "true", "1", "yes" and "on" count as
// true, anything else as false. Absent keys fall back to the default.
func ParseBool(form map[string]string, key string, fallback bool) bool {
	v, ok := form[key]
	if !ok {
		return fallback
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

func parseFloat(form map[string]string, key string, fallback float64) float64 {
	v, ok := form[key]
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid float parameter, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return f
}

func parseInt(form map[string]string, key string, fallback int) int {
	v, ok := form[key]
	if !ok {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid int parameter, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return i
}
