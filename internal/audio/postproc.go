// Package audio post-processes synthesized waveforms and serializes them to
// a WAV container. All transforms are pure float32-slice in/out at the model
// sample rate.
package audio

import (
	"log/slog"
	"math"
	"sort"
)

// Params selects and tunes the post-processing stages. Zero values are not
// meaningful defaults; start from DefaultParams and override.
type Params struct {
	TrimSilence   bool   `json:"trim_silence"`
	TrimTopDB     int    `json:"trim_top_db"`
	ReduceNoise   bool   `json:"reduce_noise"`
	DenoiseMethod string `json:"denoise_method"`

	ApplyCompressor bool    `json:"apply_compressor"`
	CompThresholdDB float64 `json:"comp_threshold_db"`
	CompRatio       float64 `json:"comp_ratio"`
	CompAttackMs    float64 `json:"comp_attack_ms"`
	CompReleaseMs   float64 `json:"comp_release_ms"`

	ApplyEQ      bool    `json:"apply_eq"`
	EQPeakHz     float64 `json:"eq_peak_voice_hz"`
	EQPeakQ      float64 `json:"eq_peak_voice_q"`
	EQPeakGainDB float64 `json:"eq_peak_voice_gain_db"`

	NormalizeVolume     bool    `json:"normalize_volume"`
	NormTargetLimiterDB float64 `json:"norm_target_limiter_db"`
}

func DefaultParams() Params {
	return Params{
		TrimSilence:         false,
		TrimTopDB:           20,
		ReduceNoise:         false,
		DenoiseMethod:       "noisereduce",
		ApplyCompressor:     false,
		CompThresholdDB:     -16.0,
		CompRatio:           4.0,
		CompAttackMs:        5.0,
		CompReleaseMs:       100.0,
		ApplyEQ:             false,
		EQPeakHz:            1500.0,
		EQPeakQ:             1.0,
		EQPeakGainDB:        1.5,
		NormalizeVolume:     false,
		NormTargetLimiterDB: -1.0,
	}
}

// Processor applies the configured transform chain to a concatenated
// waveform.
type Processor struct {
	sampleRate int
}

func NewProcessor(sampleRate int) *Processor {
	return &Processor{sampleRate: sampleRate}
}

func (p *Processor) SampleRate() int { return p.sampleRate }

type stage struct {
	name string
	fn   func([]float32) []float32
}

// plan builds the enabled stages in their fixed order: trim before denoise
// (no point denoising silence), denoise before dynamics (the compressor must
// not amplify noise), dynamics last.
func (p *Processor) plan(params Params) []stage {
	var stages []stage

	if params.TrimSilence {
		topDB := params.TrimTopDB
		stages = append(stages, stage{"trim", func(s []float32) []float32 {
			return p.trimSilence(s, topDB)
		}})
	}

	if params.ReduceNoise {
		stages = append(stages, stage{"denoise", p.reduceNoise})
	}

	if params.ApplyCompressor || params.ApplyEQ || params.NormalizeVolume {
		effects := params
		stages = append(stages, stage{"effects", func(s []float32) []float32 {
			return p.effectsChain(s, effects)
		}})
	}

	return stages
}

// Process runs the enabled stages in order. An empty input returns
// immediately without invoking any stage, and an empty output from any stage
// short-circuits the rest: once the signal is gone, downstream stages have
// nothing meaningful to operate on.
func (p *Processor) Process(samples []float32, params Params) []float32 {
	if len(samples) == 0 {
		slog.Warn("post-processing skipped: input waveform is empty")
		return samples
	}

	current := samples
	for _, st := range p.plan(params) {
		current = st.fn(current)
		if len(current) == 0 {
			slog.Warn("waveform became empty during post-processing", "stage", st.name)
			return current
		}
	}
	return current
}

// trimSilence removes leading and trailing audio quieter than topDB decibels
// below the waveform peak.
func (p *Processor) trimSilence(samples []float32, topDB int) []float32 {
	peak := float32(0)
	for _, s := range samples {
		if a := abs32(s); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return nil
	}

	threshold := peak * float32(math.Pow(10, -float64(topDB)/20))

	start := 0
	for start < len(samples) && abs32(samples[start]) < threshold {
		start++
	}
	end := len(samples)
	for end > start && abs32(samples[end-1]) < threshold {
		end--
	}

	return samples[start:end]
}

const denoiseFrame = 1024

// reduceNoise applies a stationary spectral-gate style reduction: the noise
// floor is estimated from the quietest frames and frames near that floor are
// attenuated.
func (p *Processor) reduceNoise(samples []float32) []float32 {
	if len(samples) < denoiseFrame {
		return samples
	}

	var energies []float64
	for i := 0; i+denoiseFrame <= len(samples); i += denoiseFrame {
		energies = append(energies, rms(samples[i:i+denoiseFrame]))
	}

	floor := noiseFloor(energies)
	if floor == 0 {
		return samples
	}

	out := make([]float32, len(samples))
	copy(out, samples)
	gate := floor * 2.0
	const attenuation = 0.1

	for i := 0; i+denoiseFrame <= len(out); i += denoiseFrame {
		frame := out[i : i+denoiseFrame]
		if rms(frame) < gate {
			for j := range frame {
				frame[j] *= attenuation
			}
		}
	}
	return out
}

// noiseFloor is the mean energy of the quietest tenth of frames.
func noiseFloor(energies []float64) float64 {
	if len(energies) == 0 {
		return 0
	}
	quiet := make([]float64, len(energies))
	copy(quiet, energies)
	sort.Float64s(quiet)

	n := len(quiet) / 10
	if n == 0 {
		n = 1
	}
	sum := 0.0
	for _, e := range quiet[:n] {
		sum += e
	}
	return sum / float64(n)
}

// effectsChain applies compressor, peaking EQ and limiter in that order. An
// EQ with exactly zero gain is skipped outright: it would have no audible
// effect.
func (p *Processor) effectsChain(samples []float32, params Params) []float32 {
	out := samples

	if params.ApplyCompressor {
		out = p.compress(out, params.CompThresholdDB, params.CompRatio, params.CompAttackMs, params.CompReleaseMs)
	}
	if params.ApplyEQ && params.EQPeakGainDB != 0 {
		out = p.peakEQ(out, params.EQPeakHz, params.EQPeakQ, params.EQPeakGainDB)
	}
	if params.NormalizeVolume {
		out = p.limit(out, params.NormTargetLimiterDB)
	}

	return out
}

// compress is a feed-forward dynamics compressor with an envelope follower
// in the amplitude domain.
func (p *Processor) compress(samples []float32, thresholdDB, ratio, attackMs, releaseMs float64) []float32 {
	if ratio <= 0 {
		ratio = 1
	}
	threshold := dbToAmp(thresholdDB)
	attack := smoothingCoeff(attackMs, p.sampleRate)
	release := smoothingCoeff(releaseMs, p.sampleRate)

	out := make([]float32, len(samples))
	env := 0.0
	for i, s := range samples {
		level := float64(abs32(s))
		if level > env {
			env = attack*env + (1-attack)*level
		} else {
			env = release*env + (1-release)*level
		}

		gain := 1.0
		if env > threshold {
			// Gain reduction above threshold, scaled by the ratio.
			compressed := threshold * math.Pow(env/threshold, 1/ratio)
			gain = compressed / env
		}
		out[i] = s * float32(gain)
	}
	return out
}

// peakEQ is an RBJ biquad peaking filter.
func (p *Processor) peakEQ(samples []float32, freqHz, q, gainDB float64) []float32 {
	if freqHz <= 0 || q <= 0 || p.sampleRate <= 0 {
		return samples
	}

	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freqHz / float64(p.sampleRate)
	alpha := math.Sin(w0) / (2 * q)
	cosW0 := math.Cos(w0)

	b0 := 1 + alpha*a
	b1 := -2 * cosW0
	b2 := 1 - alpha*a
	a0 := 1 + alpha/a
	a1 := -2 * cosW0
	a2 := 1 - alpha/a

	b0, b1, b2 = b0/a0, b1/a0, b2/a0
	a1, a2 = a1/a0, a2/a0

	out := make([]float32, len(samples))
	var x1, x2, y1, y2 float64
	for i, s := range samples {
		x := float64(s)
		y := b0*x + b1*x1 + b2*x2 - a1*y1 - a2*y2
		x2, x1 = x1, x
		y2, y1 = y1, y
		out[i] = float32(y)
	}
	return out
}

// limit caps the signal at the target ceiling with a short release so the
// gain recovers smoothly.
func (p *Processor) limit(samples []float32, targetDB float64) []float32 {
	ceiling := dbToAmp(targetDB)
	release := smoothingCoeff(50.0, p.sampleRate)

	out := make([]float32, len(samples))
	gain := 1.0
	for i, s := range samples {
		level := float64(abs32(s))

		needed := 1.0
		if level*gain > ceiling && level > 0 {
			needed = ceiling / level
		}
		if needed < gain {
			gain = needed
		} else {
			gain = release*gain + (1 - release)
			if gain > 1 {
				gain = 1
			}
		}
		out[i] = s * float32(gain)
	}
	return out
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func rms(frame []float32) float64 {
	sum := 0.0
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

func dbToAmp(db float64) float64 {
	return math.Pow(10, db/20)
}

// smoothingCoeff converts a time constant in milliseconds to a one-pole
// smoothing coefficient.
func smoothingCoeff(ms float64, sampleRate int) float64 {
	if ms <= 0 || sampleRate <= 0 {
		return 0
	}
	return math.Exp(-1 / (ms / 1000 * float64(sampleRate)))
}
