// Package pipeline turns one audio recording into a speaker-attributed
// transcript. A run decodes the audio, transcribes it, force-aligns words
// onto the timeline, diarizes speaker turns, merges words with speakers,
// restores punctuation, assembles sentences, and exports the artifacts.
// Stages run strictly sequentially: each model-bearing stage claims the
// accelerator for itself and releases it before the next stage starts, so
// peak memory stays bounded by the largest single model.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/psdwizzard/Meeting-Buddy-Pro/internal/export"
	"github.com/psdwizzard/Meeting-Buddy-Pro/internal/lang"
	"github.com/psdwizzard/Meeting-Buddy-Pro/internal/observe"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/audio"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/align"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/asr"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/diarize"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/punct"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/types"
)

// Stage names used for spans, metrics, and error context.
const (
	stageDecode     = "decode"
	stageTranscribe = "transcribe"
	stageAlign      = "align"
	stageDiarize    = "diarize"
	stagePunctuate  = "punctuate"
	stageExport     = "export"
)

// Deps carries the collaborators a Pipeline needs.
type Deps struct {
	// ASR recognises speech. Required.
	ASR asr.Provider

	// Aligner maps words onto the audio timeline. Required.
	Aligner align.Provider

	// Diarizer segments the audio into speaker turns. Required.
	Diarizer diarize.Provider

	// Punctuator restores sentence punctuation. Required; restoration
	// failures degrade to a warning at run time.
	Punctuator punct.Provider

	// Decode overrides waveform decoding. Defaults to audio.DecodeFile.
	Decode func(ctx context.Context, path string) (*audio.Waveform, error)

	// Metrics defaults to the process-wide instruments when nil.
	Metrics *observe.Metrics

	// Sink, when non-nil, receives every completed result. Persistence
	// failures degrade to a warning.
	Sink RunSink
}

// Pipeline executes diarization runs. Safe for use by a single run at a
// time; runs themselves are strictly sequential inside.
type Pipeline struct {
	asr        asr.Provider
	aligner    align.Provider
	diarizer   diarize.Provider
	punctuator punct.Provider
	decode     func(ctx context.Context, path string) (*audio.Waveform, error)

	metrics *observe.Metrics
	sink    RunSink

	anchor AnchorPolicy
}

// New validates deps and builds a Pipeline.
func New(deps Deps) (*Pipeline, error) {
	switch {
	case deps.ASR == nil:
		return nil, errors.New("pipeline: ASR provider must not be nil")
	case deps.Aligner == nil:
		return nil, errors.New("pipeline: alignment provider must not be nil")
	case deps.Diarizer == nil:
		return nil, errors.New("pipeline: diarization provider must not be nil")
	case deps.Punctuator == nil:
		return nil, errors.New("pipeline: punctuation provider must not be nil")
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	decode := deps.Decode
	if decode == nil {
		decode = audio.DecodeFile
	}
	return &Pipeline{
		asr:        deps.ASR,
		aligner:    deps.Aligner,
		diarizer:   deps.Diarizer,
		punctuator: deps.Punctuator,
		decode:     decode,
		metrics:    metrics,
		sink:       deps.Sink,
		anchor:     AnchorStart,
	}, nil
}

// Request describes one diarization run.
type Request struct {
	// MeetingID identifies the recording; a fresh UUID is generated when
	// empty.
	MeetingID string

	// AudioPath is the input recording in any format ffmpeg can decode.
	AudioPath string

	// OutDir receives the exported artifacts.
	OutDir string

	// Device is the requested device; the pipeline resolves it against the
	// host (see ResolveDevice).
	Device string

	// WhisperModel names the recognition model, e.g. "medium.en".
	WhisperModel string

	// BatchSize is the recognition and emission batching width. Zero
	// selects the VAD-gated long-form mode instead of batching.
	BatchSize int

	// Language optionally pins the spoken language instead of
	// auto-detection.
	Language string

	// SuppressNumerals transcribes numbers as words.
	SuppressNumerals bool

	// NoStem disables vocal separation before recognition.
	NoStem bool

	// MinSpeakers and MaxSpeakers bound the speaker count when > 0.
	MinSpeakers int
	MaxSpeakers int

	// PunctModel overrides the punctuation model identifier.
	PunctModel string

	// ScratchDir, when set, is removed once the run finishes.
	ScratchDir string
}

// Run executes the full pipeline for req. On success the returned Result has
// already been exported under req.OutDir and handed to the sink. On error no
// artifact of the failed run is reported as success; the caller owns turning
// the error into the failure payload.
func (p *Pipeline) Run(ctx context.Context, req Request) (res *Result, err error) {
	ctx, span := observe.StartSpan(ctx, "diarization.run")
	defer span.End()
	defer func() {
		status := StatusDone
		if err != nil {
			status = StatusFailed
		}
		p.metrics.RecordRun(ctx, status)
	}()
	defer p.cleanupScratch(ctx, req.ScratchDir)

	if req.MeetingID == "" {
		req.MeetingID = uuid.NewString()
	}

	langHint, err := lang.Resolve(req.Language, req.WhisperModel)
	if err != nil {
		return nil, err
	}

	wave, err := timeStage(ctx, stageDecode, p.metrics, func(ctx context.Context) (*audio.Waveform, error) {
		return p.decode(ctx, req.AudioPath)
	})
	if err != nil {
		return nil, err
	}
	p.metrics.AudioDuration.Record(ctx, wave.DurationSeconds())

	device := ResolveDevice(req.Device)
	observe.Logger(ctx).Info("starting diarization run",
		"meeting_id", req.MeetingID,
		"device", device,
		"model", req.WhisperModel,
		"audio_seconds", wave.DurationSeconds(),
	)
	if !req.NoStem {
		observe.Logger(ctx).Debug("vocal separation unavailable in this build, using the original mix")
	}

	trans, err := runStage(ctx, stageTranscribe, p.metrics,
		func(ctx context.Context) (asr.Model, error) {
			return p.asr.Load(ctx, asr.ModelSpec{
				Name:    req.WhisperModel,
				Device:  device,
				Compute: ASRCompute(device),
			})
		},
		func(ctx context.Context, m asr.Model) (*asr.Result, error) {
			return m.Transcribe(ctx, wave, asr.Options{
				Language:         langHint,
				BatchSize:        req.BatchSize,
				SuppressNumerals: req.SuppressNumerals,
			})
		})
	if err != nil {
		return nil, err
	}
	language := trans.Language
	transcript := trans.Transcript()

	words, err := runStage(ctx, stageAlign, p.metrics,
		func(ctx context.Context) (align.Model, error) {
			return p.aligner.Load(ctx, align.ModelSpec{
				Device:  device,
				Compute: AlignCompute(device),
			})
		},
		func(ctx context.Context, m align.Model) ([]types.WordTimestamp, error) {
			em, err := m.Emit(ctx, wave, req.BatchSize)
			if err != nil {
				return nil, err
			}
			ts, err := m.Preprocess(ctx, transcript, lang.ToISO6393(language))
			if err != nil {
				return nil, err
			}
			al, err := m.Align(ctx, em, ts)
			if err != nil {
				return nil, err
			}
			ws := align.WordsFromSpans(ts, al, em.StrideMs)
			if len(ws) == 0 {
				return nil, ErrNoAlignmentSpans
			}
			return ws, nil
		})
	if err != nil {
		return nil, err
	}

	turns, err := runStage(ctx, stageDiarize, p.metrics,
		func(ctx context.Context) (diarize.Model, error) {
			return p.diarizer.Load(ctx, diarize.ModelSpec{Device: device})
		},
		func(ctx context.Context, m diarize.Model) ([]types.SpeakerTurn, error) {
			got, err := m.Diarize(ctx, wave, diarize.Options{
				MinSpeakers: req.MinSpeakers,
				MaxSpeakers: req.MaxSpeakers,
			})
			if err != nil {
				return nil, err
			}
			if len(got) == 0 {
				return nil, ErrNoSpeakerTurns
			}
			return got, nil
		})
	if err != nil {
		return nil, err
	}

	entries := AssignWordSpeakers(words, turns, p.anchor)
	entries = p.punctuate(ctx, language, req.PunctModel, entries)
	entries = RealignSpeakers(entries)

	sentences := AssembleSentences(entries)
	if len(sentences) == 0 {
		return nil, ErrNoSentences
	}

	segments, roster, stats := NormalizeSpeakers(sentences)
	p.metrics.SpeakersDetected.Record(ctx, int64(len(roster)))

	res = &Result{
		MeetingID:    req.MeetingID,
		Status:       StatusDone,
		GeneratedAt:  time.Now().UTC(),
		Device:       device,
		WhisperModel: req.WhisperModel,
		Language:     language,
		DurationMs:   durationMs(trans, wave),
		Speakers:     roster,
		Segments:     segments,
		Transcript:   strings.TrimSpace(transcript),
		Files:        export.Files(req.OutDir),
		SpeakerStats: stats,
	}

	if _, err = timeStage(ctx, stageExport, p.metrics, func(ctx context.Context) (types.ExportedFiles, error) {
		return export.Write(ctx, req.OutDir, segments, res)
	}); err != nil {
		return nil, err
	}

	if p.sink != nil {
		if serr := p.sink.SaveRun(ctx, res); serr != nil {
			observe.Logger(ctx).Warn("failed to persist run",
				"meeting_id", req.MeetingID, "error", serr)
		}
	}

	observe.Logger(ctx).Info("diarization run completed",
		"meeting_id", req.MeetingID,
		"speakers", len(roster),
		"segments", len(segments),
	)
	return res, nil
}

// punctuate restores punctuation when the detected language is covered by
// the model. This is the one stage allowed to fail: any error degrades to a
// warning and the unmodified entries flow on.
func (p *Pipeline) punctuate(ctx context.Context, language, model string, entries []types.WordSpeakerEntry) []types.WordSpeakerEntry {
	if !punct.Supported(language) {
		observe.Logger(ctx).Warn("punctuation restoration does not cover language, keeping original punctuation",
			"language", language)
		return entries
	}
	if model == "" {
		model = punct.DefaultModel
	}

	restored, err := runStage(ctx, stagePunctuate, p.metrics,
		func(ctx context.Context) (punct.Model, error) {
			return p.punctuator.Load(ctx, punct.ModelSpec{Model: model})
		},
		func(ctx context.Context, m punct.Model) ([]types.WordSpeakerEntry, error) {
			return RestorePunctuation(ctx, m, entries)
		})
	if err != nil {
		observe.Logger(ctx).Warn("punctuation restoration failed, keeping original punctuation", "error", err)
		return entries
	}
	return restored
}

// cleanupScratch removes the run's scratch directory. It runs in every
// outcome; a missing directory is fine, and removal failures are suppressed
// so they never mask the run result.
func (p *Pipeline) cleanupScratch(ctx context.Context, dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		observe.Logger(ctx).Warn("failed to remove scratch directory", "dir", dir, "error", err)
	}
}

// durationMs picks the audio duration for the payload: the ASR-reported
// duration when present, the decoded waveform duration otherwise, null when
// neither is known.
func durationMs(trans *asr.Result, wave *audio.Waveform) *int64 {
	if trans.Duration > 0 {
		ms := int64(math.Round(trans.Duration * 1000))
		return &ms
	}
	if ms := wave.DurationMs(); ms > 0 {
		return &ms
	}
	return nil
}

// timeStage wraps a modelless stage with a span and a duration sample.
func timeStage[T any](ctx context.Context, stage string, metrics *observe.Metrics, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := observe.StartStage(ctx, stage)
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.RecordStageDuration(ctx, stage, time.Since(start).Seconds())
	}()

	out, err := fn(ctx)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", stage, err)
	}
	return out, nil
}
