// Command diarize turns one recorded meeting into a speaker-attributed
// transcript and its export artifacts.
//
// The binary drives the whole run: it decodes the recording, transcribes it,
// aligns every word onto the audio timeline, assigns speaker turns, restores
// punctuation and writes the transcript, SRT and CSV artifacts under --out.
// Stdout carries exactly one JSON line — the result payload on success, a
// {"status":"failed"} payload on error — so a supervising process can parse
// the outcome without scraping logs. Everything else goes to stderr.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/psdwizzard/Meeting-Buddy-Pro/internal/config"
	"github.com/psdwizzard/Meeting-Buddy-Pro/internal/health"
	"github.com/psdwizzard/Meeting-Buddy-Pro/internal/observe"
	"github.com/psdwizzard/Meeting-Buddy-Pro/internal/pipeline"
	"github.com/psdwizzard/Meeting-Buddy-Pro/internal/store"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/align/ctcalign"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/asr"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/asr/whisper"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/diarize/msdd"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/provider/punct/fullstop"
)

func main() {
	os.Exit(run())
}

// errReported marks errors already surfaced through the failure payload on
// stdout; run must not print them a second time.
var errReported = errors.New("already reported")

func run() int {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "diarize: %v\n", err)
		}
		return 1
	}
	return 0
}

// ── Command ───────────────────────────────────────────────────────────────────

// options collects every CLI flag. Flags that mirror a config field only
// override it when set on the command line, so their zero values here are
// placeholders, not defaults.
type options struct {
	configPath  string
	metricsAddr string

	meeting string
	audio   string
	outDir  string

	device           string
	whisperModel     string
	batchSize        int
	language         string
	noStem           bool
	suppressNumerals bool
	minSpeakers      int
	maxSpeakers      int
	logLevel         string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "diarize --meeting ID --audio FILE --out DIR",
		Short: "Turn a meeting recording into a speaker-attributed transcript",
		Long: `diarize runs the full diarization pipeline for one recorded meeting:
transcription, word-level alignment, speaker assignment, punctuation
restoration and artifact export.

On success the result payload is printed to stdout as a single JSON line and
mirrored to <out>/diarization.json next to the transcript, SRT and CSV
artifacts. On failure stdout carries a {"status":"failed","error":...} line
and the exit code is 1. Logs always go to stderr.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := runDiarization(cmd, opts); err != nil {
				slog.Error("diarization failed", "err", err)
				writeFailure(os.Stdout, err)
				return errReported
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.meeting, "meeting", "", "meeting identifier for this run")
	f.StringVar(&opts.audio, "audio", "", "path to the recorded audio file")
	f.StringVar(&opts.outDir, "out", "", "directory receiving the exported artifacts")
	f.StringVar(&opts.configPath, "config", "", "path to a YAML configuration file")
	f.StringVar(&opts.device, "device", "", `compute device: "auto", "cuda", "cuda:N" or "cpu"`)
	f.StringVar(&opts.whisperModel, "whisper-model", "", `Whisper checkpoint to transcribe with, e.g. "medium.en"`)
	f.IntVar(&opts.batchSize, "batch-size", 0, "inference batch size; 0 selects the long-form fallback")
	f.StringVar(&opts.language, "language", "", `spoken language hint, e.g. "en"; empty auto-detects`)
	f.BoolVar(&opts.noStem, "no-stem", false, "skip vocal separation and process the original mix")
	f.BoolVar(&opts.suppressNumerals, "suppress-numerals", false, "transcribe numbers as words")
	f.IntVar(&opts.minSpeakers, "min-speakers", 0, "lower bound on the speaker count; 0 leaves it open")
	f.IntVar(&opts.maxSpeakers, "max-speakers", 0, "upper bound on the speaker count; 0 leaves it open")
	f.StringVar(&opts.logLevel, "log-level", "", "log verbosity: debug, info, warn or error")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "listen address for the metrics and health endpoints")

	_ = cmd.MarkFlagRequired("meeting")
	_ = cmd.MarkFlagRequired("audio")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

// ── Run ───────────────────────────────────────────────────────────────────────

func runDiarization(cmd *cobra.Command, opts *options) error {
	// ── Configuration ─────────────────────────────────────────────────────────
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, cmd, opts); err != nil {
		return err
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel.Level(),
	}))
	slog.SetDefault(logger)

	slog.Info("diarize starting",
		"meeting_id", opts.meeting,
		"audio", opts.audio,
		"out", opts.outDir,
		"device", cfg.Run.Device,
		"whisper_model", cfg.Run.WhisperModel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	// ── Provider wiring ───────────────────────────────────────────────────────
	asrProvider, err := buildASR(cfg)
	if err != nil {
		return fmt.Errorf("create asr provider %q: %w", cfg.ASR.Backend, err)
	}
	aligner, err := ctcalign.New(cfg.Align.URL)
	if err != nil {
		return fmt.Errorf("create alignment provider: %w", err)
	}
	diarizer, err := msdd.New(cfg.Diarize.URL)
	if err != nil {
		return fmt.Errorf("create diarization provider: %w", err)
	}
	punctuator, err := fullstop.New(cfg.Punct.URL)
	if err != nil {
		return fmt.Errorf("create punctuation provider: %w", err)
	}

	deps := pipeline.Deps{
		ASR:        asrProvider,
		Aligner:    aligner,
		Diarizer:   diarizer,
		Punctuator: punctuator,
	}

	checks := []health.Checker{
		health.ServiceChecker("align", cfg.Align.URL, nil),
		health.ServiceChecker("diarize", cfg.Diarize.URL, nil),
		health.ServiceChecker("punctuation", cfg.Punct.URL, nil),
	}
	if cfg.ASR.Backend == config.BackendService {
		checks = append(checks, health.ServiceChecker("asr", cfg.ASR.URL, nil))
	}

	// ── Result store (optional) ───────────────────────────────────────────────
	// The exported files are the primary artifact; a missing database must not
	// fail the run.
	if cfg.Store.PostgresDSN != "" {
		st, err := store.New(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			slog.Warn("result store unavailable, continuing without persistence", "err", err)
		} else {
			defer st.Close()
			deps.Sink = st
			checks = append(checks, health.Checker{Name: "store", Check: st.Ping})
		}
	}

	// ── Metrics listener (optional) ───────────────────────────────────────────
	if cfg.Metrics.ListenAddr != "" {
		ms := observe.NewMetricsServer(cfg.Metrics.ListenAddr)
		h := health.New(checks...)
		ms.HandleFunc("GET /healthz", h.Healthz)
		ms.HandleFunc("GET /readyz", h.Readyz)
		ms.Start()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := ms.Shutdown(sctx); err != nil {
				slog.Warn("metrics server shutdown", "err", err)
			}
		}()
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	p, err := pipeline.New(deps)
	if err != nil {
		return err
	}

	res, err := p.Run(ctx, pipeline.Request{
		MeetingID:        opts.meeting,
		AudioPath:        opts.audio,
		OutDir:           opts.outDir,
		Device:           cfg.Run.Device,
		WhisperModel:     cfg.Run.WhisperModel,
		BatchSize:        cfg.Run.BatchSize,
		Language:         cfg.Run.Language,
		SuppressNumerals: cfg.Run.SuppressNumerals,
		NoStem:           cfg.Run.NoStem,
		MinSpeakers:      cfg.Run.MinSpeakers,
		MaxSpeakers:      cfg.Run.MaxSpeakers,
		PunctModel:       cfg.Punct.Model,
		ScratchDir:       cfg.ScratchDir,
	})
	if err != nil {
		return err
	}

	return json.NewEncoder(os.Stdout).Encode(res)
}

// ── Provider wiring ───────────────────────────────────────────────────────────

func buildASR(cfg *config.Config) (asr.Provider, error) {
	switch cfg.ASR.Backend {
	case config.BackendNative:
		return whisper.NewNative(cfg.ASR.ModelPath)
	default:
		return whisper.New(cfg.ASR.URL)
	}
}

// ── Configuration ─────────────────────────────────────────────────────────────

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.Default(), nil
}

// applyFlags overlays flags that were set on the command line, then
// re-validates. Precedence: flags beat the config file, which beats the
// DIARIZATION_* environment, which beats the built-ins.
func applyFlags(cfg *config.Config, cmd *cobra.Command, opts *options) error {
	f := cmd.Flags()
	if f.Changed("log-level") {
		level := config.LogLevel(strings.ToLower(opts.logLevel))
		if !level.IsValid() {
			return fmt.Errorf("invalid --log-level %q", opts.logLevel)
		}
		cfg.LogLevel = level
	}
	if f.Changed("device") {
		cfg.Run.Device = opts.device
	}
	if f.Changed("whisper-model") {
		cfg.Run.WhisperModel = opts.whisperModel
	}
	if f.Changed("batch-size") {
		cfg.Run.BatchSize = opts.batchSize
	}
	if f.Changed("language") {
		cfg.Run.Language = opts.language
	}
	if f.Changed("no-stem") {
		cfg.Run.NoStem = opts.noStem
	}
	if f.Changed("suppress-numerals") {
		cfg.Run.SuppressNumerals = opts.suppressNumerals
	}
	if f.Changed("min-speakers") {
		cfg.Run.MinSpeakers = opts.minSpeakers
	}
	if f.Changed("max-speakers") {
		cfg.Run.MaxSpeakers = opts.maxSpeakers
	}
	if f.Changed("metrics-addr") {
		cfg.Metrics.ListenAddr = opts.metricsAddr
	}
	return config.Validate(cfg)
}

// ── Failure payload ───────────────────────────────────────────────────────────

// writeFailure prints the failure payload for err to w as one JSON line.
func writeFailure(w io.Writer, err error) {
	if encErr := json.NewEncoder(w).Encode(pipeline.NewFailure(err)); encErr != nil {
		slog.Error("write failure payload", "err", encErr)
	}
}
