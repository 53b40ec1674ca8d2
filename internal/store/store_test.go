package store_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/psdwizzard/Meeting-Buddy-Pro/internal/pipeline"
	"github.com/psdwizzard/Meeting-Buddy-Pro/internal/store"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/types"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if MEETINGBUDDY_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MEETINGBUDDY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MEETINGBUDDY_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [store.Store] with a clean schema.
// It calls t.Cleanup to close the store when the test finishes.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS diarization_segments CASCADE",
		"DROP TABLE IF EXISTS diarization_runs CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("drop schema %q: %v", stmt, err)
		}
	}

	s, err := store.New(ctx, dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// sampleResult builds a two-segment result for meeting "mtg-1".
func sampleResult() *pipeline.Result {
	duration := int64(9000)
	return &pipeline.Result{
		MeetingID:    "mtg-1",
		Status:       pipeline.StatusDone,
		GeneratedAt:  time.Now().UTC().Truncate(time.Microsecond),
		Device:       "cpu",
		WhisperModel: "medium.en",
		Language:     "en",
		DurationMs:   &duration,
		Speakers: []types.SpeakerEntry{
			{Label: "Speaker 1", DisplayName: "Speaker 1", OriginalLabel: 0, Segments: 1, DurationMs: 2800},
			{Label: "Speaker 2", DisplayName: "Speaker 2", OriginalLabel: 1, Segments: 1, DurationMs: 1800},
		},
		Segments: []types.Segment{
			{ID: "seg-1", SpeakerLabel: "Speaker 1", StartMs: 0, EndMs: 2800, DurationMs: 2800, Transcript: "hello there how."},
			{ID: "seg-2", SpeakerLabel: "Speaker 2", StartMs: 3000, EndMs: 4800, DurationMs: 1800, Transcript: "are you."},
		},
		Transcript: "hello there how are you",
		SpeakerStats: map[string]types.SpeakerStat{
			"Speaker 1": {DurationMs: 2800, Segments: 1},
			"Speaker 2": {DurationMs: 1800, Segments: 1},
		},
	}
}

func TestSaveRun_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := sampleResult()

	if err := s.SaveRun(ctx, want); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.Run(ctx, "mtg-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.MeetingID != want.MeetingID || got.Status != want.Status || got.Language != want.Language {
		t.Errorf("run = %s/%s/%s, want %s/%s/%s",
			got.MeetingID, got.Status, got.Language,
			want.MeetingID, want.Status, want.Language)
	}
	if !got.GeneratedAt.Equal(want.GeneratedAt) {
		t.Errorf("generatedAt = %v, want %v", got.GeneratedAt, want.GeneratedAt)
	}
	if got.DurationMs == nil || *got.DurationMs != 9000 {
		t.Errorf("durationMs = %v, want 9000", got.DurationMs)
	}
	if len(got.Segments) != 2 || got.Segments[0] != want.Segments[0] || got.Segments[1] != want.Segments[1] {
		t.Errorf("segments = %+v, want %+v", got.Segments, want.Segments)
	}
	if got.SpeakerStats["Speaker 2"] != want.SpeakerStats["Speaker 2"] {
		t.Errorf("speaker stats = %+v, want %+v", got.SpeakerStats, want.SpeakerStats)
	}

	segs, err := s.Segments(ctx, "mtg-1")
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	if len(segs) != 2 || segs[0].ID != "seg-1" || segs[1].ID != "seg-2" {
		t.Errorf("segment rows = %+v, want seg-1 then seg-2", segs)
	}
}

func TestSaveRun_ReplacesPreviousRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, sampleResult()); err != nil {
		t.Fatalf("first SaveRun: %v", err)
	}

	revised := sampleResult()
	revised.Segments = []types.Segment{
		{ID: "seg-3", SpeakerLabel: "Speaker 1", StartMs: 0, EndMs: 4800, DurationMs: 4800, Transcript: "hello there how are you."},
	}
	revised.Transcript = "hello there how are you."
	if err := s.SaveRun(ctx, revised); err != nil {
		t.Fatalf("second SaveRun: %v", err)
	}

	segs, err := s.Segments(ctx, "mtg-1")
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	if len(segs) != 1 || segs[0].ID != "seg-3" {
		t.Errorf("segments after re-run = %+v, want only seg-3", segs)
	}

	got, err := s.Run(ctx, "mtg-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.Transcript != "hello there how are you." {
		t.Errorf("transcript = %q, want the revised run's", got.Transcript)
	}
}

func TestSaveRun_NullDuration(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res := sampleResult()
	res.DurationMs = nil
	if err := s.SaveRun(ctx, res); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.Run(ctx, "mtg-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.DurationMs != nil {
		t.Errorf("durationMs = %v, want nil", got.DurationMs)
	}
}

func TestRun_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Run(context.Background(), "never-processed"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestNew_MigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	s.Close()

	again, err := store.New(context.Background(), testDSN(t))
	if err != nil {
		t.Fatalf("second New over an existing schema: %v", err)
	}
	again.Close()
}
