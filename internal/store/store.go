// Package store persists completed diarization runs to PostgreSQL.
//
// Persistence is optional and best-effort: the pipeline treats a failed
// SaveRun as a warning, never as a run failure. Schema setup is idempotent
// and runs on every connect.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/psdwizzard/Meeting-Buddy-Pro/internal/pipeline"
	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/types"
)

// Compile-time assertion that Store implements pipeline.RunSink.
var _ pipeline.RunSink = (*Store)(nil)

// ErrNotFound is returned when no run exists for the requested meeting.
var ErrNotFound = errors.New("store: run not found")

const ddlRuns = `
CREATE TABLE IF NOT EXISTS diarization_runs (
    meeting_id     TEXT         PRIMARY KEY,
    status         TEXT         NOT NULL,
    generated_at   TIMESTAMPTZ  NOT NULL,
    device         TEXT         NOT NULL DEFAULT '',
    whisper_model  TEXT         NOT NULL DEFAULT '',
    language       TEXT         NOT NULL DEFAULT '',
    duration_ms    BIGINT,
    transcript     TEXT         NOT NULL DEFAULT '',
    payload        JSONB        NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_diarization_runs_generated_at
    ON diarization_runs (generated_at);
`

const ddlSegments = `
CREATE TABLE IF NOT EXISTS diarization_segments (
    id            TEXT    PRIMARY KEY,
    meeting_id    TEXT    NOT NULL REFERENCES diarization_runs (meeting_id) ON DELETE CASCADE,
    position      INT     NOT NULL,
    speaker_label TEXT    NOT NULL,
    start_ms      BIGINT  NOT NULL,
    end_ms        BIGINT  NOT NULL,
    duration_ms   BIGINT  NOT NULL,
    transcript    TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_diarization_segments_meeting
    ON diarization_segments (meeting_id, position);

CREATE INDEX IF NOT EXISTS idx_diarization_segments_speaker
    ON diarization_segments (speaker_label);
`

// Store is a PostgreSQL-backed sink for diarization results. It holds a
// single [pgxpool.Pool]; all operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the PostgreSQL database at dsn, pings it, and runs
// [Migrate] so the run tables exist.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Migrate creates the run tables if they do not exist. It is idempotent and
// safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlRuns, ddlSegments} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store migrate: %w", err)
		}
	}
	return nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies the database is reachable. Used by health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SaveRun implements [pipeline.RunSink]. It upserts the run row and replaces
// its segments in one transaction, so re-processing a meeting overwrites the
// previous result rather than duplicating it.
func (s *Store) SaveRun(ctx context.Context, res *pipeline.Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("store: encode payload: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsertRun = `
		INSERT INTO diarization_runs
		    (meeting_id, status, generated_at, device, whisper_model, language, duration_ms, transcript, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (meeting_id) DO UPDATE SET
		    status        = EXCLUDED.status,
		    generated_at  = EXCLUDED.generated_at,
		    device        = EXCLUDED.device,
		    whisper_model = EXCLUDED.whisper_model,
		    language      = EXCLUDED.language,
		    duration_ms   = EXCLUDED.duration_ms,
		    transcript    = EXCLUDED.transcript,
		    payload       = EXCLUDED.payload`

	if _, err := tx.Exec(ctx, upsertRun,
		res.MeetingID,
		res.Status,
		res.GeneratedAt,
		res.Device,
		res.WhisperModel,
		res.Language,
		res.DurationMs,
		res.Transcript,
		payload,
	); err != nil {
		return fmt.Errorf("store: upsert run: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM diarization_segments WHERE meeting_id = $1`, res.MeetingID); err != nil {
		return fmt.Errorf("store: clear segments: %w", err)
	}

	const insertSegment = `
		INSERT INTO diarization_segments
		    (id, meeting_id, position, speaker_label, start_ms, end_ms, duration_ms, transcript)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for i, seg := range res.Segments {
		if _, err := tx.Exec(ctx, insertSegment,
			seg.ID,
			res.MeetingID,
			i,
			seg.SpeakerLabel,
			seg.StartMs,
			seg.EndMs,
			seg.DurationMs,
			seg.Transcript,
		); err != nil {
			return fmt.Errorf("store: insert segment %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Run returns the stored result payload for a meeting, or [ErrNotFound]
// when the meeting has never been processed.
func (s *Store) Run(ctx context.Context, meetingID string) (*pipeline.Result, error) {
	const q = `SELECT payload FROM diarization_runs WHERE meeting_id = $1`

	var payload []byte
	if err := s.pool.QueryRow(ctx, q, meetingID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: query run: %w", err)
	}

	var res pipeline.Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("store: decode payload: %w", err)
	}
	return &res, nil
}

// Segments returns the stored segments for a meeting in transcript order.
func (s *Store) Segments(ctx context.Context, meetingID string) ([]types.Segment, error) {
	const q = `
		SELECT id, speaker_label, start_ms, end_ms, duration_ms, transcript
		FROM   diarization_segments
		WHERE  meeting_id = $1
		ORDER  BY position`

	rows, err := s.pool.Query(ctx, q, meetingID)
	if err != nil {
		return nil, fmt.Errorf("store: query segments: %w", err)
	}
	segs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Segment, error) {
		var seg types.Segment
		err := row.Scan(&seg.ID, &seg.SpeakerLabel, &seg.StartMs, &seg.EndMs, &seg.DurationMs, &seg.Transcript)
		return seg, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: scan segments: %w", err)
	}
	return segs, nil
}
