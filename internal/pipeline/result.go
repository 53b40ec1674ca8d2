package pipeline

import (
	"context"
	"time"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/types"
)

// Run statuses carried in the result payload.
const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

// Result is the structured payload describing one completed run. It is
// written into the output directory alongside the exported files and printed
// to stdout as a single line.
type Result struct {
	MeetingID    string                       `json:"meetingId"`
	Status       string                       `json:"status"`
	GeneratedAt  time.Time                    `json:"generatedAt"`
	Device       string                       `json:"device"`
	WhisperModel string                       `json:"whisperModel"`
	Language     string                       `json:"language"`
	DurationMs   *int64                       `json:"durationMs"`
	Speakers     []types.SpeakerEntry         `json:"speakers"`
	Segments     []types.Segment              `json:"segments"`
	Transcript   string                       `json:"transcript"`
	Files        types.ExportedFiles          `json:"files"`
	SpeakerStats map[string]types.SpeakerStat `json:"speakerStats"`
}

// Failure is the minimal payload emitted when a run aborts. Nothing else of
// the run is reported as success.
type Failure struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// NewFailure builds the failure payload for err.
func NewFailure(err error) Failure {
	return Failure{Status: StatusFailed, Error: err.Error()}
}

// RunSink persists completed results. The pipeline treats persistence as
// best-effort: a failing sink degrades to a warning because the exported
// files on disk are the primary artifact.
type RunSink interface {
	SaveRun(ctx context.Context, res *Result) error
}
