// Package export renders the artifacts of a completed diarization run: the
// speaker-aware transcript, SubRip subtitles, a per-segment CSV, and the
// result payload. All four derive from the same segment list so the formats
// can never drift apart on timing or text.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/psdwizzard/Meeting-Buddy-Pro/pkg/types"
)

// Artifact file names under the run's output directory.
const (
	TranscriptName = "transcript.txt"
	SRTName        = "segments.srt"
	CSVName        = "segments.csv"
	PayloadName    = "diarization.json"
)

// csvHeader is the column order of the tabular artifact.
var csvHeader = []string{"speaker", "start_ms", "end_ms", "duration_ms", "transcript"}

// Files returns the text artifact paths under dir. Callers embed these in
// the payload before handing it to Write.
func Files(dir string) types.ExportedFiles {
	return types.ExportedFiles{
		Transcript: filepath.Join(dir, TranscriptName),
		SRT:        filepath.Join(dir, SRTName),
		CSV:        filepath.Join(dir, CSVName),
	}
}

// Write renders all four artifacts under dir, creating it if missing. The
// three text artifacts render concurrently; the payload is written last so a
// payload file on disk implies the other artifacts made it too.
func Write(ctx context.Context, dir string, segments []types.Segment, payload any) (types.ExportedFiles, error) {
	files := Files(dir)
	if err := ctx.Err(); err != nil {
		return files, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return files, fmt.Errorf("export: create output directory: %w", err)
	}

	var g errgroup.Group
	g.Go(func() error { return writeFile(files.Transcript, renderTranscript(segments)) })
	g.Go(func() error { return writeFile(files.SRT, renderSRT(segments)) })
	g.Go(func() error { return writeCSV(files.CSV, segments) })
	if err := g.Wait(); err != nil {
		return files, err
	}

	if err := writePayload(filepath.Join(dir, PayloadName), payload); err != nil {
		return files, err
	}
	return files, nil
}

// renderTranscript renders "Label: sentence sentence" blocks, one block per
// consecutive same-speaker run, separated by blank lines.
func renderTranscript(segments []types.Segment) []byte {
	var b strings.Builder
	for i, seg := range segments {
		switch {
		case i == 0:
			b.WriteString(seg.SpeakerLabel + ": ")
		case seg.SpeakerLabel != segments[i-1].SpeakerLabel:
			b.WriteString("\n\n" + seg.SpeakerLabel + ": ")
		default:
			b.WriteByte(' ')
		}
		b.WriteString(seg.Transcript)
	}
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// renderSRT renders one SubRip cue per segment. The arrow sequence is not
// representable inside cue text, so any occurrence is rewritten.
func renderSRT(segments []types.Segment) []byte {
	var b strings.Builder
	for i, seg := range segments {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteByte('\n')
		b.WriteString(srtTimestamp(seg.StartMs))
		b.WriteString(" --> ")
		b.WriteString(srtTimestamp(seg.EndMs))
		b.WriteByte('\n')
		text := strings.ReplaceAll(seg.Transcript, "-->", "->")
		b.WriteString(seg.SpeakerLabel + ": " + text + "\n\n")
	}
	return []byte(b.String())
}

// srtTimestamp formats milliseconds as the SubRip HH:MM:SS,mmm form.
func srtTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600000
	m := ms % 3600000 / 60000
	s := ms % 60000 / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

func writeCSV(path string, segments []types.Segment) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", filepath.Base(path), err)
	}

	w := csv.NewWriter(f)
	records := [][]string{csvHeader}
	for _, seg := range segments {
		records = append(records, []string{
			seg.SpeakerLabel,
			strconv.FormatInt(seg.StartMs, 10),
			strconv.FormatInt(seg.EndMs, 10),
			strconv.FormatInt(seg.DurationMs, 10),
			seg.Transcript,
		})
	}
	if err := w.WriteAll(records); err != nil {
		f.Close()
		return fmt.Errorf("export: write csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("export: close %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writePayload writes the result payload with two-space indentation, the
// form downstream tooling ingests.
func writePayload(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("export: encode payload: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", filepath.Base(path), err)
	}
	return nil
}
