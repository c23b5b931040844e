package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/mergestat/timediff"
)

// ActionStats counts the outcomes of one engine phase. Per-item failures are
// folded in here instead of aborting the phase.
type ActionStats struct {
	Indexed int
	Skipped int
	Synced  int
	Ignored int
	Deleted int
	Fixed   int
	Failed  int
}

// Total returns the number of processed items.
func (s ActionStats) Total() int {
	return s.Indexed + s.Skipped + s.Synced + s.Ignored + s.Deleted + s.Fixed + s.Failed
}

// Add folds another stats value into this one.
func (s *ActionStats) Add(other ActionStats) {
	s.Indexed += other.Indexed
	s.Skipped += other.Skipped
	s.Synced += other.Synced
	s.Ignored += other.Ignored
	s.Deleted += other.Deleted
	s.Fixed += other.Fixed
	s.Failed += other.Failed
}

// Empty reports whether nothing was processed.
func (s ActionStats) Empty() bool {
	return s.Total() == 0
}

func (s ActionStats) String() string {
	parts := make([]string, 0, 7)
	appendPart := func(name string, v int) {
		if v > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", name, v))
		}
	}
	appendPart("indexed", s.Indexed)
	appendPart("synced", s.Synced)
	appendPart("skipped", s.Skipped)
	appendPart("ignored", s.Ignored)
	appendPart("deleted", s.Deleted)
	appendPart("fixed", s.Fixed)
	appendPart("failed", s.Failed)
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// batchProgress returns a completion percentage and a humanized ETA for a
// long-running batch, based on the throughput so far.
func batchProgress(start time.Time, processed, total int) (string, string) {
	if total <= 0 || processed <= 0 {
		return "0%", "unknown"
	}

	percentage := fmt.Sprintf("%.2f%%", float64(processed)/float64(total)*100)

	elapsed := time.Since(start)
	remaining := time.Duration(float64(elapsed) / float64(processed) * float64(total-processed))
	eta := timediff.TimeDiff(time.Now().Add(remaining))

	return percentage, eta
}
