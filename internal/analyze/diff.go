package analyze

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffStats summarizes how candidate content differs from a baseline copy.
type DiffStats struct {
	LinesInserted int `json:"lines_inserted"`
	LinesDeleted  int `json:"lines_deleted"`
	LinesEqual    int `json:"lines_equal"`
}

// Identical reports whether the two inputs were byte-identical line-wise.
func (d DiffStats) Identical() bool {
	return d.LinesInserted == 0 && d.LinesDeleted == 0
}

// Diff computes line-level difference statistics between baseline and
// candidate content. Pure, like everything else in this package.
func Diff(baseline, candidate []byte) DiffStats {
	dmp := diffmatchpatch.New()

	baselineChars, candidateChars, lines := dmp.DiffLinesToChars(string(baseline), string(candidate))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(baselineChars, candidateChars, false), lines)

	var stats DiffStats

	for _, diff := range diffs {
		lineCount := countLines([]byte(diff.Text))

		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			stats.LinesInserted += lineCount
		case diffmatchpatch.DiffDelete:
			stats.LinesDeleted += lineCount
		case diffmatchpatch.DiffEqual:
			stats.LinesEqual += lineCount
		}
	}

	return stats
}
