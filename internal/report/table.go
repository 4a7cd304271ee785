package report

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/gitforensics/salvage/internal/score"
	"github.com/gitforensics/salvage/pkg/safeconv"
)

const shortHashLen = 8

// RenderRanking writes a per-path candidate table to w, best candidate
// first. Ages are shown relative to now, which callers pin for stable
// test output.
func RenderRanking(w io.Writer, paths []string, ranking map[string][]score.Ranked, now time.Time) {
	for _, path := range paths {
		ranked := ranking[path]
		if len(ranked) == 0 {
			color.New(color.FgRed).Fprintf(w, "%s: no candidates found\n", path)

			continue
		}

		color.New(color.FgCyan, color.Bold).Fprintf(w, "%s (%d candidates)\n", path, len(ranked))

		tbl := table.NewWriter()
		tbl.SetOutputMirror(w)
		tbl.SetStyle(table.StyleLight)
		tbl.AppendHeader(table.Row{"Rank", "Score", "Commit", "Origin", "Source", "Age", "Size", "Syntax"})

		for i, entry := range ranked {
			candidate := entry.Candidate

			age := "unknown"
			if !candidate.CommitTime.IsZero() {
				age = humanize.RelTime(candidate.CommitTime, now, "old", "ahead")
			}

			size := "?"
			syntax := "unknown"

			if candidate.Analysis != nil {
				size = humanize.Bytes(uint64(safeconv.MustIntToUint(candidate.Analysis.Bytes)))
				syntax = string(candidate.Analysis.SyntaxValid)
			}

			tbl.AppendRow(table.Row{
				rankMarker(i),
				entry.Score.Value,
				candidate.CommitIDHex[:shortHashLen],
				candidate.Origin,
				candidate.Source,
				age,
				size,
				syntax,
			})
		}

		tbl.Render()
		fmt.Fprintln(w)
	}
}

// RenderBreakdown writes one candidate's score components to w.
func RenderBreakdown(w io.Writer, entry score.Ranked) {
	color.New(color.Bold).Fprintf(w, "%s @ %s: %d\n",
		entry.Candidate.Path, entry.Candidate.CommitIDHex[:shortHashLen], entry.Score.Value)

	for _, component := range entry.Score.Components {
		marker := color.New(color.FgGreen)
		if component.Delta < 0 {
			marker = color.New(color.FgRed)
		}

		marker.Fprintf(w, "  %+d  %s\n", component.Delta, component.Reason)
	}
}

func rankMarker(index int) string {
	if index == 0 {
		return color.New(color.FgGreen, color.Bold).Sprint("★ 1")
	}

	return fmt.Sprintf("  %d", index+1)
}
