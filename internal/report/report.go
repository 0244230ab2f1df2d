// Package report renders the CLI's summary tables. Tables build once
// and render as fixed-width terminal output or GitHub-flavoured
// Markdown, so evaluation results can be pasted into experiment notes.
package report

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"connlab/internal/eval"
	"connlab/internal/split"
)

// Mode controls the output format.
type Mode int

const (
	ASCII    Mode = iota // fixed-width terminal tables
	Markdown             // GitHub-flavoured Markdown tables
)

// EvalSummary renders one row per evaluated prediction file, with a
// totals footer.
func EvalSummary(summaries []eval.Summary, m Mode) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"File", "Puzzles", "Avg Score", "Perfect", "Failed Extractions"})
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})

	var puzzles, perfect, failed int
	var weighted float64
	for _, s := range summaries {
		w.AppendRow(table.Row{
			s.File, s.TotalPuzzles, fmt.Sprintf("%.4f", s.AverageScore), s.PerfectPuzzles, s.FailedExtractions,
		})
		puzzles += s.TotalPuzzles
		perfect += s.PerfectPuzzles
		failed += s.FailedExtractions
		weighted += s.AverageScore * float64(s.TotalPuzzles)
	}
	avg := 0.0
	if puzzles > 0 {
		avg = weighted / float64(puzzles)
	}
	w.AppendFooter(table.Row{"total", puzzles, fmt.Sprintf("%.4f", avg), perfect, failed})
	return render(w, m)
}

// PartitionSummary renders the partition sizes of each puzzle source.
func PartitionSummary(sources map[string]split.Partitions, order []string, m Mode) string {
	w := newWriter(m)
	w.AppendHeader(table.Row{"Source", "Test", "Validation", "Train"})
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	for _, name := range order {
		p := sources[name]
		w.AppendRow(table.Row{name, p.Test.Len(), p.Validation.Len(), p.Train.Len()})
	}
	return render(w, m)
}

func newWriter(m Mode) table.Writer {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return w
}

func render(w table.Writer, m Mode) string {
	if m == Markdown {
		return w.RenderMarkdown()
	}
	return w.Render()
}
