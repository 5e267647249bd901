package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"utf8fix/lib/csvrepair"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func renderResults(w io.Writer, results []csvrepair.FileResult, written bool) {
	t := newTable(w)
	header := table.Row{"file", "rounds", "smells", "dropped"}
	if written {
		header = append(header, "output")
	}
	t.AppendHeader(header)

	for _, res := range results {
		r := res.Report
		row := table.Row{
			filepath.Base(res.Input),
			r.Rounds,
			fmt.Sprintf("%d -> %d", r.SmellsBefore, r.SmellsAfter),
			r.DroppedRunes + r.DroppedBytes,
		}
		if written {
			row = append(row, filepath.Base(res.Output))
		}
		t.AppendRow(row)
	}
	t.Render()
}
