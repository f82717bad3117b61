package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"jumpcut/internal/progress"
	"jumpcut/internal/project"
)

// fieldTable renders the two-column field/value layout the status command
// prints.
func fieldTable(rows [][2]string) string {
	tw := newWriter()
	tw.AppendHeader(table.Row{"Field", "Value"})
	for _, row := range rows {
		tw.AppendRow(table.Row{row[0], row[1]})
	}
	return tw.Render()
}

// projectTable renders the history listing. The percent column is
// right-aligned so values line up on the decimal.
func projectTable(records []project.Record) string {
	tw := newWriter()
	tw.AppendHeader(table.Row{"ID", "Source", "Stage", "Progress", "Result"})
	for _, record := range records {
		tw.AppendRow(table.Row{
			record.ID,
			record.SourcePath,
			record.Stage,
			fmt.Sprintf("%.1f%%", record.Percent),
			resultCell(record),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func newWriter() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	return tw
}

// resultCell picks the most useful trailing column for a record: the output
// file for finished runs, the failure message for failed ones, and the
// latest progress detail otherwise.
func resultCell(record project.Record) string {
	switch record.Stage {
	case string(progress.StageComplete):
		return record.OutputPath
	case string(progress.StageError):
		return record.Error
	default:
		return record.Details
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
