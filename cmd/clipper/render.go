package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"clipper/internal/jobs"
)

// renderJobResult formats a completed job's matches. A rounded table on
// terminals, tab-separated plain text when piped.
func renderJobResult(job *jobs.Job) string {
	if job.Result == nil {
		return ""
	}
	summary := job.Result.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "\n%d/%d segments matched across %d videos (%d transcribed)",
		summary.Matched, summary.Segments, summary.Videos, summary.Transcribed)
	if summary.Matched > 0 {
		fmt.Fprintf(&b, ", avg confidence %.2f", summary.AvgConfidence)
	}
	if summary.ClipsRetrieved > 0 || summary.ClipFailures > 0 {
		fmt.Fprintf(&b, ", %d clips cut, %d failed", summary.ClipsRetrieved, summary.ClipFailures)
	}
	fmt.Fprintf(&b, " in %.1fs", summary.ProcessingSeconds)
	b.WriteString("\n")

	if len(job.Result.Matches) == 0 {
		return b.String()
	}

	headers := []string{"Seg", "Video", "Span", "Confidence", "Quality", "Clip"}
	rows := make([][]string, 0, len(job.Result.Matches))
	for _, match := range job.Result.Matches {
		clip := match.ClipPath
		if match.ClipError != "" {
			clip = "error: " + match.ClipError
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", match.SegmentOrdinal),
			match.VideoID,
			fmt.Sprintf("%.1fs-%.1fs", match.Start, match.End),
			fmt.Sprintf("%.2f", match.Confidence),
			match.Quality,
			clip,
		})
	}

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
		return b.String()
	}
	b.WriteString(renderTable(headers, rows))
	return b.String()
}

func renderTable(headers []string, rows [][]string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell
		}
		tw.AppendRow(r)
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
