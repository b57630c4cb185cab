package main

import (
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"companion/internal/domain"
)

const transcriptContentWidth = 72

// renderTranscript prints entries newest first, as the session returns them.
// Multi-part image references are shown on one line separated by " | ".
func renderTranscript(entries []domain.TranscriptEntry) string {
	if len(entries) == 0 {
		return "Transcript is empty"
	}

	tw := newTableWriter()
	tw.AppendHeader(table.Row{"#", "Time", "From", "Kind", "Content"})
	for _, entry := range entries {
		tw.AppendRow(table.Row{
			strconv.FormatUint(entry.Seq, 10),
			entry.At.Format("15:04:05"),
			originLabel(entry.Origin),
			string(entry.Kind),
			strings.ReplaceAll(entry.Content, "\n", " | "),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight, AlignHeader: text.AlignRight},
		{Name: "Content", WidthMax: transcriptContentWidth},
	})
	return tw.Render()
}

func renderStatus(status domain.Status) string {
	target := status.Target
	if target == "" {
		target = "-"
	}

	tw := newTableWriter()
	tw.AppendRows([]table.Row{
		{"State", stateMessage(status.State)},
		{"Target", target},
		{"Connected", yesNo(status.Connected)},
		{"Logon eligible", yesNo(status.Eligible)},
		{"Authenticated", yesNo(status.Authenticated)},
	})
	return tw.Render()
}

func newTableWriter() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	return tw
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
