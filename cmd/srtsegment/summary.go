package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/maauso/srtsegment/internal/segment"
)

func renderSummary(s *segment.Summary) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("srtsegment run " + s.RunID)
	tw.AppendHeader(table.Row{"Metric", "Value"})

	tw.AppendRows([]table.Row{
		{"Captions parsed", strconv.Itoa(s.Captions)},
		{"Clips written", strconv.Itoa(s.Emitted)},
		{"Captions skipped", strconv.Itoa(s.Skipped)},
		{"Output mode", string(s.Mode)},
		{"Output", s.Target},
		{"Elapsed", s.Elapsed.Round(time.Millisecond).String()},
	})
	if len(s.Published) > 0 {
		tw.AppendRow(table.Row{"Published files", fmt.Sprint(len(s.Published))})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
