package ui

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// SummaryRow is one line of the end-of-run table
type SummaryRow struct {
	Label string
	Value interface{}
}

// PrintSummary renders the end-of-run table
func (c *Console) PrintSummary(title string, rows []SummaryRow) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending {
		c.out.Write([]byte("\n"))
		c.pending = false
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetTitle(title)
	for _, r := range rows {
		t.AppendRow(table.Row{r.Label, r.Value})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	t.SetStyle(table.StyleRounded)
	if !c.tty {
		t.Style().Color = table.ColorOptions{}
	}
	t.Render()
}
