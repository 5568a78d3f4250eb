package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	statusStyle = map[string]lipgloss.Style{
		"completed":   lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true),
		"running":     lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true),
		"resuming":    lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")),
		"interrupted": lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true),
	}
)

// formatError renders err the way the process reports it.
func formatError(err error) string {
	return errorStyle.Render("error:") + " " + err.Error()
}

func renderStatus(s string) string {
	if st, ok := statusStyle[s]; ok {
		return st.Render(s)
	}
	return s
}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}

// renderFields prints key/value pairs with aligned keys.
func renderFields(w io.Writer, fields [][2]string) {
	width := 0
	for _, f := range fields {
		width = max(width, len(f[0]))
	}
	for _, f := range fields {
		fmt.Fprintf(w, "%s %s\n", keyStyle.Render(fmt.Sprintf("%-*s", width+1, f[0]+":")), f[1])
	}
}
