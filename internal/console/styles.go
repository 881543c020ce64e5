package console

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// styles renders against the console's own output so colour is dropped when the
// output is not a terminal.
type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	dim     lipgloss.Style
	granted lipgloss.Style
	denied  lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")),
		label: r.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(14),
		value: r.NewStyle().
			Foreground(lipgloss.Color("255")),
		success: r.NewStyle().
			Foreground(lipgloss.Color("82")).
			Bold(true),
		failure: r.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		dim: r.NewStyle().
			Foreground(lipgloss.Color("242")),
		granted: r.NewStyle().
			Foreground(lipgloss.Color("82")),
		denied: r.NewStyle().
			Foreground(lipgloss.Color("196")),
	}
}
