// ABOUTME: Lipgloss styles for the live interaction view
// ABOUTME: State colors for the status line plus block header, muted, and error styles

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mauromedda/genai-go/pkg/interactions"
)

// Styles holds the palette used by the view.
type Styles struct {
	Header  lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Call    lipgloss.Style
	Thought lipgloss.Style
	Status  map[interactions.State]lipgloss.Style
}

// DefaultStyles returns the built-in palette.
func DefaultStyles() Styles {
	base := lipgloss.NewStyle().Bold(true)
	return Styles{
		Header:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		Muted:   lipgloss.NewStyle().Faint(true),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Call:    lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		Thought: lipgloss.NewStyle().Italic(true).Faint(true),
		Status: map[interactions.State]lipgloss.Style{
			interactions.StateNotStarted: base.Foreground(lipgloss.Color("8")),
			interactions.StateStarted:    base.Foreground(lipgloss.Color("11")),
			interactions.StateCompleted:  base.Foreground(lipgloss.Color("10")),
			interactions.StateFailed:     base.Foreground(lipgloss.Color("9")),
			interactions.StateCancelled:  base.Foreground(lipgloss.Color("208")),
		},
	}
}

func (s Styles) status(st interactions.State) lipgloss.Style {
	if style, ok := s.Status[st]; ok {
		return style
	}
	return lipgloss.NewStyle()
}
