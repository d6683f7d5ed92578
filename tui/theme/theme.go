// Package theme holds the lipgloss styles shared by the CLI help output and
// the status view.
package theme

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const defaultThemeName = "stratus"

// Colors is the palette a Theme is built from. lipgloss.TerminalColor allows
// a mix of adaptive and static colors.
type Colors struct {
	Green  lipgloss.TerminalColor
	Yellow lipgloss.TerminalColor
	Red    lipgloss.TerminalColor
	Orange lipgloss.TerminalColor
	Cyan   lipgloss.TerminalColor
	Blue   lipgloss.TerminalColor
	Violet lipgloss.TerminalColor
	Muted  lipgloss.TerminalColor
	Border lipgloss.TerminalColor
}

// Theme holds the pre-configured styles.
type Theme struct {
	Name   string
	Colors Colors

	Header  lipgloss.Style
	Section lipgloss.Style
	Command lipgloss.Style
	Flag    lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	Bold   lipgloss.Style
	Muted  lipgloss.Style
	Italic lipgloss.Style
	Box    lipgloss.Style
}

// DefaultTheme is selected by STRATUS_THEME ("stratus" or "terminal").
var DefaultTheme = New(os.Getenv("STRATUS_THEME"))

var palettes = map[string]func() Colors{
	"stratus":  stratusColors,
	"terminal": terminalColors,
}

// New builds the named theme, falling back to the default palette.
func New(name string) *Theme {
	name = strings.ToLower(strings.TrimSpace(name))
	build, ok := palettes[name]
	if !ok {
		name = defaultThemeName
		build = palettes[name]
	}
	c := build()

	return &Theme{
		Name:   name,
		Colors: c,

		Header:  lipgloss.NewStyle().Bold(true).Foreground(c.Orange),
		Section: lipgloss.NewStyle().Italic(true).Foreground(c.Orange),
		Command: lipgloss.NewStyle().Bold(true).Foreground(c.Blue),
		Flag:    lipgloss.NewStyle().Foreground(c.Violet),

		Success: lipgloss.NewStyle().Bold(true).Foreground(c.Green),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(c.Red),
		Warning: lipgloss.NewStyle().Bold(true).Foreground(c.Yellow),
		Info:    lipgloss.NewStyle().Foreground(c.Cyan),

		Bold:   lipgloss.NewStyle().Bold(true),
		Muted:  lipgloss.NewStyle().Foreground(c.Muted),
		Italic: lipgloss.NewStyle().Italic(true),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(c.Border).
			Padding(0, 1),
	}
}

// RenderStatus renders text with the style named by status.
func (t *Theme) RenderStatus(status, text string) string {
	switch status {
	case "success":
		return t.Success.Render(text)
	case "error":
		return t.Error.Render(text)
	case "warning":
		return t.Warning.Render(text)
	case "info":
		return t.Info.Render(text)
	default:
		return text
	}
}

func stratusColors() Colors {
	return Colors{
		Green:  lipgloss.AdaptiveColor{Light: "#3F7D4E", Dark: "#8CC97A"},
		Yellow: lipgloss.AdaptiveColor{Light: "#9A7B2F", Dark: "#F2C45A"},
		Red:    lipgloss.AdaptiveColor{Light: "#B83A3A", Dark: "#F0736E"},
		Orange: lipgloss.AdaptiveColor{Light: "#B8622F", Dark: "#F59E64"},
		Cyan:   lipgloss.AdaptiveColor{Light: "#2F7A8C", Dark: "#7CC6D6"},
		Blue:   lipgloss.AdaptiveColor{Light: "#365F9C", Dark: "#86A8E0"},
		Violet: lipgloss.AdaptiveColor{Light: "#6A4A8C", Dark: "#B49AD8"},
		Muted:  lipgloss.AdaptiveColor{Light: "#6E7180", Dark: "#8A8D99"},
		Border: lipgloss.AdaptiveColor{Light: "#B9BEC8", Dark: "#3A3D4A"},
	}
}

func terminalColors() Colors {
	return Colors{
		Green:  lipgloss.Color("2"),
		Yellow: lipgloss.Color("3"),
		Red:    lipgloss.Color("1"),
		Orange: lipgloss.Color("208"),
		Cyan:   lipgloss.Color("6"),
		Blue:   lipgloss.Color("4"),
		Violet: lipgloss.Color("5"),
		Muted:  lipgloss.Color("8"),
		Border: lipgloss.Color("8"),
	}
}
