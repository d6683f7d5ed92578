package theme

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestNewFallsBackToDefault(t *testing.T) {
	assert.Equal(t, "stratus", New("").Name)
	assert.Equal(t, "stratus", New("no-such-theme").Name)
	assert.Equal(t, "terminal", New(" Terminal ").Name)
}

func TestTerminalPaletteUsesANSI(t *testing.T) {
	th := New("terminal")
	assert.Equal(t, lipgloss.Color("1"), th.Colors.Red)
}

func TestRenderStatusKeepsText(t *testing.T) {
	th := New("terminal")
	for _, status := range []string{"success", "error", "warning", "info", "other"} {
		assert.Contains(t, th.RenderStatus(status, "hello"), "hello")
	}
}
