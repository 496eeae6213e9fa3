package iostreams

import "github.com/charmbracelet/lipgloss"

var (
	ColorEmerald = lipgloss.Color("#04B575")
	ColorAmber   = lipgloss.Color("#FFCC00")
	ColorHotPink = lipgloss.Color("#FF5F87")
	ColorDimGray = lipgloss.Color("#626262")
)

var (
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorEmerald)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorAmber)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorHotPink)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorDimGray)
	BoldStyle    = lipgloss.NewStyle().Bold(true)
)

// ColorScheme formats terminal text. When colors are disabled, methods
// return the input unmodified.
type ColorScheme struct {
	enabled bool
}

// NewColorScheme creates a new ColorScheme.
func NewColorScheme(enabled bool) *ColorScheme {
	return &ColorScheme{enabled: enabled}
}

// Enabled returns whether colors are enabled.
func (cs *ColorScheme) Enabled() bool {
	return cs.enabled
}

func (cs *ColorScheme) render(style lipgloss.Style, s string) string {
	if !cs.enabled {
		return s
	}
	return style.Render(s)
}

func (cs *ColorScheme) Green(s string) string  { return cs.render(SuccessStyle, s) }
func (cs *ColorScheme) Yellow(s string) string { return cs.render(WarningStyle, s) }
func (cs *ColorScheme) Red(s string) string    { return cs.render(ErrorStyle, s) }
func (cs *ColorScheme) Muted(s string) string  { return cs.render(MutedStyle, s) }
func (cs *ColorScheme) Bold(s string) string   { return cs.render(BoldStyle, s) }

// SuccessIcon returns a check mark.
func (cs *ColorScheme) SuccessIcon() string { return cs.Green("✓") }

// FailureIcon returns an X mark.
func (cs *ColorScheme) FailureIcon() string { return cs.Red("✗") }

// PendingIcon returns an ellipsis.
func (cs *ColorScheme) PendingIcon() string { return cs.Yellow("…") }
