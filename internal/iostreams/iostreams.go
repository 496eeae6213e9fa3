// Package iostreams provides the CLI's standard streams with TTY and color
// detection, following the GitHub CLI pattern for testable I/O.
package iostreams

import (
	"io"
	"os"

	"golang.org/x/term"
)

// IOStreams provides access to standard input/output/error streams.
type IOStreams struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer

	// -1 = unchecked, 0 = false, 1 = true
	isOutputTTY int
	isStderrTTY int

	// -1 = auto (detect from TTY), 0 = disabled, 1 = enabled
	colorEnabled int
}

// System returns IOStreams connected to the process's standard streams.
// NO_COLOR disables color.
func System() *IOStreams {
	ios := &IOStreams{
		In:           os.Stdin,
		Out:          os.Stdout,
		ErrOut:       os.Stderr,
		isOutputTTY:  -1,
		isStderrTTY:  -1,
		colorEnabled: -1,
	}
	if os.Getenv("NO_COLOR") != "" {
		ios.SetColorEnabled(false)
	}
	return ios
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// IsOutputTTY returns true if stdout is a terminal.
func (s *IOStreams) IsOutputTTY() bool {
	if s.isOutputTTY == -1 {
		s.isOutputTTY = boolToInt(isTerminal(s.Out))
	}
	return s.isOutputTTY == 1
}

// IsStderrTTY returns true if stderr is a terminal.
func (s *IOStreams) IsStderrTTY() bool {
	if s.isStderrTTY == -1 {
		s.isStderrTTY = boolToInt(isTerminal(s.ErrOut))
	}
	return s.isStderrTTY == 1
}

// SetStdoutTTY overrides stdout TTY detection.
func (s *IOStreams) SetStdoutTTY(isTTY bool) {
	s.isOutputTTY = boolToInt(isTTY)
}

// SetStderrTTY overrides stderr TTY detection.
func (s *IOStreams) SetStderrTTY(isTTY bool) {
	s.isStderrTTY = boolToInt(isTTY)
}

// ColorEnabled returns whether color output is enabled. In auto mode color
// follows whether stdout is a TTY.
func (s *IOStreams) ColorEnabled() bool {
	if s.colorEnabled == -1 {
		return s.IsOutputTTY()
	}
	return s.colorEnabled == 1
}

// SetColorEnabled explicitly enables or disables color output.
func (s *IOStreams) SetColorEnabled(enabled bool) {
	s.colorEnabled = boolToInt(enabled)
}

// ColorScheme returns a ColorScheme configured for this IOStreams.
func (s *IOStreams) ColorScheme() *ColorScheme {
	return NewColorScheme(s.ColorEnabled())
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
