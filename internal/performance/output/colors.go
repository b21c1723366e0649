package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for the different parts of the summary
type ColorScheme struct {
	Title   *color.Color
	Label   *color.Color
	Value   *color.Color
	Success *color.Color
	Warn    *color.Color
	Error   *color.Color
	Dim     *color.Color
}

// NewColorScheme returns the summary color scheme. Colors are forced on or
// off regardless of what fatih/color detected for stdout, since the summary
// may be written to any writer.
func NewColorScheme(enabled bool) *ColorScheme {
	scheme := &ColorScheme{
		Title:   color.New(color.FgCyan, color.Bold),
		Label:   color.New(color.Bold),
		Value:   color.New(color.FgCyan),
		Success: color.New(color.FgGreen),
		Warn:    color.New(color.FgYellow),
		Error:   color.New(color.FgRed),
		Dim:     color.New(color.Faint),
	}

	for _, c := range []*color.Color{
		scheme.Title, scheme.Label, scheme.Value,
		scheme.Success, scheme.Warn, scheme.Error, scheme.Dim,
	} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	return scheme
}

// SuccessIcon returns a checkmark symbol in the success color
func (s *ColorScheme) SuccessIcon() string {
	return s.Success.Sprint("✓")
}

// ErrorIcon returns an X symbol in the error color
func (s *ColorScheme) ErrorIcon() string {
	return s.Error.Sprint("✗")
}

// Rate picks a color for a success ratio: green at 99% and above, yellow
// down to 95%, red below.
func (s *ColorScheme) Rate(successRate float64) *color.Color {
	switch {
	case successRate >= 0.99:
		return s.Success
	case successRate >= 0.95:
		return s.Warn
	default:
		return s.Error
	}
}
