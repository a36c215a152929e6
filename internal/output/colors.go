package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for drill output elements
type ColorScheme struct {
	Pass      *color.Color
	Fail      *color.Color
	Unscored  *color.Color
	Counter   *color.Color
	Profile   *color.Color
	Highlight *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Pass:      color.New(color.FgGreen, color.Bold),
		Fail:      color.New(color.FgRed, color.Bold),
		Unscored:  color.New(color.FgYellow),
		Counter:   color.New(color.FgCyan),
		Profile:   color.New(color.FgMagenta, color.Bold),
		Highlight: color.New(color.FgBlue, color.Bold),
	}
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()

	scheme.Pass.DisableColor()
	scheme.Fail.DisableColor()
	scheme.Unscored.DisableColor()
	scheme.Counter.DisableColor()
	scheme.Profile.DisableColor()
	scheme.Highlight.DisableColor()

	return scheme
}

// PassIcon returns a checkmark symbol with appropriate color
func PassIcon(noColor bool) string {
	if noColor {
		return "✓"
	}
	return color.New(color.FgGreen).Sprint("✓")
}

// FailIcon returns an X symbol with appropriate color
func FailIcon(noColor bool) string {
	if noColor {
		return "✗"
	}
	return color.New(color.FgRed).Sprint("✗")
}

// WarnIcon returns a warning symbol with appropriate color
func WarnIcon(noColor bool) string {
	if noColor {
		return "⚠"
	}
	return color.New(color.FgYellow).Sprint("⚠")
}
