package ui

import (
	"fmt"
	"sync"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorWarn   = 214 // orange
	colorOK     = 114 // green
)

var (
	colorOnce sync.Once
	noColor   bool
)

// colorsOff reports whether rendering should emit plain text. It follows
// ShouldUseColor unless ForceNoColor was called first.
func colorsOff() bool {
	colorOnce.Do(func() { noColor = !ShouldUseColor() })
	return noColor
}

func render(code int, s string) string {
	if colorsOff() {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color. Used for widget and
// control IDs.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderWarn returns s in the warning (orange) color.
func RenderWarn(s string) string { return render(colorWarn, s) }

// RenderOK returns s in the success (green) color.
func RenderOK(s string) string { return render(colorOK, s) }

// ForceNoColor disables color output globally.
func ForceNoColor() {
	colorOnce.Do(func() {})
	noColor = true
}
