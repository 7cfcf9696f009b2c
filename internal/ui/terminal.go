package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// ShouldUseColor reports whether cv output on stdout should be styled.
func ShouldUseColor() bool {
	return colorWanted(os.Getenv, func() bool { return term.IsTerminal(int(os.Stdout.Fd())) })
}

// colorWanted decides color from the environment. CANVAS_COLOR (always,
// never, auto) takes precedence over NO_COLOR, CLICOLOR_FORCE and CLICOLOR;
// otherwise color follows whether stdout is a terminal.
func colorWanted(getenv func(string) string, isTTY func() bool) bool {
	switch strings.ToLower(strings.TrimSpace(getenv("CANVAS_COLOR"))) {
	case "always":
		return true
	case "never":
		return false
	}
	if getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(getenv("CLICOLOR")) == "0" {
		return false
	}
	return isTTY()
}
