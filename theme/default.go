// Package theme provides the colour palette used by the styled logger.
package theme

import (
	"github.com/pterm/pterm"
)

// Theme defines the colour scheme used when rendering log lines to a
// terminal.
type Theme struct {
	Debug *pterm.Style
	Info  *pterm.Style
	Warn  *pterm.Style
	Error *pterm.Style
	Fatal *pterm.Style

	Success   *pterm.Style
	Highlight *pterm.Style
	Muted     *pterm.Style
	Accent    *pterm.Style

	Endpoint       *pterm.Style
	Numbers        *pterm.Style
	HealthHealthy  *pterm.Style
	HealthDegraded *pterm.Style
	HealthOffline  *pterm.Style
}

// Default returns the default application theme.
func Default() *Theme {
	return &Theme{
		Debug: pterm.NewStyle(pterm.FgLightBlue),
		Info:  pterm.NewStyle(pterm.FgGreen),
		Warn:  pterm.NewStyle(pterm.FgYellow, pterm.Bold),
		Error: pterm.NewStyle(pterm.FgRed, pterm.Bold),
		Fatal: pterm.NewStyle(pterm.FgWhite, pterm.BgRed, pterm.Bold),

		Success:   pterm.NewStyle(pterm.FgGreen, pterm.Bold),
		Highlight: pterm.NewStyle(pterm.FgCyan, pterm.Bold),
		Muted:     pterm.NewStyle(pterm.FgGray),
		Accent:    pterm.NewStyle(pterm.FgMagenta),

		Endpoint:       pterm.NewStyle(pterm.FgCyan, pterm.Bold),
		Numbers:        pterm.NewStyle(pterm.FgLightYellow),
		HealthHealthy:  pterm.NewStyle(pterm.FgGreen, pterm.Bold),
		HealthDegraded: pterm.NewStyle(pterm.FgYellow, pterm.Bold),
		HealthOffline:  pterm.NewStyle(pterm.FgRed, pterm.Bold),
	}
}

// Dark returns a dark-terminal theme variant.
func Dark() *Theme {
	t := Default()
	t.Info = pterm.NewStyle(pterm.FgLightGreen)
	t.Warn = pterm.NewStyle(pterm.FgLightYellow, pterm.Bold)
	t.Error = pterm.NewStyle(pterm.FgLightRed, pterm.Bold)
	t.Endpoint = pterm.NewStyle(pterm.FgLightCyan, pterm.Bold)
	return t
}

// Light returns a light-terminal theme variant.
func Light() *Theme {
	t := Default()
	t.Info = pterm.NewStyle(pterm.FgBlack)
	t.Endpoint = pterm.NewStyle(pterm.FgBlue, pterm.Bold)
	return t
}

// GetTheme resolves a theme by name, defaulting when unrecognised.
func GetTheme(name string) *Theme {
	switch name {
	case "dark":
		return Dark()
	case "light":
		return Light()
	default:
		return Default()
	}
}
