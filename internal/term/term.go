// Package term answers whether the current process should emit coloured
// terminal output.
package term

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// ShouldUseColours honours NO_COLOR/FORCE_COLOR before falling back to the
// terminal check.
//
// references:
//   - https://no-color.org/
func ShouldUseColours() bool {
	if v := os.Getenv("NO_COLOR"); v != "" {
		return false
	}
	if v := os.Getenv("FORCE_COLOR"); v != "" {
		return v != "0"
	}
	if v := os.Getenv("RPCCHAIN_FORCE_COLOURS"); v != "" {
		return strings.ToLower(v) == "true"
	}
	return IsTerminal()
}
