// Package version holds the build-time identity rpcchaind prints on
// startup and in response to --version, grounded on olla's
// internal/version package.
package version

import (
	"fmt"
	"log"

	"github.com/pterm/pterm"
)

var (
	Name        = "rpcchaind"
	Description = "Solana RPC transport chain"
	Version     = "v0.0.1"
	Commit      = "none"
	Date        = "nowish"
)

// PrintVersionInfo writes a short identity banner to vlog. extendedInfo
// adds commit/build metadata, the way --version differs from the
// startup banner.
func PrintVersionInfo(extendedInfo bool, vlog *log.Logger) {
	vlog.Println(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprintf("%s %s", Name, Version))
	vlog.Println(Description)

	if extendedInfo {
		vlog.Println(fmt.Sprintf("Commit: %s", Commit))
		vlog.Println(fmt.Sprintf(" Built: %s", Date))
	}
}
