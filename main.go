// =============================================================================
// mpledger - Main Entry Point
// =============================================================================
//
// USAGE:
//   mpledger convert <infile> <appendix-start> - Convert a MobilePay export
//   mpledger holidays [year]                   - List bank closing days
//   mpledger config init [path]                - Write the default configuration
//   mpledger version                           - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : settlement engine, readers and writers
//   - pkg/       : shared file utilities
//
// =============================================================================

package main

import (
	"github.com/fklub/mpledger/cmd"
)

func main() {
	cmd.Execute()
}
