// Package main provides the entry point for the synexpand CLI.
package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/synexpand/cmd/synexpand/cmd"
	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, synerrors.FormatForCLI(err, cmd.Debug()))
		os.Exit(synerrors.ExitCode(err))
	}
}
