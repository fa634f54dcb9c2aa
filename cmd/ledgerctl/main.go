// Package main is the entry point for the ledgerctl CLI.
package main

import (
	"fmt"
	"os"

	"finance/cmd/ledgerctl/cmd"
	"finance/internal/core"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if core.Retryable(err) {
			fmt.Fprintln(os.Stderr, "The ledger is busy with another write, try again.")
		}
		os.Exit(1)
	}
}
