// Package main provides the entry point for the kbcored CLI.
package main

import (
	"fmt"
	"os"

	"github.com/aman-cerp/kbcore/cmd/kbcored/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
