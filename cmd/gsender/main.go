// Package main is the entry point of the gsender CLI.
//
// Usage:
//
//	gsender [flags] <command> [args]
//
// Commands:
//
//	ports    - List serial ports
//	stream   - Stream a G-code file to a machine
//	console  - Interactive controller console
package main

import (
	"fmt"
	"os"

	"github.com/arloliu/go-gsender/cmd/gsender/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
