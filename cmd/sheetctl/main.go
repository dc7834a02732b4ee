// Command sheetctl administers a running sheets server: importing sheet
// documents, exporting progress, and triggering maintenance jobs.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
