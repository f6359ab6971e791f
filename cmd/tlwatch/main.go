// Command tlwatch ingests the EU List of Trusted Lists and the selected
// national Trusted Lists, keeps normalized snapshots per run, and reports
// changes and data quality between runs.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tlwatch:", err)
		os.Exit(1)
	}
}
