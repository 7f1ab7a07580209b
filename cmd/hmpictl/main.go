// Command hmpictl assesses sample CSV files offline: indices, reports,
// exports and single-sample health risk, without running the service.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}
