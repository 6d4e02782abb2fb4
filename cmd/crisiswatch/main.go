// Command crisiswatch serves and inspects the crisis-monitoring live feed.
//
// Usage:
//
//	crisiswatch serve               Serve /api/live with a TTL cache
//	crisiswatch snapshot [--pretty] Build one document and print it
//	crisiswatch config show         Print the effective configuration
//	crisiswatch events              JSONL event log viewer
//	crisiswatch version             Print version information
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "crisiswatch: %v\n", err)
		os.Exit(1)
	}
}
