// main.go
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/smuckster/fleetcheck/cmd"
	"github.com/smuckster/fleetcheck/pkg/report"
)

func main() {
	startTime := time.Now()

	err := cmd.Execute()

	if cmd.Verbose() {
		fmt.Fprintf(os.Stderr, "\nTotal execution time: %s\n", time.Since(startTime).Round(time.Millisecond))
	}

	var problems *cmd.ProblemsFoundError
	switch {
	case err == nil:
		os.Exit(report.ExitHealthy)
	case errors.As(err, &problems):
		os.Exit(report.ExitProblems)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(report.ExitUsage)
	}
}
