package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tuwlib/bibsync/internal/syncer"
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count,omitempty"`
}

// ResultResponse is the JSON rendering of a sync operation result.
type ResultResponse struct {
	Status   string   `json:"status"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Output   string   `json:"output,omitempty"`
}

// printResult renders a sync result and exits non-zero on failure.
func printResult(res syncer.Result) {
	if humanOutput {
		printResultHuman(res)
	} else {
		outputJSON(ResultResponse{
			Status:   string(res.Status),
			Errors:   res.Errors,
			Warnings: res.Warnings,
			Output:   res.Output,
		})
	}
	if res.Status != syncer.StatusSuccess {
		os.Exit(ExitDataError)
	}
}

func printResultHuman(res syncer.Result) {
	fmt.Printf("status: %s\n", res.Status)
	for _, w := range res.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(os.Stderr, "error: %s\n", e)
	}
	if res.Output != "" {
		fmt.Println(res.Output)
	}
}
