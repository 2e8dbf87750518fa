package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/whylabs/openllmtelemetry/pkg/guardrail"
)

// Exit codes
const (
	exitSuccess = 0
	exitError   = 1
	exitBlocked = 2
)

func main() {
	ctx := context.Background()

	if err := Execute(ctx); err != nil {
		var blocked *guardrail.BlockedError
		if errors.As(err, &blocked) {
			fmt.Fprintln(os.Stderr, blocked.Error())
			os.Exit(exitBlocked)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}

	os.Exit(exitSuccess)
}
