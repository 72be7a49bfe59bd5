package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	// Interrupted commands exit quietly.
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "loomline: %v\n", err)
	}
	os.Exit(1)
}
