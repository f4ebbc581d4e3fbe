package main

import (
	"context"
	"fmt"
	"os"

	"github.com/conneroisu/manuscript/cmd"
	"github.com/conneroisu/manuscript/internal/errors"
)

func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, errors.FormatError(err))
		os.Exit(1)
	}
}
