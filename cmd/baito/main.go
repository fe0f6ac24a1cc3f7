package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/baito-events/baitokit/internal/baitocli"
	"github.com/baito-events/baitokit/internal/logging"
)

func main() {
	if err := baitocli.Execute(os.Args[1:]); err != nil {
		if errors.Is(err, baitocli.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, "run `baito --help` for usage")
			os.Exit(2)
		}
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		log, _ := logging.New(os.Stderr, "error")
		log.Error().Err(err).Msg("baito failed")
		os.Exit(1)
	}
}
