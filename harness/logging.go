package harness

import (
	"log"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

// NewStdLogger returns a logger that writes through the standard log
// package. Verbosity 0 prints scenario and failure lines, 1 adds every
// issued intent, and 2 adds per-cycle scoreboard lines.
func NewStdLogger(verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix == "" {
			log.Println(args)
			return
		}

		log.Println(prefix, args)
	}, funcr.Options{Verbosity: verbosity})
}
