// Package id generates identifiers for intents, sessions and regression runs.
package id

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator can generate unique IDs.
type IDGenerator interface {
	Generate() string
}

// NewIDGenerator returns a generator that produces increasing decimal IDs.
// The IDs are reproducible from run to run, which keeps logs and recorded
// traces of a seeded scenario stable.
func NewIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

// NewParallelIDGenerator returns a generator whose IDs are unique across
// goroutines and processes, at the price of not being reproducible.
func NewParallelIDGenerator() IDGenerator {
	return parallelIDGenerator{}
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)
	id := strconv.FormatUint(idNumber, 10)

	return id
}

type parallelIDGenerator struct{}

func (g parallelIDGenerator) Generate() string {
	return xid.New().String()
}

var (
	defaultLock      sync.Mutex
	defaultGenerator IDGenerator = NewIDGenerator()
)

// UseGenerator replaces the generator used by Generate.
func UseGenerator(g IDGenerator) {
	defaultLock.Lock()
	defer defaultLock.Unlock()

	defaultGenerator = g
}

// Generate returns an ID from the process-wide generator.
func Generate() string {
	defaultLock.Lock()
	g := defaultGenerator
	defaultLock.Unlock()

	return g.Generate()
}
