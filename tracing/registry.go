package tracing

import (
	"sort"
	"sync"

	"github.com/sarchlab/hwconform/sim/hooking"
)

// Registry is a hook that keeps every sample in memory, grouped by signal.
// It is safe to read from other goroutines while the simulation runs.
type Registry struct {
	lock   sync.RWMutex
	series map[string][]Sample
	limit  int
}

// NewRegistry creates a registry that keeps at most limit samples per
// signal, dropping the oldest ones. A limit of 0 keeps everything.
func NewRegistry(limit int) *Registry {
	return &Registry{
		series: make(map[string][]Sample),
		limit:  limit,
	}
}

// Func stores the sample carried by ctx.
func (r *Registry) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosSignalSample {
		return
	}

	sample := ctx.Item.(Sample)

	r.lock.Lock()
	defer r.lock.Unlock()

	s := append(r.series[sample.Signal], sample)
	if r.limit > 0 && len(s) > r.limit {
		s = s[len(s)-r.limit:]
	}

	r.series[sample.Signal] = s
}

// Signals returns the names of the signals seen so far, sorted.
func (r *Registry) Signals() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	names := make([]string, 0, len(r.series))
	for name := range r.series {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Series returns a copy of the samples of a signal, oldest first.
func (r *Registry) Series(signal string) []Sample {
	r.lock.RLock()
	defer r.lock.RUnlock()

	s := make([]Sample, len(r.series[signal]))
	copy(s, r.series[signal])

	return s
}

// Values returns the values of a signal, oldest first.
func (r *Registry) Values(signal string) []uint64 {
	r.lock.RLock()
	defer r.lock.RUnlock()

	values := make([]uint64, 0, len(r.series[signal]))
	for _, s := range r.series[signal] {
		values = append(values, s.Value)
	}

	return values
}

// Latest returns the most recent sample of a signal.
func (r *Registry) Latest(signal string) (Sample, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	s := r.series[signal]
	if len(s) == 0 {
		return Sample{}, false
	}

	return s[len(s)-1], true
}

// Clear drops every sample.
func (r *Registry) Clear() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.series = make(map[string][]Sample)
}
