// Package regression runs the scenario catalog over many seeds, each on its
// own engine, clock domain and device instance.
package regression

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/hwconform/config"
	"github.com/sarchlab/hwconform/datarecording"
	"github.com/sarchlab/hwconform/dut/syncfifo"
	"github.com/sarchlab/hwconform/fifo"
	"github.com/sarchlab/hwconform/harness"
	"github.com/sarchlab/hwconform/monitoring"
	"github.com/sarchlab/hwconform/sim/clock"
	"github.com/sarchlab/hwconform/sim/timing"
	"github.com/sarchlab/hwconform/tracing"
)

// SeedResult is the outcome of running the catalog with one seed.
type SeedResult struct {
	RunID      string
	Seed       int64
	Results    []harness.Result
	Err        error
	Cycles     uint64
	RecordFile string
}

// Passed tells if every scenario of the seed passed.
func (r SeedResult) Passed() bool {
	return r.Err == nil
}

// Summary collects the results of every seed, in seed order.
type Summary struct {
	Seeds []SeedResult
}

// Passed tells if every seed passed.
func (r Summary) Passed() bool {
	for _, s := range r.Seeds {
		if !s.Passed() {
			return false
		}
	}

	return true
}

// Failures returns the seeds that failed.
func (r Summary) Failures() []SeedResult {
	var failed []SeedResult

	for _, s := range r.Seeds {
		if !s.Passed() {
			failed = append(failed, s)
		}
	}

	return failed
}

func (r Summary) String() string {
	var b strings.Builder

	scenarios, failed := 0, 0
	for _, s := range r.Seeds {
		for _, res := range s.Results {
			scenarios++
			if !res.Passed() {
				failed++
			}
		}
	}

	fmt.Fprintf(&b, "%d seeds, %d scenarios, %d failed",
		len(r.Seeds), scenarios, failed)

	for _, s := range r.Failures() {
		fmt.Fprintf(&b, "\nseed %d (run %s):", s.Seed, s.RunID)

		for _, res := range s.Results {
			if !res.Passed() {
				fmt.Fprintf(&b, "\n  %s", res.Err)
			}
		}
	}

	return b.String()
}

// Runner runs a regression.
type Runner struct {
	cfg       config.Config
	log       logr.Logger
	monitor   *monitoring.Monitor
	scenarios func(cfg fifo.RandomConfig) []fifo.Scenario
}

// NewRunner creates a runner. The config must be valid.
func NewRunner(cfg config.Config, log logr.Logger) *Runner {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	return &Runner{
		cfg:       cfg,
		log:       log,
		scenarios: fifo.Catalog,
	}
}

// WithMonitor reports every seed to the monitor.
func (r *Runner) WithMonitor(m *monitoring.Monitor) *Runner {
	r.monitor = m
	return r
}

// WithScenarios replaces the scenario catalog.
func (r *Runner) WithScenarios(
	fn func(cfg fifo.RandomConfig) []fifo.Scenario,
) *Runner {
	r.scenarios = fn
	return r
}

// Run runs every seed. Conformance failures are reported in the Summary.
// The returned error is only set when the regression itself could not run,
// or when ctx is cancelled before every seed has started.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	seeds := r.cfg.Regression.Seeds
	summary := Summary{Seeds: make([]SeedResult, seeds)}

	var bar *monitoring.ProgressBar
	if r.monitor != nil {
		bar = r.monitor.CreateProgressBar("Seeds", uint64(seeds))
		defer r.monitor.CompleteProgressBar(bar)
	}

	parallel := r.cfg.Regression.Parallel
	if parallel == 0 {
		parallel = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	var lock sync.Mutex

	for i := 0; i < seeds; i++ {
		seed := r.cfg.Regression.Seed + int64(i)
		index := i

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			if bar != nil {
				bar.IncrementInProgress(1)
			}

			res, err := r.runSeed(seed, index == 0)
			if err != nil {
				return err
			}

			lock.Lock()
			summary.Seeds[index] = res
			lock.Unlock()

			if bar != nil {
				bar.MoveInProgressToFinished(1)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}

	r.log.Info("regression complete", "summary", summary.String())

	return summary, nil
}

func (r *Runner) runSeed(seed int64, first bool) (res SeedResult, err error) {
	res = SeedResult{
		RunID: xid.New().String(),
		Seed:  seed,
	}
	log := r.log.WithValues("run", res.RunID, "seed", seed)

	bench, err := r.buildTestbench(seed, log)
	if err != nil {
		return res, err
	}
	tb := bench.tb
	defer tb.Close()

	if r.cfg.Recorder.Path != "" {
		recorder := datarecording.NewSQLiteWriter(
			fmt.Sprintf("%s_%d_%s", r.cfg.Recorder.Path, seed, res.RunID))
		recorder.Init()
		res.RecordFile = recorder.Filename()
		tb.AttachRecorder(recorder)

		defer func() {
			if cerr := recorder.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("closing recorder of seed %d: %w", seed, cerr)
			}
		}()
	}

	if r.monitor != nil {
		r.monitor.RegisterEngine(bench.engine)
		r.monitor.RegisterDomain(bench.domain)
		r.monitor.RegisterSession(tb.Session())

		if first {
			registry := tracing.NewRegistry(1024)
			tb.Sampler().AcceptHook(registry)
			r.monitor.RegisterRegistry(registry)

			r.monitor.RegisterComponent(tb)
			r.monitor.RegisterComponent(bench.device)
			r.monitor.RegisterComponent(tb.Scoreboard())
			r.monitor.RegisterComponent(tb.Driver())
		}
	}

	res.Err = tb.RunAll(r.scenarios(r.cfg.RandomConfig())...)
	res.Results = tb.Session().Results()
	res.Cycles = bench.domain.Cycle()

	if res.Err != nil {
		log.Error(res.Err, "seed failed")
	} else {
		log.Info("seed passed", "scenarios", len(res.Results),
			"cycles", res.Cycles)
	}

	return res, nil
}

type seedBench struct {
	tb     *fifo.Testbench
	engine timing.Engine
	domain *clock.Domain
	device *syncfifo.Comp
}

func (r *Runner) buildTestbench(
	seed int64,
	log logr.Logger,
) (seedBench, error) {
	freq, err := r.cfg.Freq()
	if err != nil {
		return seedBench{}, err
	}

	faults, err := r.cfg.Faults()
	if err != nil {
		return seedBench{}, err
	}

	engine := timing.NewSerialEngine()
	domain := clock.MakeBuilder().
		WithEngine(engine).
		WithFreq(freq).
		WithPhase(r.cfg.Phase()).
		Build("Clk")
	device := syncfifo.MakeBuilder().
		WithParams(r.cfg.Params()).
		WithFaults(faults).
		WithDomain(domain).
		Build("FIFO")

	tb := r.cfg.Apply(fifo.MakeBuilder()).
		WithEngine(engine).
		WithDomain(domain).
		WithDevice(device).
		WithSeed(seed).
		WithLogger(log).
		Build("FIFOTB")

	return seedBench{
		tb:     tb,
		engine: engine,
		domain: domain,
		device: device,
	}, nil
}
