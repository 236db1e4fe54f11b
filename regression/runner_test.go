package regression

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/hwconform/config"
	"github.com/sarchlab/hwconform/datarecording"
	"github.com/sarchlab/hwconform/fifo"
	"github.com/sarchlab/hwconform/monitoring"
)

func smallConfig() config.Config {
	c := config.Default()
	c.Clock.Freq = "1GHz"
	c.Regression.Seeds = 3
	c.Regression.Parallel = 2
	c.Regression.Iterations = 1
	c.Regression.InitialMin = 2
	c.Regression.InitialMax = 4
	c.Regression.OpsMin = 20
	c.Regression.OpsMax = 40

	return c
}

var _ = Describe("Runner", func() {
	It("should pass every seed on a conforming device", func() {
		summary, err := NewRunner(smallConfig(), GinkgoLogr).
			Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Passed()).To(BeTrue(), summary.String())
		Expect(summary.Seeds).To(HaveLen(3))

		runIDs := map[string]bool{}
		for i, s := range summary.Seeds {
			Expect(s.Seed).To(Equal(int64(1 + i)))
			Expect(s.Results).To(HaveLen(9 + 2))
			Expect(s.Cycles).To(BeNumerically(">", 0))
			runIDs[s.RunID] = true
		}
		Expect(runIDs).To(HaveLen(3))

		Expect(summary.String()).To(HavePrefix("3 seeds, 33 scenarios, 0 failed"))
	})

	It("should report every seed as failed on a faulty device", func() {
		c := smallConfig()
		c.Device.Faults = "lifo"

		summary, err := NewRunner(c, GinkgoLogr).Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Passed()).To(BeFalse())
		Expect(summary.Failures()).To(HaveLen(3))
		Expect(summary.String()).To(ContainSubstring("data mismatch"))
	})

	It("should record each seed into its own file", func() {
		c := smallConfig()
		c.Regression.Seeds = 2
		c.Recorder.Path = filepath.Join(GinkgoT().TempDir(), "trace")

		summary, err := NewRunner(c, GinkgoLogr).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())

		Expect(summary.Seeds[0].RecordFile).
			NotTo(Equal(summary.Seeds[1].RecordFile))

		for _, s := range summary.Seeds {
			reader := datarecording.NewReader(s.RecordFile)
			reader.MapTable("drain", fifo.DrainRecord{})

			drains, total, err := reader.Query(context.Background(), "drain",
				datarecording.QueryParams{Limit: 5})
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeNumerically(">", 16))
			Expect(drains).To(HaveLen(5))
			Expect(reader.Close()).To(Succeed())
		}
	})

	It("should report progress and sessions to a monitor", func() {
		m := monitoring.NewMonitor()

		summary, err := NewRunner(smallConfig(), GinkgoLogr).
			WithMonitor(m).
			Run(context.Background())

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Passed()).To(BeTrue())

		get := func(url string) string {
			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec,
				httptest.NewRequest(http.MethodGet, url, nil))

			return rec.Body.String()
		}

		Expect(strings.Count(get("/api/sessions"), `"passed":11`)).To(Equal(3))
		Expect(get("/api/progress")).To(Equal("[]"))
		Expect(get("/api/signals")).To(ContainSubstring(`"signal":"rd_data"`))

		components := get("/api/list_components")
		for _, name := range []string{
			"FIFOTB", "FIFO", "FIFOTB.Scoreboard", "FIFOTB.Driver",
		} {
			Expect(components).To(ContainSubstring(`"` + name + `"`))
		}
		Expect(get("/api/component/FIFO")).To(ContainSubstring("wptr"))
	})

	It("should serve the monitor while seeds run", func() {
		m := monitoring.NewMonitor()
		h := m.Handler()

		c := smallConfig()
		c.Regression.Seeds = 2

		done := make(chan error)
		go func() {
			_, err := NewRunner(c, GinkgoLogr).WithMonitor(m).
				Run(context.Background())
			done <- err
		}()

		poll := func() {
			for _, url := range []string{
				"/api/sessions", "/api/now", "/api/signals",
				"/api/component/FIFOTB.Scoreboard",
			} {
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
				Expect(rec.Code).To(BeElementOf(
					http.StatusOK, http.StatusNotFound))
			}
		}

		for {
			select {
			case err := <-done:
				Expect(err).NotTo(HaveOccurred())
				poll()

				return
			default:
				poll()
			}
		}
	})

	It("should stop when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewRunner(smallConfig(), GinkgoLogr).Run(ctx)

		Expect(err).To(MatchError(context.Canceled))
	})

	It("should refuse an invalid config", func() {
		c := smallConfig()
		c.Regression.Seeds = 0

		Expect(func() { NewRunner(c, GinkgoLogr) }).To(Panic())
	})
})
