// Package monitoring turns a running conformance session into a web server
// that can be inspected and paused from a browser.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/hwconform/harness"
	"github.com/sarchlab/hwconform/monitoring/web"
	"github.com/sarchlab/hwconform/sim/clock"
	"github.com/sarchlab/hwconform/sim/id"
	"github.com/sarchlab/hwconform/sim/naming"
	"github.com/sarchlab/hwconform/sim/timing"
	"github.com/sarchlab/hwconform/tracing"
)

// Monitor can turn a conformance run into a server and allows external
// monitoring and controlling of the run.
type Monitor struct {
	lock       sync.Mutex
	engines    []timing.Engine
	domains    []*clock.Domain
	sessions   []*harness.Session
	components []naming.Named
	registry   *tracing.Registry

	controlLock sync.Mutex
	paused      bool

	portNumber  int
	openBrowser bool

	profileDuration time.Duration

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		profileDuration: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes the monitor open the dashboard in a browser once the
// server starts.
func (m *Monitor) WithBrowser() *Monitor {
	m.openBrowser = true
	return m
}

// RegisterEngine registers an engine that runs scenarios. Pausing the
// monitor pauses every registered engine.
func (m *Monitor) RegisterEngine(e timing.Engine) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.engines = append(m.engines, e)
}

// RegisterDomain registers a clock domain whose cycle count is reported.
func (m *Monitor) RegisterDomain(d *clock.Domain) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.domains = append(m.domains, d)
	m.components = append(m.components, d)
}

// RegisterSession registers a session whose state and results are reported.
func (m *Monitor) RegisterSession(s *harness.Session) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.sessions = append(m.sessions, s)
	m.components = append(m.components, s)
}

// RegisterComponent registers a component whose fields can be inspected.
func (m *Monitor) RegisterComponent(c naming.Named) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.components = append(m.components, c)
}

// RegisterRegistry sets the registry that provides the latest signal values.
func (m *Monitor) RegisterRegistry(r *tracing.Registry) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.registry = r
}

func (m *Monitor) snapshotEngines() []timing.Engine {
	m.lock.Lock()
	defer m.lock.Unlock()

	return append([]timing.Engine(nil), m.engines...)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        id.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Handler returns the router that serves the monitoring API and the
// dashboard.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/sessions", m.listSessions)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/signals", m.listSignals)
	r.HandleFunc("/api/signals/{name}", m.listSignalSeries)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns the port it
// listens on.
func (m *Monitor) StartServer() int {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	port := listener.Addr().(*net.TCPAddr).Port
	url := fmt.Sprintf("http://localhost:%d", port)

	fmt.Fprintf(os.Stderr, "Monitoring conformance run with %s\n", url)

	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != http.ErrServerClosed {
			dieOnErr(err)
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %s\n", err)
		}
	}

	return port
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer() {
	if m.server == nil {
		return
	}

	dieOnErr(m.server.Close())
	m.server = nil
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.controlLock.Lock()
	for _, e := range m.snapshotEngines() {
		e.Pause()
	}
	m.paused = true
	m.controlLock.Unlock()

	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.controlLock.Lock()
	for _, e := range m.snapshotEngines() {
		e.Continue()
	}
	m.paused = false
	m.controlLock.Unlock()

	_, err := w.Write(nil)
	dieOnErr(err)
}

// inspect runs fn while no registered engine is processing an event.
func (m *Monitor) inspect(fn func()) {
	m.controlLock.Lock()
	defer m.controlLock.Unlock()

	if !m.paused {
		engines := m.snapshotEngines()
		for _, e := range engines {
			e.Pause()
		}

		defer func() {
			for _, e := range engines {
				e.Continue()
			}
		}()
	}

	fn()
}

type domainRsp struct {
	Name  string `json:"name"`
	Cycle uint64 `json:"cycle"`
}

type nowRsp struct {
	Now     float64     `json:"now"`
	Domains []domainRsp `json:"domains"`
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	rsp := nowRsp{Domains: []domainRsp{}}

	for _, e := range m.snapshotEngines() {
		rsp.Now = max(rsp.Now, e.CurrentTime())
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	for _, d := range m.domains {
		rsp.Domains = append(rsp.Domains,
			domainRsp{Name: d.Name(), Cycle: d.Cycle()})
	}

	writeJSON(w, rsp)
}

type sessionRsp struct {
	Name     string   `json:"name"`
	Scenario string   `json:"scenario"`
	State    string   `json:"state"`
	Passed   int      `json:"passed"`
	Failed   int      `json:"failed"`
	Failures []string `json:"failures"`
}

func (m *Monitor) listSessions(w http.ResponseWriter, _ *http.Request) {
	rsp := []sessionRsp{}

	m.lock.Lock()
	defer m.lock.Unlock()

	for _, s := range m.sessions {
		snap := s.Snapshot()
		sr := sessionRsp{
			Name:     snap.Name,
			Scenario: snap.Scenario,
			State:    snap.State.String(),
			Failures: []string{},
		}

		for _, r := range snap.Results {
			if r.Passed() {
				sr.Passed++
				continue
			}

			sr.Failed++
			sr.Failures = append(sr.Failures, r.Err.Error())
		}

		rsp = append(rsp, sr)
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	component := m.findComponentOr404(w, name)
	if component == nil {
		return
	}

	var buf bytes.Buffer

	m.inspect(func() {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(component)
		serializer.SetMaxDepth(1)
		dieOnErr(serializer.Serialize(&buf))
	})

	_, err := w.Write(buf.Bytes())
	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	jsonString := mux.Vars(r)["json"]
	req := fieldReq{}

	err := json.Unmarshal([]byte(jsonString), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	var buf bytes.Buffer

	m.inspect(func() {
		serializer := goseth.NewSerializer()
		serializer.SetRoot(component)
		serializer.SetMaxDepth(1)

		err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
		if err == nil {
			err = serializer.Serialize(&buf)
		}
	})

	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	_, err = w.Write(buf.Bytes())
	dieOnErr(err)
}

type signalRsp struct {
	Signal string  `json:"signal"`
	Cycle  uint64  `json:"cycle"`
	Time   float64 `json:"time"`
	Value  uint64  `json:"value"`
}

func toSignalRsp(s tracing.Sample) signalRsp {
	return signalRsp{
		Signal: s.Signal,
		Cycle:  s.Cycle,
		Time:   float64(s.Time),
		Value:  s.Value,
	}
}

func (m *Monitor) listSignals(w http.ResponseWriter, _ *http.Request) {
	rsp := []signalRsp{}

	if registry := m.signalRegistry(); registry != nil {
		for _, name := range registry.Signals() {
			if s, ok := registry.Latest(name); ok {
				rsp = append(rsp, toSignalRsp(s))
			}
		}
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listSignalSeries(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	limit, err := parseLimit(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	var series []tracing.Sample
	if registry := m.signalRegistry(); registry != nil {
		series = registry.Series(name)
	}

	if len(series) == 0 {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Signal not found"))
		dieOnErr(err)

		return
	}

	if limit > 0 && len(series) > limit {
		series = series[len(series)-limit:]
	}

	rsp := make([]signalRsp, 0, len(series))
	for _, s := range series {
		rsp = append(rsp, toSignalRsp(s))
	}

	writeJSON(w, rsp)
}

func (m *Monitor) signalRegistry() *tracing.Registry {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.registry
}

func parseLimit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, err
	}

	if limit < 0 {
		return 0, fmt.Errorf("invalid limit %d", limit)
	}

	return limit, nil
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) naming.Named {
	var component naming.Named

	m.lock.Lock()
	for _, c := range m.components {
		if c.Name() == name {
			component = c
			break
		}
	}
	m.lock.Unlock()

	if component == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Component not found"))
		dieOnErr(err)
	}

	return component
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
