// Package monitoring serves a read-only view of a running manager over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/sarchlab/motorarbiter/actuator"
	"github.com/sarchlab/motorarbiter/monitoring/web"
	"github.com/sarchlab/motorarbiter/primitive"
	"github.com/sarchlab/motorarbiter/tracing"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
)

// ManagedLoop is what the monitor reads from a manager. *primitive.Manager
// satisfies it.
type ManagedLoop interface {
	Name() string
	State() primitive.State
	Ticks() uint64
	Period() time.Duration
	Actuators() []actuator.Actuator
	Primitives() []primitive.Source
	LastError() error
}

type propertyReader interface {
	Properties() []string
	Get(name string) (float64, error)
}

type motorSnapshotter interface {
	Snapshot() actuator.MotorSnapshot
}

// Monitor turns a manager into a web server that can be inspected while it
// runs. It never registers, deregisters, starts or stops anything.
type Monitor struct {
	manager    ManagedLoop
	tracer     *tracing.TickTimeTracer
	portNumber int
	assetDir   string

	serverLock sync.Mutex
	server     *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random port.
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

// WithAssetDir serves the page from a directory instead of the built-in
// copy.
func (m *Monitor) WithAssetDir(dir string) *Monitor {
	m.assetDir = dir
	return m
}

// RegisterManager sets the manager to monitor.
func (m *Monitor) RegisterManager(l ManagedLoop) {
	m.manager = l
}

// RegisterTickTracer sets the tracer that provides tick statistics.
func (m *Monitor) RegisterTickTracer(t *tracing.TickTimeTracer) {
	m.tracer = t
}

// Handler returns the routes of the monitor.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.Use(m.requireManager)

	api.HandleFunc("/state", m.state)
	api.HandleFunc("/actuators", m.listActuators)
	api.HandleFunc("/actuator/{name}", m.actuatorProperties)
	api.HandleFunc("/component/{name}", m.actuatorDetails)
	api.HandleFunc("/primitives", m.listPrimitives)
	api.HandleFunc("/ticks", m.ticks)
	api.HandleFunc("/resource", m.listResources)
	api.HandleFunc("/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.Assets(m.assetDir)))

	return r
}

func (m *Monitor) requireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.manager == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, err := w.Write([]byte("No manager registered"))
			dieOnErr(err)

			return
		}

		next.ServeHTTP(w, r)
	})
}

// StartServer starts serving in the background and returns the URL of the
// monitor.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring manager with %s\n", url)

	server := &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	m.serverLock.Lock()
	m.server = server
	m.serverLock.Unlock()

	go func() {
		err := server.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			log.Printf("monitor: %v", err)
		}
	}()

	return url, nil
}

// StopServer shuts the server down.
func (m *Monitor) StopServer(ctx context.Context) error {
	m.serverLock.Lock()
	server := m.server
	m.server = nil
	m.serverLock.Unlock()

	if server == nil {
		return nil
	}

	return server.Shutdown(ctx)
}

type stateRsp struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	Ticks      uint64 `json:"ticks"`
	PeriodNs   int64  `json:"period_ns"`
	Actuators  int    `json:"actuators"`
	Primitives int    `json:"primitives"`
	LastError  string `json:"last_error,omitempty"`
}

func (m *Monitor) state(w http.ResponseWriter, _ *http.Request) {
	rsp := stateRsp{
		Name:       m.manager.Name(),
		State:      m.manager.State().String(),
		Ticks:      m.manager.Ticks(),
		PeriodNs:   int64(m.manager.Period()),
		Actuators:  len(m.manager.Actuators()),
		Primitives: len(m.manager.Primitives()),
	}

	if err := m.manager.LastError(); err != nil {
		rsp.LastError = err.Error()
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listActuators(w http.ResponseWriter, _ *http.Request) {
	actuators := m.manager.Actuators()

	names := make([]string, 0, len(actuators))
	for _, a := range actuators {
		names = append(names, a.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) actuatorProperties(w http.ResponseWriter, r *http.Request) {
	a := m.findActuatorOr404(w, mux.Vars(r)["name"])
	if a == nil {
		return
	}

	reader, ok := a.(propertyReader)
	if !ok {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}

	values := make(map[string]float64)
	for _, p := range reader.Properties() {
		v, err := reader.Get(p)
		if err != nil {
			continue
		}

		values[p] = v
	}

	writeJSON(w, values)
}

func (m *Monitor) actuatorDetails(w http.ResponseWriter, r *http.Request) {
	a := m.findActuatorOr404(w, mux.Vars(r)["name"])
	if a == nil {
		return
	}

	snapshotter, ok := a.(motorSnapshotter)
	if !ok {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}

	snapshot := snapshotter.Snapshot()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&snapshot)
	serializer.SetMaxDepth(2)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type primitiveRsp struct {
	Index int    `json:"index"`
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
}

func (m *Monitor) listPrimitives(w http.ResponseWriter, _ *http.Request) {
	prims := m.manager.Primitives()

	rsp := make([]primitiveRsp, 0, len(prims))
	for i, p := range prims {
		entry := primitiveRsp{
			Index: i,
			Type:  fmt.Sprintf("%T", p),
		}

		if withID, ok := p.(interface{ ID() string }); ok {
			entry.ID = withID.ID()
		}

		rsp = append(rsp, entry)
	}

	writeJSON(w, rsp)
}

func (m *Monitor) ticks(w http.ResponseWriter, _ *http.Request) {
	if m.tracer == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	writeJSON(w, m.tracer.Summary())
}

func (m *Monitor) findActuatorOr404(
	w http.ResponseWriter,
	name string,
) actuator.Actuator {
	for _, a := range m.manager.Actuators() {
		if a.Name() == name {
			return a
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Actuator not found"))
	dieOnErr(err)

	return nil
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

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if s := r.URL.Query().Get("seconds"); s != "" {
		seconds, err := strconv.ParseFloat(s, 64)
		if err != nil || seconds <= 0 {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Error: invalid seconds %q", s)
			return
		}

		duration = time.Duration(seconds * float64(time.Second))
	}

	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	time.Sleep(duration)

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
