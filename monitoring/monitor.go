// Package monitoring turns a cache into a web server so that it can be
// inspected and driven while an experiment runs.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"

	// Enable profiling
	_ "net/http/pprof"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/l1es/mem/cache"
	"github.com/sarchlab/l1es/monitoring/web"
)

// Monitor serves a cache over HTTP. Every cache operation, from HTTP or from
// Do, runs under the monitor's lock.
type Monitor struct {
	lock  sync.Mutex
	cache *cache.Cache

	portNumber      int
	profileDuration time.Duration
	server          *http.Server

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a monitor for c.
func NewMonitor(c *cache.Cache) *Monitor {
	return &Monitor{
		cache:           c,
		profileDuration: time.Second,
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// refused and replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		logrus.WithField("port", portNumber).
			Warn("port not allowed for the monitoring server, using a random port")

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// Attach makes the monitor serve c from now on.
func (m *Monitor) Attach(c *cache.Cache) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.cache = c
}

// Do runs f with exclusive access to the cache.
func (m *Monitor) Do(f func(c *cache.Cache)) {
	m.lock.Lock()
	defer m.lock.Unlock()

	f(m.cache)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := newProgressBar(name, total)

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the page.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			bars = append(bars, b)
		}
	}

	m.progressBars = bars
}

// Handler returns the router that serves the API and the web page.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/config", m.config)
	r.HandleFunc("/api/stats", m.stats)
	r.HandleFunc("/api/sets", m.sets)
	r.HandleFunc("/api/set/{index}", m.set)
	r.HandleFunc("/api/field/{path}", m.field)
	r.HandleFunc("/api/access/{addr}", m.access)
	r.HandleFunc("/api/flush/{addr}", m.flush)
	r.HandleFunc("/api/decompose/{addr}", m.decompose)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts serving in the background and returns the URL of the
// page.
func (m *Monitor) StartServer() string {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	dieOnErr(err)

	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring cache with %s\n", url)

	go func() {
		err := m.server.Serve(listener)
		if !errors.Is(err, http.ErrServerClosed) {
			dieOnErr(err)
		}
	}()

	return url
}

// Shutdown stops the server started by StartServer.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) config(w http.ResponseWriter, _ *http.Request) {
	var config cache.Config
	m.Do(func(c *cache.Cache) { config = c.Config() })

	writeJSON(w, config)
}

func (m *Monitor) stats(w http.ResponseWriter, _ *http.Request) {
	var stats cache.Stats
	m.Do(func(c *cache.Cache) { stats = c.Stats() })

	writeJSON(w, stats)
}

func (m *Monitor) sets(w http.ResponseWriter, _ *http.Request) {
	var stats []cache.SetStats
	m.Do(func(c *cache.Cache) { stats = c.SetStats() })

	writeJSON(w, stats)
}

func (m *Monitor) set(w http.ResponseWriter, r *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil || index < 0 || index >= m.cache.NumSets() {
		http.Error(w, "set not found", http.StatusNotFound)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(m.cache.Set(index))
	serializer.SetMaxDepth(2)

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) field(w http.ResponseWriter, r *http.Request) {
	fields := strings.Split(mux.Vars(r)["path"], ".")

	m.lock.Lock()
	defer m.lock.Unlock()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(m.cache)
	serializer.SetMaxDepth(1)

	if err := serializer.SetEntryPoint(fields); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := serializer.Serialize(w)
	dieOnErr(err)
}

type accessRsp struct {
	Address uint64 `json:"address"`
	Tag     uint64 `json:"tag"`
	Index   int    `json:"index"`
	Offset  uint64 `json:"offset"`
	Hit     bool   `json:"hit"`
	Cycles  uint64 `json:"cycles"`
}

func (m *Monitor) access(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddr(w, r)
	if !ok {
		return
	}

	rsp := accessRsp{Address: addr}
	m.Do(func(c *cache.Cache) {
		fields := c.Decompose(addr)
		rsp.Tag, rsp.Index, rsp.Offset = fields.Tag, fields.Index, fields.Offset
		rsp.Hit, rsp.Cycles = c.Access(addr)
	})

	writeJSON(w, rsp)
}

type flushRsp struct {
	Address uint64 `json:"address"`
	Found   bool   `json:"found"`
}

func (m *Monitor) flush(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddr(w, r)
	if !ok {
		return
	}

	rsp := flushRsp{Address: addr}
	m.Do(func(c *cache.Cache) { rsp.Found = c.Flush(addr) })

	writeJSON(w, rsp)
}

type decomposeRsp struct {
	Address uint64 `json:"address"`
	Tag     uint64 `json:"tag"`
	Index   int    `json:"index"`
	Offset  uint64 `json:"offset"`
}

func (m *Monitor) decompose(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddr(w, r)
	if !ok {
		return
	}

	var fields cache.Address
	m.Do(func(c *cache.Cache) { fields = c.Decompose(addr) })

	writeJSON(w, decomposeRsp{
		Address: addr,
		Tag:     fields.Tag,
		Index:   fields.Index,
		Offset:  fields.Offset,
	})
}

func parseAddr(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	text := mux.Vars(r)["addr"]

	addr, err := strconv.ParseUint(text, 0, 64)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid address %q", text),
			http.StatusBadRequest)
		return 0, false
	}

	return addr, true
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := m.progressBars
	if bars == nil {
		bars = []*ProgressBar{}
	}

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
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(m.profileDuration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
