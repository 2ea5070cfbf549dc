package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/skeeterman007/bbs-fw/bbsfw"
	"github.com/skeeterman007/bbs-fw/config"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

var settingsFile = flag.String("f", "", "read daemon settings from TOML `file`")
var httpServe = flag.String("s", "", "start http server at [bindtohost][:]port")
var connTo = flag.String("c", "", "connection string, use tcp://[host]:[port] for TCP or [serialDevice] for direct serial connection")
var verbose = flag.Bool("v", false, "verbose logging")

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var conn *bbsfw.Connection[*config.Config]
var ring *eventRing
var opts settings

// To be set via go build -ldflags "-X main.buildVersion=$(git describe --dirty) -X main.buildDate=$(date -u +%FT%TZ)"
var buildVersion = "unspecified"
var buildDate = "unknown"

type eventRecord struct {
	Time  time.Time `json:"time"`
	Code  byte      `json:"code"`
	Data  uint16    `json:"data,omitempty"`
	Text  string    `json:"text"`
	Error bool      `json:"error,omitempty"`
}

// eventRing keeps the most recent controller event log entries for /events.
type eventRing struct {
	mu      sync.Mutex
	entries []eventRecord
	max     int
}

func newEventRing(max int) *eventRing { return &eventRing{max: max} }

func (r *eventRing) add(e bbsfw.EventLogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, eventRecord{
		Time:  time.Now(),
		Code:  e.Code,
		Data:  e.Data,
		Text:  e.String(),
		Error: e.IsError(),
	})
	if len(r.entries) > r.max {
		r.entries = r.entries[len(r.entries)-r.max:]
	}
}

func (r *eventRing) snapshot() []eventRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]eventRecord{}, r.entries...)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	e := json.NewEncoder(w)
	e.SetIndent("", "    ")
	e.Encode(v)
}

func httpError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(code)
	w.Write([]byte(err.Error() + "\n"))
}

func deviceError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, bbsfw.ErrNotConnected):
		code = http.StatusServiceUnavailable
	case errors.Is(err, bbsfw.ErrTimeout):
		code = http.StatusGatewayTimeout
	}
	httpError(w, code, err)
}

func getPorts(w http.ResponseWriter, r *http.Request) {
	ports, err := bbsfw.ListPorts()
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, ports)
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	fw := conn.FirmwareVersion()
	v := struct {
		Version       string `json:"version"`
		BuildDate     string `json:"build_date"`
		State         string `json:"state"`
		Firmware      string `json:"firmware,omitempty"`
		ConfigVersion byte   `json:"config_version,omitempty"`
	}{
		Version:       buildVersion,
		BuildDate:     buildDate,
		State:         conn.State().String(),
		Firmware:      fw.Version,
		ConfigVersion: fw.ConfigVersion,
	}
	writeJSON(w, v)
}

func getEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, ring.snapshot())
}

func getConfig(w http.ResponseWriter, r *http.Request) {
	rec, err := conn.ReadConfiguration(opts.RequestTimeout)
	if err != nil {
		deviceError(w, err)
		return
	}
	writeJSON(w, rec)
}

func setConfig(w http.ResponseWriter, r *http.Request) {
	var rec config.Config
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	if err := rec.Validate(); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	if err := conn.WriteConfiguration(&rec, opts.RequestTimeout); err != nil {
		deviceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("\"OK\"\n"))
}

// patchConfig applies an RFC 7386 merge patch to the record currently on the
// controller and writes the result back.
func patchConfig(w http.ResponseWriter, r *http.Request) {
	current, err := conn.ReadConfiguration(opts.RequestTimeout)
	if err != nil {
		deviceError(w, err)
		return
	}
	orig, err := json.Marshal(current)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	patch, err := io.ReadAll(r.Body)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	merged, err := jsonpatch.MergePatch(orig, patch)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	var rec config.Config
	if err := json.Unmarshal(merged, &rec); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	if err := rec.Validate(); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	if err := conn.WriteConfiguration(&rec, opts.RequestTimeout); err != nil {
		deviceError(w, err)
		return
	}
	writeJSON(w, &rec)
}

func setEventLog(w http.ResponseWriter, r *http.Request) {
	var enable bool
	if err := json.NewDecoder(r.Body).Decode(&enable); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	if err := conn.SetEventLogging(enable); err != nil {
		deviceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("\"OK\"\n"))
}

func main() {
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp: true,
		})
	}

	var err error
	opts, err = loadSettings(*settingsFile)
	if err != nil {
		log.Fatal(err)
	}
	if *connTo != "" {
		opts.Link = *connTo
	}
	if *httpServe != "" {
		opts.HTTPAddr = *httpServe
	}
	if opts.Link == "" {
		log.Fatal("Need connection string in -c option or link in the settings file")
	}
	if opts.HTTPAddr == "" {
		log.Fatal("Need http bind address in -s option or http_addr in the settings file")
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	done := make(chan os.Signal, 1)

	signal.Notify(done,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)

	go func() {
		<-done

		if *memprofile != "" {
			f, err := os.Create(*memprofile)
			if err != nil {
				log.Fatal("could not create memory profile: ", err)
			}
			runtime.GC() // get up-to-date statistics
			if err := pprof.WriteHeapProfile(f); err != nil {
				log.Fatal("could not write memory profile: ", err)
			}
			f.Close()
		}
		if *cpuprofile != "" {
			pprof.StopCPUProfile()
		}
		os.Exit(0)
	}()

	conn = bbsfw.NewConnection[*config.Config](config.Codec{})
	ring = newEventRing(opts.EventHistory)
	conn.OnEventLog(ring.add)

	lost := make(chan struct{}, 1)
	conn.OnDisconnected(func() {
		log.Warn("controller connection lost")
		select {
		case lost <- struct{}{}:
		default:
		}
	})

	// accept :[portnum] as well as [portnum]
	if i, err := strconv.Atoi(opts.HTTPAddr); err == nil {
		opts.HTTPAddr = fmt.Sprintf(":%d", i)
	}

	router := mux.NewRouter()

	router.HandleFunc("/ports", getPorts).Methods("GET")
	router.HandleFunc("/version", versionInfo).Methods("GET")
	router.HandleFunc("/events", getEvents).Methods("GET")
	router.HandleFunc("/config", getConfig).Methods("GET")
	router.HandleFunc("/config", setConfig).Methods("POST")
	router.HandleFunc("/config", patchConfig).Methods("PATCH")
	router.HandleFunc("/eventlog", setEventLog).Methods("POST")

	h := &http.Server{Addr: opts.HTTPAddr, Handler: router}
	go func() { log.Error(h.ListenAndServe()) }()

	for {
		// a stale loss signal from before this attempt is meaningless
		select {
		case <-lost:
		default:
		}
		v, err := conn.Connect(opts.Link, opts.ConnectTimeout)
		if err != nil {
			log.Error(err)
			<-time.After(opts.ReconnectDelay)
			continue
		}
		log.Infof("controller firmware %s, config layout v%d", v.Version, v.ConfigVersion)
		if opts.EventLog {
			if err := conn.SetEventLogging(true); err != nil {
				log.Warnf("could not enable the controller event log: %v", err)
			}
		}
		<-lost
		<-time.After(opts.ReconnectDelay)
	}
}
