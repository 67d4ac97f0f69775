// Package logger wires the node's subsystem loggers onto a shared
// backend that fans out to stdout and a rotated log file.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrick/logrotate/rotator"

	"github.com/dagchain/pagechain/internal/logs"
)

// rotatingWriter is an io.Writer that echoes to stdout and forwards to
// whichever rotator slot it points at. logWriter and errLogWriter in
// the node's predecessor were two copy-pasted types differing only in
// which package-level rotator they wrote to; here a single type
// indirects through a pointer to that slot instead, so the all-levels
// and errors-only destinations share one Write implementation.
type rotatingWriter struct {
	slot **rotator.Rotator
}

func (w rotatingWriter) Write(p []byte) (int, error) {
	initMu.Lock()
	ready := initiated
	r := *w.slot
	initMu.Unlock()
	if ready {
		os.Stdout.Write(p)
		r.Write(p)
	}
	return len(p), nil
}

var (
	// LogRotator rotates the all-levels log file. Closed on shutdown.
	LogRotator *rotator.Rotator
	// ErrLogRotator rotates the errors-and-above log file. Closed on shutdown.
	ErrLogRotator *rotator.Rotator

	backendLog = logs.NewBackend([]*logs.BackendWriter{
		logs.NewAllLevelsBackendWriter(rotatingWriter{&LogRotator}),
		logs.NewErrorBackendWriter(rotatingWriter{&ErrLogRotator}),
	})

	initMu sync.Mutex

	nodeLog  = backendLog.Logger("NODE")
	chanLog  = backendLog.Logger("CHAN")
	minrLog  = backendLog.Logger("MINR")
	netwLog  = backendLog.Logger("NETW")
	cmdcLog  = backendLog.Logger("CMDC")
	storLog  = backendLog.Logger("STOR")
	cnfgLog  = backendLog.Logger("CNFG")
	valdLog  = backendLog.Logger("VALD")

	initiated = false
)

// SubsystemTags enumerates the node's logging subsystems.
var SubsystemTags = struct {
	NODE, CHAN, MINR, NETW, CMDC, STOR, CNFG, VALD string
}{
	NODE: "NODE",
	CHAN: "CHAN",
	MINR: "MINR",
	NETW: "NETW",
	CMDC: "CMDC",
	STOR: "STOR",
	CNFG: "CNFG",
	VALD: "VALD",
}

var subsystemLoggers = map[string]*logs.Logger{
	SubsystemTags.NODE: nodeLog,
	SubsystemTags.CHAN: chanLog,
	SubsystemTags.MINR: minrLog,
	SubsystemTags.NETW: netwLog,
	SubsystemTags.CMDC: cmdcLog,
	SubsystemTags.STOR: storLog,
	SubsystemTags.CNFG: cnfgLog,
	SubsystemTags.VALD: valdLog,
}

// Get returns the logger registered for the given subsystem tag.
func Get(subsystemTag string) (*logs.Logger, bool) {
	l, ok := subsystemLoggers[subsystemTag]
	return l, ok
}

// InitLogRotators points the rotators at real files and must be called
// before any subsystem logger is used. Guarded by initMu so a
// concurrent Close (e.g. a node shutting down while another goroutine
// is still starting up) can't observe a half-initialized rotator pair.
func InitLogRotators(logFile, errLogFile string) {
	initMu.Lock()
	defer initMu.Unlock()
	LogRotator = initLogRotator(logFile)
	ErrLogRotator = initLogRotator(errLogFile)
	initiated = true
}

func initLogRotator(logFile string) *rotator.Rotator {
	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %s\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %s\n", err)
		os.Exit(1)
	}
	return r
}

// SetLogLevel sets the level for a single subsystem. Unknown subsystems
// are ignored.
func SetLogLevel(subsystemID string, level logs.Level) {
	if logger, ok := subsystemLoggers[subsystemID]; ok {
		logger.SetLevel(level)
	}
}

// SetLogLevels sets the level for every subsystem logger.
func SetLogLevels(level logs.Level) {
	for subsystemID := range subsystemLoggers {
		SetLogLevel(subsystemID, level)
	}
}

// Close closes both log rotators and marks the backend uninitialized,
// so any Write racing against shutdown falls back to a no-op instead
// of writing to a closed rotator. Safe to call even if InitLogRotators
// was never called; safe to call again after a subsequent
// InitLogRotators re-opens a fresh pair, as happens when a node
// restarts in the same process.
func Close() {
	initMu.Lock()
	defer initMu.Unlock()
	initiated = false
	if LogRotator != nil {
		_ = LogRotator.Close()
	}
	if ErrLogRotator != nil {
		_ = ErrLogRotator.Close()
	}
}
