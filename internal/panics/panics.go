// Package panics wraps goroutine launches so an internal invariant
// violation is logged with its stack trace before the process exits,
// instead of silently vanishing inside an unsupervised goroutine.
package panics

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/dagchain/pagechain/internal/logs"
)

const handlerTimeout = 5 * time.Second

// HandlePanic recovers a panic, logs it along with the stack trace
// captured at goroutine launch, and exits the process.
func HandlePanic(log *logs.Logger, goroutineStackTrace []byte) {
	err := recover()
	if err == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		log.Criticalf("fatal error: %+v", err)
		if goroutineStackTrace != nil {
			log.Criticalf("goroutine launch stack trace: %s", goroutineStackTrace)
		}
		log.Criticalf("panic stack trace: %s", debug.Stack())
		log.Backend().Close()
		close(done)
	}()

	select {
	case <-time.After(handlerTimeout):
		fmt.Fprintln(os.Stderr, "could not log fatal error in time, exiting")
	case <-done:
	}
	os.Exit(1)
}

// GoroutineWrapperFunc returns a spawn function that runs f in a new
// goroutine, recovering and logging any panic instead of crashing the
// whole process silently.
func GoroutineWrapperFunc(log *logs.Logger) func(name string, f func()) {
	return func(name string, f func()) {
		stackTrace := debug.Stack()
		go func() {
			defer HandlePanic(log, stackTrace)
			f()
		}()
	}
}

// Exit logs reason as a fatal condition and terminates the process.
// Used for startup failures such as a bind failure or key load failure.
func Exit(log *logs.Logger, reason string) {
	done := make(chan struct{})
	go func() {
		log.Criticalf("exiting: %s", reason)
		log.Backend().Close()
		close(done)
	}()

	select {
	case <-time.After(handlerTimeout):
		fmt.Fprintln(os.Stderr, "could not exit gracefully")
	case <-done:
	}
	os.Exit(1)
}
