// Package monitoring carries the pipeline's observability surface: the
// package-level diagnostic logger and the recovery counters the monitor
// webserver exposes.
package monitoring

import "log"

// Logf emits pipeline diagnostics (detector degradation, catalog misses,
// persistence failures). It defaults to log.Printf; a host application can
// redirect it with SetLogger, and tests can mute it the same way.
var Logf = log.Printf

// SetLogger replaces the package logger. nil installs a no-op so log sites
// never need a guard.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	Logf = f
}
