// Package monitoring carries the shared diagnostic logger.
package monitoring

import "log"

// Logf is the process-wide diagnostic logger, defaulting to log.Printf.
// Replace it with SetLogger to redirect or silence pipeline output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
