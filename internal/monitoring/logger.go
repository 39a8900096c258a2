// Package monitoring holds the diagnostic logger shared by library packages.
package monitoring

import "log"

// Logf receives diagnostics such as discarded gaze streams. It defaults to
// log.Printf and is swapped with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf. nil mutes diagnostics.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
