package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with structured logging
//
// Usage in defer statements of long-lived goroutines:
//
//	go func() {
//	    defer observability.RecoverPanic(logger, "replica health check")
//	    // ... loop that might panic
//	}()
//
// The panic is NOT re-raised; the goroutine returns normally.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}
