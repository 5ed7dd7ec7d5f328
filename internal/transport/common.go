// Package transport runs the paced UDP sender and the batch-draining
// receiver on top of internal/wire framing and internal/uep's
// encoder/decoder, grounded on the original's data_server/data_client
// templates (data_client_server.hpp): a single goroutine owns each
// side's mutable state, commands reach it only over channels, and
// context.Context cancellation stands in for the original's
// Cancelled/stop() signal rather than a propagated sentinel error.
package transport

import (
	"context"
	"sync"
)

// MaxDatagramSize is the largest UDP payload this package will ever
// read or write in one syscall, matching the original's fixed receive
// buffer.
const MaxDatagramSize = 0x10000

// StopHandler is invoked, at most once per Run, when the sender or
// receiver stops, successfully or otherwise. err is nil on a clean
// stop (context cancellation or, for the sender, source exhaustion).
type StopHandler func(err error)

// stopHandlerList is the shared AddStopHandler/CancelStopHandlers/
// invoke bookkeeping used by both Sender and Receiver, grounded on the
// original's stop_handlers list in data_server/data_client.
type stopHandlerList struct {
	mu       sync.Mutex
	handlers []StopHandler
	fired    bool
}

// add registers h to be called when the owner stops.
func (l *stopHandlerList) add(h StopHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = append(l.handlers, h)
}

// cancel invokes every registered handler once with context.Canceled,
// as if the owner had just stopped, then clears the list so fire won't
// invoke them again. It returns how many handlers were notified this
// way, mirroring the original's cancel_stop_handlers.
func (l *stopHandlerList) cancel() int {
	l.mu.Lock()
	if l.fired {
		l.mu.Unlock()
		return 0
	}
	l.fired = true
	handlers := l.handlers
	l.handlers = nil
	l.mu.Unlock()

	for _, h := range handlers {
		h(context.Canceled)
	}
	return len(handlers)
}

// fire invokes every remaining registered handler exactly once.
func (l *stopHandlerList) fire(err error) {
	l.mu.Lock()
	if l.fired {
		l.mu.Unlock()
		return
	}
	l.fired = true
	handlers := l.handlers
	l.handlers = nil
	l.mu.Unlock()

	for _, h := range handlers {
		h(err)
	}
}
