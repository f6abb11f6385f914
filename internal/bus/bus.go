// Package bus provides the bounded FIFO queues connecting the stream
// ingestor, the refresh worker, and the arbitrage engine.
package bus

import "github.com/ffxivarb/gilarb/internal/domain"

// Bus owns the three event queues. Each queue has multiple producers at
// most and exactly one consumer; event ownership transfers with the
// send, so no payload is mutated after it is enqueued.
//
//	Ingest:          stream ingestor  -> engine
//	RefreshRequests: engine           -> refresh worker
//	RefreshResults:  refresh worker   -> engine
type Bus struct {
	Ingest          chan domain.Event
	RefreshRequests chan domain.RefreshRequest
	RefreshResults  chan domain.Event
}

// New creates a Bus whose queues are each bounded at size.
func New(size int) *Bus {
	return &Bus{
		Ingest:          make(chan domain.Event, size),
		RefreshRequests: make(chan domain.RefreshRequest, size),
		RefreshResults:  make(chan domain.Event, size),
	}
}
