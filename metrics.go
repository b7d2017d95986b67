package corvid

import "sync/atomic"

// Metrics holds low-overhead atomic connection/request counters for a
// Server, exposing runtime counts off the owning type in the style of
// eventloop.Metrics, scaled down to what a serving engine actually
// needs for its connection lifecycle and error categories.
type Metrics struct {
	acceptedConnections atomic.Uint64
	activeConnections   atomic.Int64
	requestsServed      atomic.Uint64
	parseErrors         atomic.Uint64
	ioErrors            atomic.Uint64
}

// AcceptedConnections returns the total number of connections ever
// accepted.
func (m *Metrics) AcceptedConnections() uint64 { return m.acceptedConnections.Load() }

// ActiveConnections returns the number of connections currently open.
func (m *Metrics) ActiveConnections() int64 { return m.activeConnections.Load() }

// RequestsServed returns the number of requests that reached a
// handler and produced a serialized response.
func (m *Metrics) RequestsServed() uint64 { return m.requestsServed.Load() }

// ParseErrors returns the number of connections closed due to a
// malformed request head (spec.md §7's BadRequestLine/BadContentLength).
func (m *Metrics) ParseErrors() uint64 { return m.parseErrors.Load() }

// IOErrors returns the number of connections closed due to a
// recv/send failure (spec.md §7's Io category). Accept failures are
// not counted.
func (m *Metrics) IOErrors() uint64 { return m.ioErrors.Load() }

func (m *Metrics) connectionAccepted() {
	m.acceptedConnections.Add(1)
	m.activeConnections.Add(1)
}

func (m *Metrics) connectionClosed() {
	m.activeConnections.Add(-1)
}

func (m *Metrics) requestServed() {
	m.requestsServed.Add(1)
}

func (m *Metrics) parseError() {
	m.parseErrors.Add(1)
}

func (m *Metrics) ioError() {
	m.ioErrors.Add(1)
}
