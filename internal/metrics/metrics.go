// Package metrics provides application-level metrics collection.
// This is a lightweight metrics foundation using atomic counters.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics holds application metrics using atomic counters for thread safety.
type Metrics struct {
	// RPC metrics
	rpcCallsTotal   atomic.Int64
	rpcErrorsTotal  atomic.Int64
	rpcLatencyNanos atomic.Int64

	// Per-adapter RPC calls
	injectedRPCCalls atomic.Int64
	bridgeRPCCalls   atomic.Int64

	// Supervisor metrics
	reloadsTotal   atomic.Int64
	failoversTotal atomic.Int64
	staleEvents    atomic.Int64

	// Dispatch metrics
	dispatchTotal  atomic.Int64
	dispatchErrors atomic.Int64
}

// Global is the global metrics instance.
// Use this for recording metrics throughout the application.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// RecordRPCCall records an RPC call with its duration and success status.
// kind is the adapter kind issuing the call ("injected" or "bridge").
func (m *Metrics) RecordRPCCall(kind string, duration time.Duration, err error) {
	m.rpcCallsTotal.Add(1)
	m.rpcLatencyNanos.Add(duration.Nanoseconds())

	if err != nil {
		m.rpcErrorsTotal.Add(1)
	}

	switch kind {
	case "injected":
		m.injectedRPCCalls.Add(1)
	case "bridge":
		m.bridgeRPCCalls.Add(1)
	}
}

// RecordReload records a supervisor reload. fallback is true when the
// reload ended on the fallback adapter.
func (m *Metrics) RecordReload(fallback bool) {
	m.reloadsTotal.Add(1)
	if fallback {
		m.failoversTotal.Add(1)
	}
}

// RecordStaleEvent records an adapter event dropped because its listener
// generation was superseded.
func (m *Metrics) RecordStaleEvent() {
	m.staleEvents.Add(1)
}

// RecordDispatch records a transaction dispatch attempt.
func (m *Metrics) RecordDispatch(err error) {
	m.dispatchTotal.Add(1)
	if err != nil {
		m.dispatchErrors.Add(1)
	}
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	RPCCallsTotal    int64 `json:"rpc_calls_total"`
	RPCErrorsTotal   int64 `json:"rpc_errors_total"`
	RPCLatencyNanos  int64 `json:"rpc_latency_nanos"`
	InjectedRPCCalls int64 `json:"injected_rpc_calls"`
	BridgeRPCCalls   int64 `json:"bridge_rpc_calls"`
	ReloadsTotal     int64 `json:"reloads_total"`
	FailoversTotal   int64 `json:"failovers_total"`
	StaleEvents      int64 `json:"stale_events"`
	DispatchTotal    int64 `json:"dispatch_total"`
	DispatchErrors   int64 `json:"dispatch_errors"`

	RPCLatencyAvgMs float64 `json:"rpc_latency_avg_ms"`
	FailoverRate    float64 `json:"failover_rate"`
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		RPCCallsTotal:    m.rpcCallsTotal.Load(),
		RPCErrorsTotal:   m.rpcErrorsTotal.Load(),
		RPCLatencyNanos:  m.rpcLatencyNanos.Load(),
		InjectedRPCCalls: m.injectedRPCCalls.Load(),
		BridgeRPCCalls:   m.bridgeRPCCalls.Load(),
		ReloadsTotal:     m.reloadsTotal.Load(),
		FailoversTotal:   m.failoversTotal.Load(),
		StaleEvents:      m.staleEvents.Load(),
		DispatchTotal:    m.dispatchTotal.Load(),
		DispatchErrors:   m.dispatchErrors.Load(),
		RPCLatencyAvgMs:  m.RPCLatencyAvgMs(),
		FailoverRate:     m.FailoverRate(),
	}
}

// RPCCallsTotal returns the total number of RPC calls made.
func (m *Metrics) RPCCallsTotal() int64 {
	return m.rpcCallsTotal.Load()
}

// RPCErrorsTotal returns the total number of RPC errors.
func (m *Metrics) RPCErrorsTotal() int64 {
	return m.rpcErrorsTotal.Load()
}

// RPCLatencyAvgMs returns the average RPC latency in milliseconds.
// Returns 0 if no calls have been made.
func (m *Metrics) RPCLatencyAvgMs() float64 {
	calls := m.rpcCallsTotal.Load()
	if calls == 0 {
		return 0
	}
	nanos := m.rpcLatencyNanos.Load()
	return float64(nanos) / float64(calls) / 1e6
}

// FailoverRate returns the share of reloads that ended on the fallback
// adapter as a percentage (0-100). Returns 0 if no reloads have occurred.
func (m *Metrics) FailoverRate() float64 {
	reloads := m.reloadsTotal.Load()
	if reloads == 0 {
		return 0
	}
	return float64(m.failoversTotal.Load()) / float64(reloads) * 100
}

// Reset resets all metrics to zero.
// Useful for testing.
func (m *Metrics) Reset() {
	m.rpcCallsTotal.Store(0)
	m.rpcErrorsTotal.Store(0)
	m.rpcLatencyNanos.Store(0)
	m.injectedRPCCalls.Store(0)
	m.bridgeRPCCalls.Store(0)
	m.reloadsTotal.Store(0)
	m.failoversTotal.Store(0)
	m.staleEvents.Store(0)
	m.dispatchTotal.Store(0)
	m.dispatchErrors.Store(0)
}
