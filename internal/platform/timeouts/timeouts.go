// Package timeouts defines shared timeout constants used across crabpot
// processes.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing the crabpot gRPC server.
const GRPCDial = 2 * time.Second

// GRPCRequest caps the time allowed for a single CLI request.
const GRPCRequest = 5 * time.Second

// Shutdown limits how long a process waits for telemetry flushes and
// in-flight requests during graceful shutdown.
const Shutdown = 5 * time.Second

// NotifierDrain limits how long the event notifier waits for subscribers to
// drain queued events on close.
const NotifierDrain = 2 * time.Second
