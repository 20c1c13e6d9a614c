package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPChecker probes a target by opening a TCP connection. Used for
// placements that expose no HTTP health path, such as database-facing
// workloads.
type TCPChecker struct {
	// Address is the host:port the probe connects to.
	Address string

	// Timeout bounds the connection attempt.
	Timeout time.Duration
}

// NewTCPChecker creates a checker for the given address.
func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{
		Address: address,
		Timeout: 5 * time.Second,
	}
}

// WithTimeout sets the connection timeout.
func (t *TCPChecker) WithTimeout(timeout time.Duration) *TCPChecker {
	t.Timeout = timeout
	return t
}

// Check runs one probe. A completed dial is healthy; the connection is
// closed immediately, nothing is written.
func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	dialer := &net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("connection failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	conn.Close()

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("TCP connection to %s succeeded", t.Address),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the probe mechanism.
func (t *TCPChecker) Type() CheckType {
	return CheckTypeTCP
}
