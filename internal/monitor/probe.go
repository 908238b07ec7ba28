package monitor

import (
	"net"
	"time"
)

// Probe answers whether the local network can reach the outside world.
type Probe interface {
	Reachable() bool
}

// DialProbe checks connectivity with a short TCP dial against a well-known
// endpoint (a public DNS resolver by default).
type DialProbe struct {
	addr    string
	timeout time.Duration
}

// NewDialProbe creates a dial-based connectivity probe.
func NewDialProbe(addr string, timeout time.Duration) *DialProbe {
	if addr == "" {
		addr = "8.8.8.8:53"
	}
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return &DialProbe{addr: addr, timeout: timeout}
}

func (p *DialProbe) Reachable() bool {
	conn, err := net.DialTimeout("tcp", p.addr, p.timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
