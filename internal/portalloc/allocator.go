// Package portalloc assigns unique network ports to tool instances.
//
// Ports are handed out as leases: a lease binds one tool instance to one
// port until released. The allocator never grants the same port to two
// concurrent leases, skips ports published as other tools' defaults, and
// probes the OS before granting so an externally occupied port is not
// double-booked.
package portalloc

import (
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/KNIGHTPROJEKS-0/LANCELOTT/internal/types"
)

const (
	// DefaultBasePort is the start of the scan range when no preferred port
	// is usable. Matches the catalog's published port block.
	DefaultBasePort = 7001

	// DefaultWindow bounds how many ports above the base are scanned before
	// giving up with a PORT_EXHAUSTION error.
	DefaultWindow = 1000
)

// Lease is a reservation binding a tool instance to a port.
type Lease struct {
	LeaseID    types.ID  `json:"lease_id"`
	ToolName   string    `json:"tool_name"`
	Port       int       `json:"port"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// PortReservations reports default ports published by descriptors other than
// the named tool. The tool registry satisfies this.
type PortReservations interface {
	ReservedPorts(skipTool string) map[int]string
}

// PortAllocator grants and releases port leases.
type PortAllocator interface {
	// Acquire leases preferredPort when it is free, otherwise the first free
	// port scanning upward from the configured base. Fails with a
	// PORT_EXHAUSTION error when the search window is exhausted.
	// preferredPort <= 0 means no preference.
	Acquire(toolName string, preferredPort int) (Lease, error)

	// Release frees the lease. Releasing an unknown or already-released
	// lease is a no-op, so cleanup paths can release unconditionally.
	Release(leaseID types.ID)

	// ActiveLeases returns copies of all active leases ordered by port.
	ActiveLeases() []Lease

	// Count returns the number of active leases.
	Count() int
}

// DefaultPortAllocator implements PortAllocator with one allocation lock
// held around the whole search-and-reserve step, which is what makes
// concurrent Acquire calls collision-free.
type DefaultPortAllocator struct {
	mu       sync.Mutex
	leases   map[types.ID]Lease
	byPort   map[int]types.ID
	base     int
	window   int
	reserved PortReservations
	probe    func(port int) bool
}

// Option configures a DefaultPortAllocator.
type Option func(*DefaultPortAllocator)

// WithRange sets the base port and search window size.
func WithRange(base, window int) Option {
	return func(a *DefaultPortAllocator) {
		a.base = base
		a.window = window
	}
}

// WithProbe replaces the OS availability probe. Tests use this to avoid
// binding real sockets.
func WithProbe(probe func(port int) bool) Option {
	return func(a *DefaultPortAllocator) {
		a.probe = probe
	}
}

// NewPortAllocator creates a DefaultPortAllocator. reservations may be nil
// when no descriptor ports need to be skipped.
func NewPortAllocator(reservations PortReservations, opts ...Option) *DefaultPortAllocator {
	a := &DefaultPortAllocator{
		leases:   make(map[types.ID]Lease),
		byPort:   make(map[int]types.ID),
		base:     DefaultBasePort,
		window:   DefaultWindow,
		reserved: reservations,
		probe:    isPortAvailable,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Acquire leases a port for toolName. The preferred port is tried first;
// otherwise the allocator scans upward from base for the first port that has
// no active lease, is not another descriptor's default, and passes the OS
// probe.
func (a *DefaultPortAllocator) Acquire(toolName string, preferredPort int) (Lease, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	reserved := map[int]string{}
	if a.reserved != nil {
		reserved = a.reserved.ReservedPorts(toolName)
	}

	if preferredPort > 0 && a.freeLocked(preferredPort, reserved) {
		return a.grantLocked(toolName, preferredPort), nil
	}

	for port := a.base; port < a.base+a.window; port++ {
		if port == preferredPort {
			continue // already tried
		}
		if a.freeLocked(port, reserved) {
			return a.grantLocked(toolName, port), nil
		}
	}

	return Lease{}, types.NewPortExhaustionError(toolName, a.base, a.window)
}

// Release frees the lease. Unknown or already-released leases are ignored.
func (a *DefaultPortAllocator) Release(leaseID types.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	lease, exists := a.leases[leaseID]
	if !exists {
		return
	}

	delete(a.leases, leaseID)
	delete(a.byPort, lease.Port)
}

// ActiveLeases returns copies of all active leases ordered by port.
func (a *DefaultPortAllocator) ActiveLeases() []Lease {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Lease, 0, len(a.leases))
	for _, lease := range a.leases {
		out = append(out, lease)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Port < out[j].Port })
	return out
}

// Count returns the number of active leases.
func (a *DefaultPortAllocator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.leases)
}

// freeLocked reports whether port can be granted. Caller holds the lock.
func (a *DefaultPortAllocator) freeLocked(port int, reserved map[int]string) bool {
	if _, leased := a.byPort[port]; leased {
		return false
	}
	if _, taken := reserved[port]; taken {
		return false
	}
	return a.probe(port)
}

// grantLocked records and returns a new lease. Caller holds the lock.
func (a *DefaultPortAllocator) grantLocked(toolName string, port int) Lease {
	lease := Lease{
		LeaseID:    types.NewID(),
		ToolName:   toolName,
		Port:       port,
		AcquiredAt: time.Now(),
	}

	a.leases[lease.LeaseID] = lease
	a.byPort[port] = lease.LeaseID

	return lease
}

// isPortAvailable checks if a port can be bound on localhost.
func isPortAvailable(port int) bool {
	addr := fmt.Sprintf("localhost:%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	listener.Close()
	return true
}
