package dns

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"
)

// ErrNotCached is passed to a Resolve callback when no fresh cached
// result exists and no resolution is currently in flight to wait on.
var ErrNotCached = errors.New("dns: no fresh cached result")

// Options mirrors the original resolver's tunables.
type Options struct {
	// NumResolutionWorkers bounds the number of concurrent blocking
	// lookups. Concurrent Resolve calls for the same host:port are
	// always collapsed into one lookup regardless of this value.
	NumResolutionWorkers int
	// CacheTTL is how long a successful result stays usable after the
	// last successful lookup; failed refreshes do not extend it.
	CacheTTL time.Duration
	// RefreshPeriod is how often an in-demand entry is re-resolved.
	RefreshPeriod time.Duration
	// RefreshDuration is how long an entry keeps refreshing after its
	// last use before the cache lets it expire.
	RefreshDuration time.Duration
}

// DefaultOptions returns the same defaults as the original resolver.
func DefaultOptions() Options {
	return Options{
		NumResolutionWorkers: 8,
		CacheTTL:             300 * time.Second,
		RefreshPeriod:        75 * time.Second,
		RefreshDuration:      3600 * time.Second,
	}
}

// Callback receives the resolved address, or a non-nil error if
// resolution failed or no cached result was available. Called exactly
// once, possibly synchronously from within Resolve.
type Callback func(addr net.IP, err error)

type cacheEntry struct {
	callbacks              []Callback
	addr                   net.IP
	usedAt                 time.Time
	resolvedAt             time.Time
	successfullyResolvedAt time.Time
}

// Resolver is a collapsing, self-refreshing DNS cache keyed by
// "host:port" strings.
type Resolver struct {
	opt   Options
	mu    sync.Mutex
	cache map[string]*cacheEntry
	pool  *TimedPool
}

// NewResolver starts a resolver with its own TimedPool of opt's size.
func NewResolver(opt Options) *Resolver {
	return &Resolver{
		opt:   opt,
		cache: make(map[string]*cacheEntry),
		pool:  NewTimedPool(opt.NumResolutionWorkers),
	}
}

// Close stops the backing TimedPool.
func (r *Resolver) Close() { r.pool.Close() }

// Resolve looks up hostPort ("host:port"), calling cb exactly once.
// Concurrent calls for the same hostPort share a single underlying
// lookup. A malformed hostPort (missing ":port") is not rejected here:
// it still gets a cache entry, the same as any other key, so that a
// client that keeps sending the same bad CONNECT target doesn't trigger
// a fresh lookup attempt per request; resolveSync is where the
// malformed-key check actually happens.
func (r *Resolver) Resolve(hostPort string, cb Callback) {
	now := time.Now()
	r.mu.Lock()
	entry, ok := r.cache[hostPort]
	if !ok {
		entry = &cacheEntry{callbacks: []Callback{cb}}
		r.cache[hostPort] = entry
		r.mu.Unlock()
		r.pool.Schedule(now, func() { r.processEntry(hostPort) })
		return
	}
	if len(entry.callbacks) > 0 {
		entry.callbacks = append(entry.callbacks, cb)
		r.mu.Unlock()
		return
	}
	var addr net.IP
	var resolveErr error
	if entry.successfullyResolvedAt.Add(r.opt.CacheTTL).After(now) {
		addr = entry.addr
	} else {
		resolveErr = ErrNotCached
	}
	if entry.usedAt.Before(now) {
		entry.usedAt = now
	}
	r.mu.Unlock()
	cb(addr, resolveErr)
}

// processEntry is scheduled on the TimedPool: it resolves hostPort if due
// or in demand, fans the result out to waiters, evicts the entry if it
// has gone cold, and otherwise reschedules itself for the next deadline.
func (r *Resolver) processEntry(hostPort string) {
	now := time.Now()
	r.mu.Lock()
	entry, ok := r.cache[hostPort]
	if !ok {
		r.mu.Unlock()
		return
	}
	if len(entry.callbacks) == 0 && !entry.usedAt.Add(r.opt.RefreshDuration).After(now) {
		delete(r.cache, hostPort)
		r.mu.Unlock()
		return
	}
	shouldResolve := len(entry.callbacks) > 0 || !entry.resolvedAt.Add(r.opt.RefreshPeriod).After(now)
	r.mu.Unlock()

	if shouldResolve {
		addr, err := resolveSync(hostPort)
		now = time.Now()

		r.mu.Lock()
		entry, ok = r.cache[hostPort]
		var callbacks []Callback
		if ok {
			if len(entry.callbacks) > 0 {
				entry.usedAt = now
			}
			callbacks = entry.callbacks
			entry.callbacks = nil
			entry.resolvedAt = now
			if err == nil {
				entry.addr = addr
				entry.successfullyResolvedAt = now
			}
		}
		r.mu.Unlock()

		for _, cb := range callbacks {
			cb(addr, err)
		}
	}

	r.mu.Lock()
	entry, ok = r.cache[hostPort]
	if !ok {
		r.mu.Unlock()
		return
	}
	next := entry.resolvedAt.Add(r.opt.RefreshPeriod)
	if until := entry.usedAt.Add(r.opt.RefreshDuration); until.Before(next) {
		next = until
	}
	r.mu.Unlock()
	r.pool.Schedule(next, func() { r.processEntry(hostPort) })
}

// resolveSync performs the actual blocking lookup, the Go analogue of a
// synchronous AF_INET getaddrinfo() call.
func resolveSync(hostPort string) (net.IP, error) {
	host, _, err := net.SplitHostPort(hostPort)
	if err != nil {
		return nil, fmt.Errorf("dns: malformed host:port %q: %w", hostPort, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		log.Printf("dns: lookup failed for %q: %v", hostPort, err)
		return nil, err
	}
	log.Printf("dns: resolved %s as %s", hostPort, ips[0])
	return ips[0], nil
}
