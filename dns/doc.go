// Package dns implements the collapsing DNS resolution cache: concurrent
// Resolve calls for the same host:port are coalesced into a single
// blocking lookup, results are cached and periodically refreshed while in
// demand, and stale unused entries are evicted. A TimedPool plays the role
// of the fixed-size DNS resolution thread pool, executing both the
// periodic refresh bookkeeping and the blocking lookups themselves.
package dns
