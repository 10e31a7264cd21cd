// Package control holds the hot-reloadable configuration snapshot and
// ephemeral runtime metrics: a ConfigStore for the live ProxyConfig
// (allowed_ports and the three idle timeouts, reloaded on SIGHUP) and a
// MetricsRegistry for the accepted/rejected connection counters.
// Metrics are in-memory only — the proxy does not persist them,
// matching the "persistent metrics" Non-goal.
package control
