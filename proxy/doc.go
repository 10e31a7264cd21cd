// Package proxy wires the acceptor, parser, DNS resolver, connector, and
// forwarder into a running HTTP CONNECT tunnel proxy: each accepted
// connection flows through parse -> allow-list check -> resolve ->
// connect -> forward, with a ConfigStore/MetricsRegistry control plane
// reloadable on SIGHUP.
package proxy
