package proxy

import "time"

// Options aggregates every sub-component's tunables, the proxy-level
// allowed_ports allowlist, and the process-wide open-file-limit knob.
type Options struct {
	ListenAddr    string
	AcceptBacklog int

	MaxRequestSizeBytes int
	AcceptTimeout       time.Duration

	NumDNSResolutionThreads int
	DNSCacheTTL             time.Duration
	DNSCacheRefreshPeriod   time.Duration
	DNSCacheRefreshDuration time.Duration

	ConnectTimeout time.Duration

	ClientToServerBufferSizeBytes int
	ServerToClientBufferSizeBytes int
	ReadWriteTimeout              time.Duration

	// AllowedPorts restricts CONNECT targets to these ports (matched
	// against the substring after the colon in "host:port"). An empty
	// set allows connections to any port.
	AllowedPorts []string

	// MaxNumOpenFiles, if positive, raises RLIMIT_NOFILE to this value
	// on startup. Each open tunnel costs 6 fds: 2 sockets + 2 pipes (2
	// fds each) used as the forwarder's splice staging buffers.
	MaxNumOpenFiles uint64

	// CPU indices for the accept loop, parser reactor, connector
	// reactor, and forwarder reactor. Only AcceptCPU is acted on: Run
	// pins the accept loop to it unless it is negative. New does not
	// read ParserCPU, ConnectorCPU or ForwarderCPU, and the reactor
	// goroutines are not pinned.
	AcceptCPU    int
	ParserCPU    int
	ConnectorCPU int
	ForwarderCPU int
}

// DefaultOptions mirrors the original proxy's defaults.
func DefaultOptions() Options {
	return Options{
		ListenAddr:    "0.0.0.0:8889",
		AcceptBacklog: 64,

		MaxRequestSizeBytes: 1024,
		AcceptTimeout:       5 * time.Second,

		NumDNSResolutionThreads: 8,
		DNSCacheTTL:             300 * time.Second,
		DNSCacheRefreshPeriod:   75 * time.Second,
		DNSCacheRefreshDuration: 3600 * time.Second,

		ConnectTimeout: 10 * time.Second,

		ClientToServerBufferSizeBytes: 4096,
		ServerToClientBufferSizeBytes: 8192,
		ReadWriteTimeout:              5 * time.Minute,

		AcceptCPU:    -1,
		ParserCPU:    -1,
		ConnectorCPU: -1,
		ForwarderCPU: -1,
	}
}
