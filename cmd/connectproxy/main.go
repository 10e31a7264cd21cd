// Command connectproxy runs a standalone HTTP CONNECT tunnel proxy.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fenwick-systems/connectproxy/proxy"
)

func main() {
	opt := proxy.DefaultOptions()

	addr := flag.String("addr", opt.ListenAddr, "listen address")
	backlog := flag.Int("backlog", opt.AcceptBacklog, "accept() backlog")
	maxRequestSize := flag.Int("max-request-size", opt.MaxRequestSizeBytes, "maximum CONNECT request size in bytes")
	acceptTimeout := flag.Duration("accept-timeout", opt.AcceptTimeout, "time allowed to receive a full CONNECT request")
	dnsWorkers := flag.Int("dns-workers", opt.NumDNSResolutionThreads, "DNS resolution worker count")
	dnsCacheTTL := flag.Duration("dns-cache-ttl", opt.DNSCacheTTL, "DNS cache entry lifetime")
	dnsRefreshPeriod := flag.Duration("dns-refresh-period", opt.DNSCacheRefreshPeriod, "how often a hot DNS entry is proactively refreshed")
	dnsRefreshDuration := flag.Duration("dns-refresh-duration", opt.DNSCacheRefreshDuration, "how long a DNS entry keeps refreshing after last use")
	connectTimeout := flag.Duration("connect-timeout", opt.ConnectTimeout, "upstream TCP connect timeout")
	c2sBuf := flag.Int("client-to-server-buffer", opt.ClientToServerBufferSizeBytes, "client->server splice pipe size in bytes")
	s2cBuf := flag.Int("server-to-client-buffer", opt.ServerToClientBufferSizeBytes, "server->client splice pipe size in bytes")
	rwTimeout := flag.Duration("read-write-timeout", opt.ReadWriteTimeout, "idle timeout for an established tunnel")
	allowedPorts := flag.String("allowed-ports", "", "comma-separated list of ports CONNECT may target (empty allows any port)")
	maxOpenFiles := flag.Uint64("max-open-files", opt.MaxNumOpenFiles, "raise RLIMIT_NOFILE to this value on startup (0 leaves it unchanged)")
	acceptCPU := flag.Int("accept-cpu", opt.AcceptCPU, "pin the accept loop to this CPU (-1 = don't pin)")
	flag.Parse()

	if flag.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	opt.ListenAddr = *addr
	opt.AcceptBacklog = *backlog
	opt.MaxRequestSizeBytes = *maxRequestSize
	opt.AcceptTimeout = *acceptTimeout
	opt.NumDNSResolutionThreads = *dnsWorkers
	opt.DNSCacheTTL = *dnsCacheTTL
	opt.DNSCacheRefreshPeriod = *dnsRefreshPeriod
	opt.DNSCacheRefreshDuration = *dnsRefreshDuration
	opt.ConnectTimeout = *connectTimeout
	opt.ClientToServerBufferSizeBytes = *c2sBuf
	opt.ServerToClientBufferSizeBytes = *s2cBuf
	opt.ReadWriteTimeout = *rwTimeout
	opt.MaxNumOpenFiles = *maxOpenFiles
	opt.AcceptCPU = *acceptCPU
	if *allowedPorts != "" {
		opt.AllowedPorts = strings.Split(*allowedPorts, ",")
	}

	// Unlike the C++ original, Go never delivers SIGPIPE to a process for
	// a write to a closed socket or pipe: syscall errors come back as
	// EPIPE through the normal error return instead, so there is no
	// signal.Ignore(syscall.SIGPIPE) call here to port.

	p, err := proxy.New(opt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connectproxy: %v\n", err)
		os.Exit(1)
	}

	go func() {
		if err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "connectproxy: %v\n", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	fmt.Println("connectproxy: shutting down...")
	p.Close()
	time.Sleep(50 * time.Millisecond)
}
