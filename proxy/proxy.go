package proxy

import (
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/fenwick-systems/connectproxy/connector"
	"github.com/fenwick-systems/connectproxy/control"
	"github.com/fenwick-systems/connectproxy/dns"
	"github.com/fenwick-systems/connectproxy/forwarder"
	"github.com/fenwick-systems/connectproxy/parser"
	"github.com/fenwick-systems/connectproxy/transport/tcp"
)

// Proxy wires the acceptor, parser, DNS resolver, connector, and
// forwarder into a running CONNECT tunnel proxy, plus the config/metrics
// control plane.
type Proxy struct {
	opt       Options
	acceptor  *tcp.Acceptor
	parser    *parser.Parser
	resolver  *dns.Resolver
	connector *connector.Connector
	forwarder *forwarder.Forwarder

	config  *control.ConfigStore
	metrics *control.MetricsRegistry

	sighup     chan os.Signal
	shutdownCh chan struct{}
	closeOnce  sync.Once
}

// New builds every sub-component but does not start accepting connections.
func New(opt Options) (*Proxy, error) {
	if opt.MaxNumOpenFiles > 0 {
		if err := raiseNoFileLimit(opt.MaxNumOpenFiles); err != nil {
			return nil, fmt.Errorf("proxy: %w", err)
		}
	}

	acceptor, err := tcp.Listen(tcp.AcceptorConfig{ListenAddr: opt.ListenAddr, Backlog: opt.AcceptBacklog})
	if err != nil {
		return nil, err
	}

	reqParser, err := parser.New(parser.Options{
		MaxRequestSizeBytes: opt.MaxRequestSizeBytes,
		AcceptTimeout:       opt.AcceptTimeout,
	})
	if err != nil {
		acceptor.Close()
		return nil, err
	}

	resolver := dns.NewResolver(dns.Options{
		NumResolutionWorkers: opt.NumDNSResolutionThreads,
		CacheTTL:             opt.DNSCacheTTL,
		RefreshPeriod:        opt.DNSCacheRefreshPeriod,
		RefreshDuration:      opt.DNSCacheRefreshDuration,
	})

	conn, err := connector.New(connector.Options{ConnectTimeout: opt.ConnectTimeout})
	if err != nil {
		acceptor.Close()
		reqParser.Close()
		resolver.Close()
		return nil, err
	}

	fwd, err := forwarder.New(forwarder.Options{
		ClientToServerBufferSizeBytes: opt.ClientToServerBufferSizeBytes,
		ServerToClientBufferSizeBytes: opt.ServerToClientBufferSizeBytes,
		ReadWriteTimeout:              opt.ReadWriteTimeout,
	})
	if err != nil {
		acceptor.Close()
		reqParser.Close()
		resolver.Close()
		conn.Close()
		return nil, err
	}

	config := control.NewConfigStore()
	config.SetConfig(control.ProxyConfig{
		AllowedPorts:     opt.AllowedPorts,
		AcceptTimeout:    opt.AcceptTimeout,
		ConnectTimeout:   opt.ConnectTimeout,
		ReadWriteTimeout: opt.ReadWriteTimeout,
	})

	p := &Proxy{
		opt:        opt,
		acceptor:   acceptor,
		parser:     reqParser,
		resolver:   resolver,
		connector:  conn,
		forwarder:  fwd,
		config:     config,
		metrics:    control.NewMetricsRegistry(),
		sighup:     make(chan os.Signal, 1),
		shutdownCh: make(chan struct{}),
	}
	p.watchReloadSignal()
	return p, nil
}

// watchReloadSignal re-reads opt.AllowedPorts into the config store on
// SIGHUP, the same ambient reload mechanism control/ was designed for.
func (p *Proxy) watchReloadSignal() {
	signal.Notify(p.sighup, syscall.SIGHUP)
	control.RegisterReloadHook(func() {
		log.Printf("proxy: configuration reloaded")
	})
	go func() {
		for {
			select {
			case <-p.sighup:
				p.config.SetConfig(control.ProxyConfig{
					AllowedPorts:     p.opt.AllowedPorts,
					AcceptTimeout:    p.opt.AcceptTimeout,
					ConnectTimeout:   p.opt.ConnectTimeout,
					ReadWriteTimeout: p.opt.ReadWriteTimeout,
				})
				control.TriggerHotReload()
			case <-p.shutdownCh:
				signal.Stop(p.sighup)
				return
			}
		}
	}()
}

// Run accepts connections until Close is called, chaining each one
// through parse -> allow-list check -> resolve -> connect -> forward.
func (p *Proxy) Run() error {
	if p.opt.AcceptCPU >= 0 {
		tcp.PinAcceptLoop(p.opt.AcceptCPU)
	}
	log.Printf("proxy: accepting on %s", p.opt.ListenAddr)
	for {
		fd, err := p.acceptor.Accept()
		if err != nil {
			select {
			case <-p.shutdownCh:
				return nil
			default:
			}
			return fmt.Errorf("proxy: accept: %w", err)
		}
		p.metrics.IncAccepted()
		p.handleConn(fd)
	}
}

// Close stops accepting and releases every sub-component's resources.
func (p *Proxy) Close() error {
	p.closeOnce.Do(func() {
		close(p.shutdownCh)
		p.acceptor.Close()
		p.parser.Close()
		p.resolver.Close()
		p.connector.Close()
		p.forwarder.Close()
	})
	return nil
}

func (p *Proxy) handleConn(clientFD int) {
	p.parser.ParseRequest(clientFD, func(hostPort string, err error) {
		if err != nil {
			log.Printf("proxy: [%d] CONNECT request rejected: %v", clientFD, err)
			p.metrics.IncRejected()
			unix.Close(clientFD)
			return
		}
		allowed := allowedPortSet(p.config.GetSnapshot().AllowedPorts)
		if !isAllowedPort(hostPort, allowed) {
			log.Printf("proxy: [%d] port not allowed: %s", clientFD, hostPort)
			p.metrics.IncRejected()
			unix.Close(clientFD)
			return
		}
		p.resolveAndConnect(clientFD, hostPort)
	})
}

func (p *Proxy) resolveAndConnect(clientFD int, hostPort string) {
	p.resolver.Resolve(hostPort, func(addr net.IP, err error) {
		if err != nil {
			log.Printf("proxy: [%d] DNS error for %s: %v", clientFD, hostPort, err)
			p.metrics.IncRejected()
			unix.Close(clientFD)
			return
		}
		_, portStr, splitErr := net.SplitHostPort(hostPort)
		if splitErr != nil {
			p.metrics.IncRejected()
			unix.Close(clientFD)
			return
		}
		var port int
		if _, scanErr := fmt.Sscanf(portStr, "%d", &port); scanErr != nil {
			p.metrics.IncRejected()
			unix.Close(clientFD)
			return
		}
		log.Printf("proxy: [%d] tunnel to %s:%d", clientFD, addr, port)
		p.connector.Connect(addr, port, func(serverFD int, err error) {
			if err != nil {
				log.Printf("proxy: [%d] connect failed: %v", clientFD, err)
				p.metrics.IncRejected()
				unix.Close(clientFD)
				return
			}
			p.forwarder.Forward(clientFD, serverFD)
		})
	})
}
