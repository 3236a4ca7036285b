package application

import (
	"bytes"
	"crypto/tls"
	"io"
	"net"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/GNS-Foundation/trip-protocol/internal/log"
	"github.com/GNS-Foundation/trip-protocol/protocol"
)

// EpochTimer consists of a time.Timer and the interval it is re-armed
// with, for periodic maintenance work (the challenge
// coordinator's timeout sweep, rate limiter idle eviction).
type EpochTimer struct {
	*time.Timer
	duration time.Duration
}

// NewEpochTimer initializes a timer for running a regular maintenance
// procedure every interval.
func NewEpochTimer(interval time.Duration) *EpochTimer {
	return &EpochTimer{
		Timer:    time.NewTimer(interval),
		duration: interval,
	}
}

// A ServerAddress describes a server's connection. It supports two
// types of connections: a TCP connection ("tcp") and a Unix socket
// connection ("unix").
//
// TCP connections must use TLS for added security, and each is
// required to specify a TLS certificate and corresponding private key.
type ServerAddress struct {
	// Address is formatted as a url: scheme://address.
	Address string `toml:"address"`
	// TLSCertPath is a path to the server's TLS certificate, required
	// if the connection is TCP.
	TLSCertPath string `toml:"cert,omitempty"`
	// TLSKeyPath is a path to the server's TLS private key, required
	// if the connection is TCP.
	TLSKeyPath string `toml:"key,omitempty"`
}

// A ServerBase represents the base features needed to run the TRIP
// Verifier's network layer: accepting relying-party connections,
// decoding protocol.Request envelopes, and dispatching them under the
// appropriate lock discipline. It supports concurrent handling of
// requests.
type ServerBase struct {
	Verb           string
	acceptableReqs map[*ServerAddress]map[int]bool

	logger *log.Logger
	sync.RWMutex

	stop          chan struct{}
	waitStop      sync.WaitGroup
	waitCloseConn sync.WaitGroup

	configFilePath string
	configEncoding string
	reloadChan     chan os.Signal
}

// NewServerBase creates a new Verifier server base.
func NewServerBase(conf *CommonConfig, listenVerb string,
	perms map[*ServerAddress]map[int]bool) *ServerBase {
	sb := new(ServerBase)
	sb.Verb = listenVerb
	sb.acceptableReqs = perms
	sb.logger = log.NewLogger(conf.Logger)
	sb.stop = make(chan struct{})
	sb.configFilePath = conf.Path
	sb.configEncoding = conf.Encoding
	sb.reloadChan = make(chan os.Signal, 1)
	signal.Notify(sb.reloadChan, syscall.SIGUSR2)
	return sb
}

// ListenAndHandle implements the main functionality of the Verifier
// server: it listens at the given server address with the corresponding
// permissions, dispatching decoded requests to reqHandler. It also
// supports hot-reloading the configuration by listening for the
// SIGUSR2 signal.
func (sb *ServerBase) ListenAndHandle(addr *ServerAddress,
	reqHandler func(req *protocol.Request) *protocol.Response) {
	ln, tlsConfig := addr.resolveAndListen()
	sb.waitStop.Add(1)
	go func() {
		sb.logger.Info(sb.Verb, "address", addr.Address)
		sb.acceptRequests(addr, ln, tlsConfig, reqHandler)
		sb.waitStop.Done()
	}()
}

func (addr *ServerAddress) resolveAndListen() (ln net.Listener,
	tlsConfig *tls.Config) {
	u, err := url.Parse(addr.Address)
	if err != nil {
		panic(err)
	}
	switch u.Scheme {
	case "tcp":
		// TLS is mandatory for TCP connections.
		cer, err := tls.LoadX509KeyPair(addr.TLSCertPath, addr.TLSKeyPath)
		if err != nil {
			panic(err)
		}
		tlsConfig = &tls.Config{Certificates: []tls.Certificate{cer}}
		tcpaddr, err := net.ResolveTCPAddr(u.Scheme, u.Host)
		if err != nil {
			panic(err)
		}
		ln, err = net.ListenTCP(u.Scheme, tcpaddr)
		if err != nil {
			panic(err)
		}
		return
	case "unix":
		unixaddr, err := net.ResolveUnixAddr(u.Scheme, u.Path)
		if err != nil {
			panic(err)
		}
		ln, err = net.ListenUnix(u.Scheme, unixaddr)
		if err != nil {
			panic(err)
		}
		return
	default:
		panic("Unknown network type")
	}
}

func (sb *ServerBase) acceptRequests(addr *ServerAddress, ln net.Listener,
	tlsConfig *tls.Config,
	handler func(req *protocol.Request) *protocol.Response) {
	defer ln.Close()
	go func() {
		<-sb.stop
		if l, ok := ln.(interface {
			SetDeadline(time.Time) error
		}); ok {
			l.SetDeadline(time.Now())
		}
	}()

	for {
		select {
		case <-sb.stop:
			sb.waitCloseConn.Wait()
			return
		default:
		}
		conn, err := ln.Accept()
		if err != nil {
			if opErr, ok := err.(*net.OpError); ok && opErr.Timeout() {
				continue
			}
			sb.logger.Error(err.Error())
			continue
		}
		if _, ok := ln.(*net.TCPListener); ok {
			conn = tls.Server(conn, tlsConfig)
		}
		sb.waitCloseConn.Add(1)
		go func() {
			sb.acceptClient(addr, conn, handler)
			sb.waitCloseConn.Done()
		}()
	}
}

// checkRequestType verifies that the server is allowed to handle the
// given Request message type at the given address. If reqType is not
// acceptable, checkRequestType returns a protocol error, otherwise nil.
func (sb *ServerBase) checkRequestType(addr *ServerAddress,
	reqType int) error {
	if !sb.acceptableReqs[addr][reqType] {
		sb.logger.Error("Unacceptable message type",
			"request type", reqType)
		return protocol.Newf(protocol.MalformedEncoding, "request type %d not accepted at this address", reqType)
	}
	return nil
}

func (sb *ServerBase) acceptClient(addr *ServerAddress, conn net.Conn,
	handler func(req *protocol.Request) *protocol.Response) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	var buf bytes.Buffer
	var response *protocol.Response
	if _, err := io.CopyN(&buf, conn, 8192); err != nil && err != io.EOF {
		sb.logger.Error(err.Error(),
			"address", conn.RemoteAddr().String())
		return
	}

	req, err := protocol.UnmarshalRequest(buf.Bytes())
	if err != nil {
		response = protocol.NewErrorResponse(protocol.CodeOf(err))
	} else if checkErr := sb.checkRequestType(addr, req.Type); checkErr != nil {
		response = protocol.NewErrorResponse(protocol.CodeOf(checkErr))
	} else {
		// Every TRIP request mutates the challenge coordinator's
		// per-identity state; there is no read-only request type to
		// serve under RLock.
		sb.Lock()
		response = handler(req)
		sb.Unlock()

		if response.Error != protocol.Success {
			sb.logger.Warn(response.Error.String(),
				"address", conn.RemoteAddr().String())
		}
	}

	res, err := protocol.MarshalResponse(response)
	if err != nil {
		sb.logger.Error(err.Error(),
			"address", conn.RemoteAddr().String())
		return
	}
	if _, err := conn.Write(res); err != nil {
		sb.logger.Error(err.Error(),
			"address", conn.RemoteAddr().String())
	}
}

// RunInBackground creates a new goroutine that calls function f. It
// automatically increments the ServerBase's wait group and calls Done
// when the function execution is finished.
func (sb *ServerBase) RunInBackground(f func()) {
	sb.waitStop.Add(1)
	go func() {
		f()
		sb.waitStop.Done()
	}()
}

// EpochUpdate runs function f, which is expected to be a maintenance
// procedure such as the challenge coordinator's timeout sweep, on the
// given timer's interval until the server is shut down.
func (sb *ServerBase) EpochUpdate(timer *EpochTimer, f func()) {
	for {
		select {
		case <-sb.stop:
			return
		case <-timer.C:
			sb.Lock()
			f()
			timer.Reset(timer.duration)
			sb.Unlock()
		}
	}
}

// HotReload implements hot-reloading by listening for the SIGUSR2
// signal.
func (sb *ServerBase) HotReload(f func()) {
	for {
		select {
		case <-sb.stop:
			return
		case <-sb.reloadChan:
			sb.Lock()
			f()
			sb.Unlock()
		}
	}
}

// Logger returns the server base's logger instance.
func (sb *ServerBase) Logger() *log.Logger {
	return sb.logger
}

// ConfigInfo returns the server base's config file path and encoding.
func (sb *ServerBase) ConfigInfo() (string, string) {
	return sb.configFilePath, sb.configEncoding
}

// Shutdown closes all of the server's connections and shuts down the
// server.
func (sb *ServerBase) Shutdown() error {
	close(sb.stop)
	sb.waitStop.Wait()
	return nil
}
