package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	vmetrics "github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	gometrics "github.com/rcrowley/go-metrics"

	"github.com/ValentinKolb/ftsd/lib/listener"
	"github.com/ValentinKolb/ftsd/lib/shutdown"
	"github.com/ValentinKolb/ftsd/lib/sockio"
	"github.com/ValentinKolb/ftsd/lib/wirebuf"
	"github.com/ValentinKolb/ftsd/rpc/api"
	"github.com/ValentinKolb/ftsd/rpc/common"
)

// Logger for the connection plane
var Logger = logger.GetLogger("server")

// --------------------------------------------------------------------------
// Client connection
// --------------------------------------------------------------------------

// ClientConn is the per-connection state visible to command handlers
type ClientConn struct {
	ID          uint64
	Conn        net.Conn
	Desc        listener.Desc
	ConnectedAt time.Time

	// Persistent marks a connection that stays open between requests
	// (toggled by the persist command); non-persistent connections close
	// after one reply
	Persistent bool

	// LastCommand is the most recent command seen on this connection
	LastCommand api.Command
}

// Addr returns the peer address
func (c *ClientConn) Addr() string {
	if c.Conn == nil {
		return ""
	}
	return c.Conn.RemoteAddr().String()
}

// --------------------------------------------------------------------------
// Server
// --------------------------------------------------------------------------

// Server accepts and serves client connections on every configured listener
type Server struct {
	config  common.ServerConfig
	handler ICommandHandler
	protos  map[listener.Proto]IProtoServer

	lnMu      sync.Mutex
	listeners []net.Listener
	conns     *xsync.MapOf[uint64, *ClientConn]
	nextConn  atomic.Uint64
	wg        sync.WaitGroup
	stopOnce  sync.Once
	stopped   atomic.Bool

	// connMeter tracks the accept rate
	connMeter gometrics.Meter
}

// New creates a server for the given configuration. The command handler
// serves the binary API; other protocols plug in via RegisterProtoServer.
func New(config common.ServerConfig, handler ICommandHandler) *Server {
	if config.MaxPacketSize <= 0 {
		config.MaxPacketSize = wirebuf.DefaultMaxPacket
	}

	s := &Server{
		config:    config,
		handler:   handler,
		protos:    make(map[listener.Proto]IProtoServer),
		conns:     xsync.NewMapOf[uint64, *ClientConn](),
		connMeter: gometrics.GetOrRegisterMeter("ftsd.connections", nil),
	}

	vmetrics.GetOrCreateGauge("ftsd_connections_active", func() float64 {
		return float64(s.conns.Size())
	})

	return s
}

// RegisterProtoServer installs the serving loop for a non-API protocol
func (s *Server) RegisterProtoServer(proto listener.Proto, ps IProtoServer) {
	s.protos[proto] = ps
}

// ConnCount returns the number of currently served connections
func (s *Server) ConnCount() int { return s.conns.Size() }

// Addrs returns the bound addresses of the open listeners
func (s *Server) Addrs() []net.Addr {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()

	addrs := make([]net.Addr, 0, len(s.listeners))
	for _, ln := range s.listeners {
		addrs = append(addrs, ln.Addr())
	}
	return addrs
}

// Serve opens every configured listener and blocks until Stop. Listeners
// that cannot be opened fail the whole startup.
func (s *Server) Serve() error {
	if len(s.config.Listeners) == 0 {
		return fmt.Errorf("no listeners configured")
	}

	for _, desc := range s.config.Listeners {
		connector := connectorFor(desc)
		ln, err := connector.Listen(desc)
		if err != nil {
			s.closeListeners()
			return fmt.Errorf("listen %s: %v", desc.Addr(), err)
		}
		s.lnMu.Lock()
		s.listeners = append(s.listeners, ln)
		s.lnMu.Unlock()

		Logger.Infof("listening on %s (%s, proto %s)", desc.Addr(), connector.GetName(), desc.Proto)

		s.wg.Add(1)
		go s.acceptLoop(ln, desc)
	}

	// a clean daemon shutdown stops the server with everything else
	cookie := shutdown.Register(s.Stop)
	defer shutdown.Unregister(cookie)

	s.wg.Wait()
	return nil
}

// Stop closes the listeners and every open connection; Serve returns once
// the last connection goroutine exits
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		shutdown.Request()

		s.closeListeners()

		s.conns.Range(func(_ uint64, client *ClientConn) bool {
			client.Conn.Close()
			return true
		})
	})
}

func (s *Server) closeListeners() {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()
	for _, ln := range s.listeners {
		ln.Close()
	}
}

// --------------------------------------------------------------------------
// Accept path
// --------------------------------------------------------------------------

// acceptLoop accepts connections on one listener until it closes
func (s *Server) acceptLoop(ln net.Listener, desc listener.Desc) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.stopped.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			Logger.Errorf("accept on %s: %v", desc.Addr(), err)
			continue
		}

		s.connMeter.Mark(1)

		// VIP listeners bypass the connection cap so admin access
		// survives a saturated daemon
		if !desc.VIP && s.config.MaxConnections > 0 && s.conns.Size() >= s.config.MaxConnections {
			Logger.Warningf("maxed out, refusing %s", conn.RemoteAddr())
			s.refuseConn(conn, desc)
			conn.Close()
			continue
		}

		client := &ClientConn{
			ID:          s.nextConn.Add(1),
			Conn:        conn,
			Desc:        desc,
			ConnectedAt: time.Now(),
		}
		s.conns.Store(client.ID, client)

		s.wg.Add(1)
		go s.serveConn(client)
	}
}

// connFD extracts the raw descriptor behind an accepted connection
func connFD(conn net.Conn) (int, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0, fmt.Errorf("connection does not expose a file descriptor")
	}
	return sockio.FD(sc)
}

// refuseConn tells an API client to retry later; other protocols just get
// the close
func (s *Server) refuseConn(conn net.Conn, desc listener.Desc) {
	if desc.Proto != listener.ProtoSphinx {
		return
	}
	fd, err := connFD(conn)
	if err != nil {
		return
	}
	sockio.SetNonblock(fd)

	out := wirebuf.NewNetOutputBuffer(fd, s.config.WriteTimeout)
	out.SendDword(api.ProtoVersion)
	out.SendWord(uint16(api.StatusRetry))
	out.SendWord(0)
	token := out.StartMeasureLength()
	out.SendString("server maxed out, retry in a second")
	out.CommitMeasuredLength(token)
	out.Flush()
}

// serveConn routes one accepted connection to its protocol loop
func (s *Server) serveConn(client *ClientConn) {
	defer func() {
		client.Conn.Close()
		s.conns.Delete(client.ID)
		s.wg.Done()
	}()

	switch client.Desc.Proto {
	case listener.ProtoSphinx:
		s.serveAPIConn(client)
	default:
		ps, ok := s.protos[client.Desc.Proto]
		if !ok {
			Logger.Errorf("no handler for protocol %s, dropping %s", client.Desc.Proto, client.Addr())
			return
		}
		ps.ServeConn(client.Conn, client.Desc)
	}
}

// --------------------------------------------------------------------------
// Binary API loop
// --------------------------------------------------------------------------

// serveAPIConn runs the handshake and the framed request loop of one binary
// API connection
func (s *Server) serveAPIConn(client *ClientConn) {
	fd, err := connFD(client.Conn)
	if err != nil {
		Logger.Errorf("conn %d: %v", client.ID, err)
		return
	}
	if err := sockio.SetNonblock(fd); err != nil {
		Logger.Errorf("conn %d: %v", client.ID, err)
		return
	}

	out := wirebuf.NewNetOutputBuffer(fd, s.config.WriteTimeout)
	in := wirebuf.NewNetInputBuffer(fd, s.config.MaxPacketSize)

	// handshake: both ends announce their protocol version
	out.SendDword(api.ProtoVersion)
	if err := out.Flush(); err != nil {
		Logger.Debugf("conn %d handshake: %v", client.ID, err)
		return
	}
	if !in.ReadFrom(4, s.config.ReadTimeout, false, false) {
		return
	}
	if ver := in.GetDword(); ver < api.ProtoVersion {
		Logger.Warningf("conn %d from %s sent unsupported proto version %d", client.ID, client.Addr(), ver)
		return
	}

	for {
		// idle persistent connections may wait out the (longer) client
		// timeout and are cleanly interruptible by shutdown
		timeout := s.config.ReadTimeout
		if client.Persistent {
			timeout = s.config.ClientTimeout
		}
		if !in.ReadFrom(8, timeout, true, false) {
			if in.Interrupted() {
				Logger.Infof("conn %d interrupted by shutdown", client.ID)
			}
			return
		}

		cmd := api.Command(in.GetWord())
		ver := in.GetWord()
		length := int(in.GetInt())
		if in.GetError() != nil {
			return
		}

		if !cmd.Valid() || length < 0 || length > s.config.MaxPacketSize {
			api.SendErrorReply(&out.CachedOutputBuffer, "invalid command (code=%d, len=%d)", cmd, length)
			out.Flush()
			return
		}

		if !in.ReadFrom(length, s.config.ReadTimeout, false, false) {
			return
		}

		client.LastCommand = cmd
		vmetrics.GetOrCreateCounter(fmt.Sprintf(`ftsd_api_commands_total{command=%q}`, cmd.String())).Inc()

		switch cmd {
		case api.CommandPersist:
			// no reply; the flag takes effect on the next read
			client.Persistent = in.GetInt() != 0
			continue

		case api.CommandPing:
			cookie := in.GetInt()
			out.SendWord(uint16(api.StatusOK))
			out.SendWord(api.VerCommand(cmd))
			token := out.StartMeasureLength()
			out.SendInt(cookie)
			out.CommitMeasuredLength(token)

		default:
			if !api.CheckCommandVersion(&out.CachedOutputBuffer, ver, api.VerCommand(cmd)) {
				out.Flush()
				return
			}
			if s.handler == nil {
				api.SendErrorReply(&out.CachedOutputBuffer, "command %s is not supported", cmd)
			} else {
				s.handler.HandleCommand(client, cmd, ver, in, out)
			}
		}

		if err := out.Flush(); err != nil {
			Logger.Debugf("conn %d reply: %v", client.ID, err)
			return
		}

		if !client.Persistent {
			return
		}
	}
}
