package server

import (
	"net"

	"github.com/ValentinKolb/ftsd/lib/listener"
	"github.com/ValentinKolb/ftsd/lib/wirebuf"
	"github.com/ValentinKolb/ftsd/rpc/api"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// ICommandHandler processes one binary API request. The request body sits
// fully parsed-ready in the input buffer; the handler writes a complete
// reply packet (status word, version word, measured body) into the output.
type ICommandHandler interface {
	// HandleCommand is called once per request after the command word,
	// version word and body have been read and the version handshake
	// passed. Errors are reported in-band via api.SendErrorReply.
	HandleCommand(client *ClientConn, cmd api.Command, ver uint16,
		in *wirebuf.NetInputBuffer, out *wirebuf.NetOutputBuffer)
}

// IProtoServer serves one whole connection speaking a non-API protocol
// (the MySQL and HTTP surfaces plug in here)
type IProtoServer interface {
	// ServeConn owns the connection until it returns; closing conn is
	// the server's job, not the protocol's
	ServeConn(conn net.Conn, desc listener.Desc)
}

// IProtoServerFunc adapts a plain function to IProtoServer
type IProtoServerFunc func(conn net.Conn, desc listener.Desc)

func (f IProtoServerFunc) ServeConn(conn net.Conn, desc listener.Desc) { f(conn, desc) }
