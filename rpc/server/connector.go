package server

import (
	"fmt"
	"net"
	"os"

	"github.com/ValentinKolb/ftsd/lib/listener"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector opens the OS-level listener for one listen descriptor
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(desc listener.Desc) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// connectorFor picks the connector matching the descriptor
func connectorFor(desc listener.Desc) IServerConnector {
	if desc.UnixPath != "" {
		return &unixConnector{}
	}
	return &tcpConnector{}
}

// --------------------------------------------------------------------------
// TCP
// --------------------------------------------------------------------------

// tcpConnector implements the IServerConnector interface for TCP sockets
type tcpConnector struct{}

func (c *tcpConnector) GetName() string {
	return "tcp"
}

func (c *tcpConnector) Listen(desc listener.Desc) (net.Listener, error) {
	// Create TCP socket listener
	ln, err := net.Listen("tcp", desc.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to create TCP socket: %v", err)
	}

	return ln, nil
}

// --------------------------------------------------------------------------
// Unix
// --------------------------------------------------------------------------

// unixConnector implements the IServerConnector interface for Unix sockets
type unixConnector struct{}

func (c *unixConnector) GetName() string {
	return "unix"
}

func (c *unixConnector) Listen(desc listener.Desc) (net.Listener, error) {
	socketPath := desc.UnixPath

	// Remove existing socket file if it exists
	if err := os.RemoveAll(socketPath); err != nil {
		return nil, fmt.Errorf("failed to remove existing socket: %v", err)
	}

	// Create Unix socket listener
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create Unix socket: %v", err)
	}

	return ln, nil
}
