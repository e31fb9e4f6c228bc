// Package server implements the connection plane of the search daemon.
// It opens every configured listener, routes accepted connections to the
// protocol they speak, and runs the binary API request loop, along with the
// adapter binding the served-index registry to the command handler contract.
//
// The package focuses on:
//   - Listener management for TCP and unix-socket listen directives
//   - The binary API handshake, framing, version checks and persistent
//     connections
//   - Adapter pattern to decouple daemon logic from the wire protocol
//   - Connection accounting, caps and VIP exemptions
//
// Key Components:
//
//   - ICommandHandler: Interface defining the contract for binary API
//     command handlers, invoked once per framed request.
//
//   - IProtoServer: Interface for protocol loops owning a whole connection
//     (the MySQL and HTTP surfaces plug in here).
//
//   - NewSearchdAdapter: Factory function creating the daemon-level command
//     handler over the served-index registry.
//
//   - New: Factory function creating a configured server for a set of
//     parsed listen directives.
//
// Usage Example:
//
//	// Create server configuration
//	listeners, _ := listener.ParseAll([]string{"9312", "9306:mysql41"})
//	config := common.ServerConfig{
//	  Listeners:     listeners,
//	  ReadTimeout:   5 * time.Second,
//	  WriteTimeout:  5 * time.Second,
//	  ClientTimeout: 5 * time.Minute,
//	  LogLevel:      "info",
//	}
//
//	// Create and start the server
//	registry := index.NewGuardedHash()
//	s := server.New(config, server.NewSearchdAdapter(registry, "1.0.0"))
//
//	// Start the server
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent
//	requests across multiple connections. Each connection is processed
//	independently. The Serve method should be called only once.
package server
