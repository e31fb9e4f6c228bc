// Package rpc provides the serving layer of the search daemon: the protocol
// definitions and the connection plane that accepts and answers client
// requests across network boundaries.
//
// The package is organized into several subpackages:
//
//   - common: Configuration structures and logging shared across the
//     serving layer.
//
//   - api: The binary API protocol surface, from command and version codes
//     to the reply helpers every handler uses.
//
//   - stmt: The parsed-SQL statement model the MySQL-protocol surface
//     dispatches on.
//
//   - server: The connection plane, owning the listeners, the per-connection
//     request loops, and the adapter binding the served-index registry to
//     the command handler interface.
package rpc
