// Package common provides core data structures and utilities shared across
// the search daemon's serving surfaces. It defines the server configuration
// and the logging integration used by every other package.
//
// The package focuses on:
//   - Configuration structure for the daemon (listeners, timeouts, limits)
//   - Custom logging implementation behind the logger facade
//
// Key Components:
//
//   - ServerConfig: Comprehensive configuration for the daemon, including
//     the parsed listen directives, network timeouts, packet and connection
//     limits, storage paths and the log level.
//
//   - Logger: Custom logging implementation that plugs into the logger
//     facade while providing consistent formatting across the application.
package common
