// Package cmd implements the command-line interface for the ftsd search
// daemon. It provides a hierarchical command structure for running and
// inspecting the daemon.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the daemon
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See ftsd -help for a list of all commands.
package cmd
