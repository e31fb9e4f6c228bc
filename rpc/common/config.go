package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/ftsd/lib/listener"
)

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for the search daemon
type ServerConfig struct {
	// Listeners are the parsed listen directives
	Listeners []listener.Desc

	// Network timeouts and packet bound
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	ClientTimeout time.Duration
	MaxPacketSize int

	// MaxConnections caps concurrently served clients; zero means no cap
	MaxConnections int

	// DataDir is where the served indexes live
	DataDir string

	// PIDFile, when set, is written at startup and removed at shutdown
	PIDFile string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Listeners
	addSection("Listeners")
	for i, desc := range c.Listeners {
		proto := desc.Proto.String()
		if desc.VIP {
			proto += " (vip)"
		}
		addField(strconv.Itoa(i), fmt.Sprintf("%s [%s]", desc.Addr(), proto))
	}

	// Network settings
	addSection("Network")
	addField("Read Timeout", c.ReadTimeout.String())
	addField("Write Timeout", c.WriteTimeout.String())
	addField("Client Timeout", c.ClientTimeout.String())
	addField("Max Packet Size", strconv.Itoa(c.MaxPacketSize))
	if c.MaxConnections > 0 {
		addField("Max Connections", strconv.Itoa(c.MaxConnections))
	} else {
		addField("Max Connections", "unlimited")
	}

	// Storage
	addSection("Storage")
	addField("Data Directory", c.DataDir)
	if c.PIDFile != "" {
		addField("PID File", c.PIDFile)
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
