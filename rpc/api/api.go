// Package api defines the binary API protocol surface: command and version
// codes, reply statuses, the connection handshake, and the version handshake
// helpers shared by every command handler.
package api

import (
	"fmt"

	"github.com/ValentinKolb/ftsd/lib/wirebuf"
)

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

// Command identifies one binary API request type
type Command uint16

const (
	CommandSearch   Command = 0
	CommandExcerpt  Command = 1
	CommandUpdate   Command = 2
	CommandKeywords Command = 3
	CommandPersist  Command = 4
	CommandStatus   Command = 5
	// 6 is historically unassigned
	CommandFlushAttrs Command = 7
	CommandSphinxQL   Command = 8
	CommandPing       Command = 9
	CommandDelete     Command = 10
	CommandUvar       Command = 11
	CommandInsert     Command = 12
	CommandReplace    Command = 13
	CommandCommit     Command = 14
	CommandSuggest    Command = 15
	CommandJSON       Command = 16
	CommandCallPQ     Command = 17
	CommandClusterPQ  Command = 18

	CommandTotal Command = 19

	// CommandWrong flags an unparseable command word
	CommandWrong = CommandTotal
)

var commandNames = [CommandTotal]string{
	"search", "excerpt", "update", "keywords", "persist", "status", "unused",
	"flushattrs", "sphinxql", "ping", "delete", "uvar", "insert", "replace",
	"commit", "suggest", "json", "callpq", "clusterpq",
}

func (c Command) String() string {
	if c >= CommandTotal {
		return "wrong"
	}
	return commandNames[c]
}

// Valid reports whether the command word names a known request type
func (c Command) Valid() bool { return c < CommandTotal }

// --------------------------------------------------------------------------
// Command versions
// --------------------------------------------------------------------------

// Per-command protocol versions, major in the high byte
const (
	VerCommandSearch     uint16 = 0x121
	VerCommandExcerpt    uint16 = 0x104
	VerCommandUpdate     uint16 = 0x104
	VerCommandKeywords   uint16 = 0x101
	VerCommandStatus     uint16 = 0x101
	VerCommandFlushAttrs uint16 = 0x100
	VerCommandSphinxQL   uint16 = 0x100
	VerCommandPing       uint16 = 0x100
	VerCommandUvar       uint16 = 0x100
	VerCommandJSON       uint16 = 0x100
	VerCommandCallPQ     uint16 = 0x100
	VerCommandClusterPQ  uint16 = 0x102
)

// VerMaster is the master-agent search extension version
const VerMaster = 17

// VerCommand returns the daemon's protocol version for a command
func VerCommand(c Command) uint16 {
	switch c {
	case CommandSearch:
		return VerCommandSearch
	case CommandExcerpt:
		return VerCommandExcerpt
	case CommandUpdate:
		return VerCommandUpdate
	case CommandKeywords:
		return VerCommandKeywords
	case CommandStatus:
		return VerCommandStatus
	case CommandClusterPQ:
		return VerCommandClusterPQ
	default:
		return 0x100
	}
}

// --------------------------------------------------------------------------
// Reply statuses
// --------------------------------------------------------------------------

// Status is the first word of every binary API reply
type Status uint16

const (
	StatusOK      Status = 0
	StatusError   Status = 1
	StatusRetry   Status = 2
	StatusWarning Status = 3
)

var statusNames = [...]string{"ok", "error", "retry", "warning"}

func (s Status) String() string {
	if int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// --------------------------------------------------------------------------
// Handshake
// --------------------------------------------------------------------------

const (
	// ProtoVersion is the dword both ends exchange when a connection opens
	ProtoVersion uint32 = 1

	// PortAPI and PortMySQL are the historical default ports
	PortAPI   = 9312
	PortMySQL = 9306
)

// --------------------------------------------------------------------------
// Replies
// --------------------------------------------------------------------------

// SendErrorReply emits a complete error reply packet: status word, command
// version word, measured body holding the message
func SendErrorReply(out *wirebuf.CachedOutputBuffer, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)

	out.SendWord(uint16(StatusError))
	out.SendWord(0)
	token := out.StartMeasureLength()
	out.SendString(msg)
	out.CommitMeasuredLength(token)
}

// CheckCommandVersion verifies a client's command version against the
// daemon's. A major mismatch or a client running ahead of the daemon gets an
// error reply and a false return.
func CheckCommandVersion(out *wirebuf.CachedOutputBuffer, clientVer, daemonVer uint16) bool {
	if clientVer>>8 != daemonVer>>8 {
		SendErrorReply(out, "major command version mismatch (expected v.%d.x, got v.%d.%d)",
			daemonVer>>8, clientVer>>8, clientVer&0xFF)
		return false
	}
	if clientVer > daemonVer {
		SendErrorReply(out, "client version is higher than daemon version (client is v.%d.%d, daemon is v.%d.%d)",
			clientVer>>8, clientVer&0xFF, daemonVer>>8, daemonVer&0xFF)
		return false
	}
	return true
}

// --------------------------------------------------------------------------
// Attribute updates
// --------------------------------------------------------------------------

// UpdateType selects the payload format of one attribute in an UPDATE request
type UpdateType int

const (
	UpdateInt UpdateType = iota
	UpdateMVA32
	UpdateString
	UpdateJSON
)

// --------------------------------------------------------------------------
// MySQL surface
// --------------------------------------------------------------------------

// MySQL wire error codes emitted by the SQL surface
const (
	MySQLErrUnknownComError     uint16 = 1047
	MySQLErrServerShutdown      uint16 = 1053
	MySQLErrParseError          uint16 = 1064
	MySQLErrFieldSpecifiedTwice uint16 = 1110
	MySQLErrNoSuchTable         uint16 = 1146
	MySQLErrTooManyConnections  uint16 = 1203
)

// --------------------------------------------------------------------------
// HTTP surface
// --------------------------------------------------------------------------

// Endpoint identifies one HTTP route of the JSON surface
type Endpoint int

const (
	EndpointIndex Endpoint = iota
	EndpointSQL
	EndpointJSONSearch
	EndpointJSONIndex
	EndpointJSONCreate
	EndpointJSONInsert
	EndpointJSONReplace
	EndpointJSONUpdate
	EndpointJSONDelete
	EndpointJSONBulk
	EndpointJSONPQ
	EndpointCLI

	EndpointTotal
)

var endpointPaths = [EndpointTotal]string{
	"index.html",
	"sql",
	"json/search",
	"json/index",
	"json/create",
	"json/insert",
	"json/replace",
	"json/update",
	"json/delete",
	"json/bulk",
	"json/pq",
	"cli",
}

// Path returns the route path of the endpoint, without the leading slash
func (e Endpoint) Path() string {
	if e < 0 || e >= EndpointTotal {
		return ""
	}
	return endpointPaths[e]
}

// EndpointOf maps a request path (without the leading slash) to its endpoint
func EndpointOf(path string) (Endpoint, bool) {
	for e, p := range endpointPaths {
		if p == path {
			return Endpoint(e), true
		}
	}
	return EndpointTotal, false
}
