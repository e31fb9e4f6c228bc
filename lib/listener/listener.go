// Package listener parses the daemon's listen directives into concrete
// listener descriptors: TCP address plus port (or a port range expanded into
// one descriptor per port), or a unix socket path, each tagged with the
// protocol spoken on it.
package listener

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lni/dragonboat/v4/logger"

	"github.com/ValentinKolb/ftsd/lib/platform"
)

// Logger for listen-directive parsing
var Logger = logger.GetLogger("listener")

// Proto is the application protocol served on a listener
type Proto int

const (
	ProtoSphinx Proto = iota // binary API
	ProtoMySQL41
	ProtoHTTP
	ProtoReplication
)

var protoNames = map[string]Proto{
	"sphinx":      ProtoSphinx,
	"mysql41":     ProtoMySQL41,
	"http":        ProtoHTTP,
	"replication": ProtoReplication,
}

func (p Proto) String() string {
	for name, proto := range protoNames {
		if proto == p {
			return name
		}
	}
	return "unknown"
}

// Desc describes one listener to open
type Desc struct {
	Proto Proto

	// VIP listeners get a dedicated worker so admin connections survive
	// a saturated pool
	VIP bool

	// IP and Port describe a TCP listener; IP is in network byte order
	IP   uint32
	Port int

	// UnixPath, when set, makes this a unix-socket listener instead
	UnixPath string
}

// Addr formats the descriptor as a dialable address
func (d *Desc) Addr() string {
	if d.UnixPath != "" {
		return d.UnixPath
	}
	return fmt.Sprintf("%s:%d", platform.FormatIPv4(d.IP), d.Port)
}

// --------------------------------------------------------------------------
// Parsing
// --------------------------------------------------------------------------

// parseProto splits an optional trailing "_vip" off the protocol name
func parseProto(s string) (Proto, bool, error) {
	vip := strings.HasSuffix(s, "_vip")
	name := strings.TrimSuffix(s, "_vip")

	proto, ok := protoNames[name]
	if !ok {
		return 0, false, fmt.Errorf("unknown listen protocol %q", s)
	}
	return proto, vip, nil
}

// Historical default ports
const (
	DefaultAPIPort   = 9312
	DefaultMySQLPort = 9306
)

// checkPort validates a TCP port number
func checkPort(port int) error {
	if !platform.IsPortInRange(port) {
		return fmt.Errorf("port %d is out of range", port)
	}
	return nil
}

// Parse expands one listen directive into listener descriptors.
//
// Accepted forms:
//
//	port
//	hostname
//	address:port
//	address:port1-port2
//	/path/to/socket
//
// A lone hostname binds the default API port on the resolved address.
//
// each optionally followed by ":protocol" where protocol is sphinx (the
// default), mysql41, http or replication, with an optional "_vip" suffix.
// A port range yields one descriptor per port and requires port2 > port1.
func Parse(spec string) ([]Desc, error) {
	var desc Desc

	// unix socket: path[:proto]
	if strings.HasPrefix(spec, "/") {
		path := spec
		if i := strings.LastIndexByte(spec, ':'); i > 0 {
			proto, vip, err := parseProto(spec[i+1:])
			if err != nil {
				return nil, fmt.Errorf("listen %q: %v", spec, err)
			}
			path = spec[:i]
			desc.Proto = proto
			desc.VIP = vip
		}
		desc.UnixPath = path
		return []Desc{desc}, nil
	}

	parts := strings.Split(spec, ":")
	if len(parts) > 3 {
		return nil, fmt.Errorf("listen %q: too many fields", spec)
	}

	// a lone field is a port or a hostname; "host:x" needs x to
	// disambiguate between a port and a protocol name
	host := ""
	portPart := parts[0]
	switch len(parts) {
	case 1:
		if _, err := strconv.Atoi(strings.SplitN(parts[0], "-", 2)[0]); err != nil {
			ip, rerr := platform.ResolveIPv4(parts[0])
			if rerr != nil {
				return nil, fmt.Errorf("listen %q: %v", spec, rerr)
			}
			desc.IP = ip
			desc.Port = DefaultAPIPort
			return []Desc{desc}, nil
		}
	case 2:
		if _, err := strconv.Atoi(strings.SplitN(parts[1], "-", 2)[0]); err == nil {
			host, portPart = parts[0], parts[1]
		} else {
			// port:proto
			proto, vip, perr := parseProto(parts[1])
			if perr != nil {
				return nil, fmt.Errorf("listen %q: %v", spec, perr)
			}
			desc.Proto = proto
			desc.VIP = vip
		}
	case 3:
		host, portPart = parts[0], parts[1]
		proto, vip, err := parseProto(parts[2])
		if err != nil {
			return nil, fmt.Errorf("listen %q: %v", spec, err)
		}
		desc.Proto = proto
		desc.VIP = vip
	}

	if host != "" {
		ip, err := platform.ResolveIPv4(host)
		if err != nil {
			return nil, fmt.Errorf("listen %q: %v", spec, err)
		}
		desc.IP = ip
	}

	// port or inclusive range
	lo, hi := portPart, ""
	if i := strings.IndexByte(portPart, '-'); i >= 0 {
		lo, hi = portPart[:i], portPart[i+1:]
	}

	port, err := strconv.Atoi(lo)
	if err != nil {
		return nil, fmt.Errorf("listen %q: bad port %q", spec, lo)
	}
	if err := checkPort(port); err != nil {
		return nil, fmt.Errorf("listen %q: %v", spec, err)
	}
	desc.Port = port

	if hi == "" {
		return []Desc{desc}, nil
	}

	portEnd, err := strconv.Atoi(hi)
	if err != nil {
		return nil, fmt.Errorf("listen %q: bad port %q", spec, hi)
	}
	if err := checkPort(portEnd); err != nil {
		return nil, fmt.Errorf("listen %q: %v", spec, err)
	}
	if portEnd <= port {
		return nil, fmt.Errorf("listen %q: port range end must exceed start", spec)
	}

	out := make([]Desc, 0, portEnd-port+1)
	for p := port; p <= portEnd; p++ {
		d := desc
		d.Port = p
		out = append(out, d)
	}
	return out, nil
}

// ParseAll expands a list of listen directives, applying the historical
// defaults when the list is empty: the binary API on its well-known port and
// the MySQL surface on its own
func ParseAll(specs []string) ([]Desc, error) {
	if len(specs) == 0 {
		specs = []string{
			strconv.Itoa(DefaultAPIPort),
			strconv.Itoa(DefaultMySQLPort) + ":mysql41",
		}
	}

	var out []Desc
	for _, spec := range specs {
		descs, err := Parse(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, descs...)
	}
	return out, nil
}
