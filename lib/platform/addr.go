// Package platform hides host differences behind a small set of network
// helpers: DNS resolution restricted to IPv4, formatting of addresses kept
// in network byte order, port-range validation and machine MAC discovery.
package platform

import (
	"fmt"
	"net"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("platform")

// AddrAny is the IPv4 bind-all-interfaces address (0.0.0.0) in network byte order
const AddrAny uint32 = 0

// --------------------------------------------------------------------------
// Address resolution and formatting
// --------------------------------------------------------------------------

// ResolveIPv4 resolves a host name to a single IPv4 address, returned as a
// uint32 in network byte order. Resolution is strict: a host with no A record
// is an error. If the host has several A records the first one is used and a
// warning is logged, matching the daemon's historical behavior.
func ResolveIPv4(host string) (uint32, error) {
	ips, err := net.LookupIP(host)
	if err != nil {
		return 0, fmt.Errorf("no AF_INET address found for: %s: %v", host, err)
	}

	var v4 []net.IP
	for _, ip := range ips {
		if ip4 := ip.To4(); ip4 != nil {
			v4 = append(v4, ip4)
		}
	}

	if len(v4) == 0 {
		return 0, fmt.Errorf("no AF_INET address found for: %s", host)
	}

	if len(v4) > 1 {
		var all []string
		for _, ip := range v4 {
			all = append(all, "ip="+ip.String())
		}
		Logger.Warningf("multiple addresses found for '%s', using the first one (%s)",
			host, strings.Join(all, "; "))
	}

	return IPv4ToNetOrder(v4[0]), nil
}

// IPv4ToNetOrder packs a 4-byte IP into a uint32 in network byte order
func IPv4ToNetOrder(ip net.IP) uint32 {
	ip4 := ip.To4()
	if ip4 == nil {
		return 0
	}
	return uint32(ip4[0])<<24 | uint32(ip4[1])<<16 | uint32(ip4[2])<<8 | uint32(ip4[3])
}

// FormatIPv4 renders an address given in network byte order as a dotted quad
func FormatIPv4(addr uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d",
		byte(addr>>24), byte(addr>>16), byte(addr>>8), byte(addr))
}

// --------------------------------------------------------------------------
// Ports
// --------------------------------------------------------------------------

// IsPortInRange reports whether a port is usable for a listener (1..65535)
func IsPortInRange(port int) bool {
	return port > 0 && port <= 0xFFFF
}

// --------------------------------------------------------------------------
// MAC discovery
// --------------------------------------------------------------------------

// MACAddress returns the hardware address of the first interface carrying a
// non-zero MAC, formatted as colon-separated hex. Returns "" when the machine
// exposes no usable interface (the caller treats that as "unknown").
func MACAddress() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		Logger.Debugf("interface enumeration failed: %v", err)
		return ""
	}

	for _, iface := range ifaces {
		if len(iface.HardwareAddr) < 6 {
			continue
		}
		allZero := true
		for _, b := range iface.HardwareAddr {
			if b != 0 {
				allZero = false
				break
			}
		}
		if !allZero {
			return iface.HardwareAddr.String()
		}
	}

	return ""
}
