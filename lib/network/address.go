package network

import (
	"fmt"
	"strconv"
	"strings"
)

// IPv4Address identifies a TCP endpoint as a 32-bit IPv4 address and a port,
// both in host byte order. Conversion to and from the network-order sockaddr
// representation happens only inside the netsock adapter.
type IPv4Address struct {
	Host uint32
	Port uint16
}

// NewIPv4Address builds an address from the four dotted-quad octets and a port.
func NewIPv4Address(a, b, c, d byte, port uint16) IPv4Address {
	return IPv4Address{
		Host: uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d),
		Port: port,
	}
}

// LoopbackAddress returns 127.0.0.1 with the given port.
func LoopbackAddress(port uint16) IPv4Address {
	return NewIPv4Address(127, 0, 0, 1, port)
}

// ParseIPv4Address parses a numeric "a.b.c.d:port" string. Host names are not
// resolved; the library addresses peers by IPv4 only.
func ParseIPv4Address(s string) (IPv4Address, error) {
	hostPart, portPart, found := strings.Cut(s, ":")
	if !found {
		return IPv4Address{}, fmt.Errorf("invalid address %q (expected a.b.c.d:port)", s)
	}

	port, err := strconv.ParseUint(portPart, 10, 16)
	if err != nil {
		return IPv4Address{}, fmt.Errorf("invalid port in address %q: %v", s, err)
	}

	octets := strings.Split(hostPart, ".")
	if len(octets) != 4 {
		return IPv4Address{}, fmt.Errorf("invalid IPv4 host in address %q", s)
	}

	var host uint32
	for _, octet := range octets {
		v, err := strconv.ParseUint(octet, 10, 8)
		if err != nil {
			return IPv4Address{}, fmt.Errorf("invalid IPv4 host in address %q: %v", s, err)
		}
		host = host<<8 | uint32(v)
	}

	return IPv4Address{Host: host, Port: uint16(port)}, nil
}

// String returns the canonical "a.b.c.d:port" representation.
func (a IPv4Address) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d",
		byte(a.Host>>24), byte(a.Host>>16), byte(a.Host>>8), byte(a.Host), a.Port)
}
