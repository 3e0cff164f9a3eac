package reactor

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// Address is an immutable host/port pair, created by the embedding
// application and consumed once by the Acceptor at construction time.
// Grounded on original_source/Net/InetAddress.hpp.
type Address struct {
	host string
	port uint16
}

// NewAddress builds an Address from a host string and a port number.
func NewAddress(host string, port uint16) Address {
	return Address{host: host, port: port}
}

func (a Address) Host() string { return a.host }
func (a Address) Port() uint16 { return a.port }

func (a Address) String() string {
	return net.JoinHostPort(a.host, fmt.Sprintf("%d", a.port))
}

// Marshal serialises the address into its wire form: an IPv4 4-tuple
// followed by the 16-bit port, both in network byte order.
func (a Address) Marshal() ([6]byte, error) {
	var out [6]byte
	ip := net.ParseIP(a.host)
	if ip == nil {
		return out, errors.Errorf("reactor: invalid host %q", a.host)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return out, errors.Errorf("reactor: address %q is not IPv4", a.host)
	}
	copy(out[0:4], ip4)
	out[4] = byte(a.port >> 8)
	out[5] = byte(a.port)
	return out, nil
}

// UnmarshalAddress parses the wire form produced by Marshal.
func UnmarshalAddress(b [6]byte) Address {
	ip := net.IPv4(b[0], b[1], b[2], b[3])
	port := uint16(b[4])<<8 | uint16(b[5])
	return Address{host: ip.String(), port: port}
}
