package state

import (
	"fmt"
	"net/netip"
)

// IPKind is the u32 discriminant of an IPAddr.
type IPKind uint32

const (
	IPv4 IPKind = 0
	IPv6 IPKind = 1
)

// IPAddr is a 20-byte tagged address: u32 kind followed by 16 payload bytes.
// IPv4 uses the first four bytes. IPv6 stores eight little-endian u16 segments.
// Unknown kinds are preserved as-is.
type IPAddr struct {
	Kind    IPKind
	Payload [16]byte
}

const IPAddrSize = 20

// IPAddrFrom converts a netip address. 4in6 addresses are stored as IPv6.
func IPAddrFrom(a netip.Addr) (IPAddr, error) {
	var out IPAddr
	switch {
	case a.Is4():
		out.Kind = IPv4
		b := a.As4()
		copy(out.Payload[:4], b[:])
	case a.Is6():
		out.Kind = IPv6
		b := a.As16()
		for i := 0; i < 16; i += 2 {
			out.Payload[i] = b[i+1]
			out.Payload[i+1] = b[i]
		}
	default:
		return IPAddr{}, fmt.Errorf("ipaddr: invalid address %v", a)
	}
	return out, nil
}

func (ip IPAddr) Valid() bool {
	return ip.Kind == IPv4 || ip.Kind == IPv6
}

// Addr converts back to netip. Unknown kinds report false.
func (ip IPAddr) Addr() (netip.Addr, bool) {
	switch ip.Kind {
	case IPv4:
		var b [4]byte
		copy(b[:], ip.Payload[:4])
		return netip.AddrFrom4(b), true
	case IPv6:
		var b [16]byte
		for i := 0; i < 16; i += 2 {
			b[i] = ip.Payload[i+1]
			b[i+1] = ip.Payload[i]
		}
		return netip.AddrFrom16(b), true
	}
	return netip.Addr{}, false
}

func (ip IPAddr) String() string {
	if a, ok := ip.Addr(); ok {
		return a.String()
	}
	return fmt.Sprintf("ipaddr(kind=%d)", uint32(ip.Kind))
}

func (ip IPAddr) encode(w *recordWriter) {
	w.u32(uint32(ip.Kind))
	w.raw(ip.Payload[:])
}

func (ip *IPAddr) decode(r *recordReader) {
	ip.Kind = IPKind(r.u32())
	r.fill(ip.Payload[:])
}
