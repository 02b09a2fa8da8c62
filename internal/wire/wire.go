// Package wire encodes and decodes the fixed-layout UDP frames spoken by the
// simulator: the multicast beacon and the RREF dataref request/response pair.
// All multi-byte fields are little-endian.
package wire

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

const (
	// BeaconGroup is the multicast group the simulator announces itself on.
	BeaconGroup = "239.255.1.1"
	// BeaconPort is the multicast port of the beacon (49000 before X-Plane 11).
	BeaconPort = 49707

	// CommandRREF subscribes to (or, with frequency 0, unsubscribes from) a dataref.
	CommandRREF = "RREF"

	// ChannelFieldSize is the width of the zero-padded dataref name field.
	ChannelFieldSize = 400
	// MaxChannelLen leaves room for the terminating zero byte.
	MaxChannelLen = ChannelFieldSize - 1
)

var (
	// ErrInvalidFrame is returned for malformed, foreign or version-mismatched frames.
	ErrInvalidFrame = errors.New("invalid frame")
	// ErrChannelTooLong is returned when a dataref name does not fit the request frame.
	ErrChannelTooLong = errors.New("channel name too long")
	// ErrInvalidCommand is returned when a command tag is not exactly four bytes.
	ErrInvalidCommand = errors.New("command tag must be 4 bytes")
)

// Role enumerates the operating role advertised in a beacon.
type Role uint32

const (
	RoleMaster       Role = 1
	RoleExternVisual Role = 2
	RoleIOS          Role = 3
)

func (r Role) String() string {
	switch r {
	case RoleMaster:
		return "master"
	case RoleExternVisual:
		return "extern-visual"
	case RoleIOS:
		return "ios"
	default:
		return fmt.Sprintf("role(%d)", uint32(r))
	}
}

// HostInfo is the connection information of a discovered simulator host.
// It is only ever assembled from a fully validated beacon.
type HostInfo struct {
	IP         string `msgpack:"ip"`
	Port       uint16 `msgpack:"port"`
	Hostname   string `msgpack:"hostname"`
	SimVersion int32  `msgpack:"sim_version"`
	Role       Role   `msgpack:"role"`
	RaknetPort uint16 `msgpack:"raknet_port"`
}

// Addr returns the ip:port the host accepts dataref requests on.
func (h HostInfo) Addr() string {
	return net.JoinHostPort(h.IP, strconv.Itoa(int(h.Port)))
}

// Sample is one decoded dataref reading.
type Sample struct {
	Index int32
	Value float32
}
