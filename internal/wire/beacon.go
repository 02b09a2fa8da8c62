package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

const (
	beaconHeaderLen = 5
	beaconFixedLen  = 16
	beaconNameOff   = beaconHeaderLen + beaconFixedLen
	raknetPortLen   = 2

	// MinBeaconLen is the shortest frame that can carry every beacon field.
	MinBeaconLen = beaconNameOff + raknetPortLen

	// Only beacons of this version from an X-Plane host (not PlaneMaker) are accepted.
	beaconMajor  = 1
	beaconMinor  = 2
	hostIDXPlane = 1
)

var beaconHeader = []byte("BECN\x00")

// beaconFixed mirrors the packed fixed-width part of the beacon.
type beaconFixed struct {
	Major      uint8
	Minor      uint8
	HostID     int32
	SimVersion int32
	Role       uint32
	Port       uint16
}

// Beacon is a decoded beacon frame.
type Beacon struct {
	Major      uint8
	Minor      uint8
	HostID     int32
	SimVersion int32
	Role       Role
	Port       uint16
	Hostname   string
	RaknetPort uint16
}

// HostInfo assembles the connection info for a beacon received from ip.
func (b Beacon) HostInfo(ip string) HostInfo {
	return HostInfo{
		IP:         ip,
		Port:       b.Port,
		Hostname:   b.Hostname,
		SimVersion: b.SimVersion,
		Role:       b.Role,
		RaknetPort: b.RaknetPort,
	}
}

// DecodeBeacon parses a beacon frame. Frames with a foreign header, short
// frames and beacons outside the accepted version/host gate all fail with an
// error wrapping ErrInvalidFrame.
func DecodeBeacon(p []byte) (Beacon, error) {
	if len(p) < beaconHeaderLen || !bytes.Equal(p[:beaconHeaderLen], beaconHeader) {
		return Beacon{}, fmt.Errorf("%w: not a beacon", ErrInvalidFrame)
	}
	if len(p) < MinBeaconLen {
		return Beacon{}, fmt.Errorf("%w: beacon of %d bytes, need %d", ErrInvalidFrame, len(p), MinBeaconLen)
	}

	var f beaconFixed
	if err := binary.Read(bytes.NewReader(p[beaconHeaderLen:beaconNameOff]), binary.LittleEndian, &f); err != nil {
		return Beacon{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if f.Major != beaconMajor || f.Minor != beaconMinor || f.HostID != hostIDXPlane {
		return Beacon{}, fmt.Errorf("%w: beacon version %d.%d from host type %d",
			ErrInvalidFrame, f.Major, f.Minor, f.HostID)
	}

	name := p[beaconNameOff : len(p)-raknetPortLen]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	if !utf8.Valid(name) {
		return Beacon{}, fmt.Errorf("%w: hostname is not valid UTF-8", ErrInvalidFrame)
	}

	return Beacon{
		Major:      f.Major,
		Minor:      f.Minor,
		HostID:     f.HostID,
		SimVersion: f.SimVersion,
		Role:       Role(f.Role),
		Port:       f.Port,
		Hostname:   string(name),
		RaknetPort: binary.LittleEndian.Uint16(p[len(p)-raknetPortLen:]),
	}, nil
}

// EncodeBeacon builds a beacon frame: header, fixed fields, the
// zero-terminated hostname and the trailing raknet port.
func EncodeBeacon(b Beacon) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, MinBeaconLen+len(b.Hostname)+1))
	buf.Write(beaconHeader)
	// Writes to a bytes.Buffer cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, beaconFixed{
		Major:      b.Major,
		Minor:      b.Minor,
		HostID:     b.HostID,
		SimVersion: b.SimVersion,
		Role:       uint32(b.Role),
		Port:       b.Port,
	})
	buf.WriteString(b.Hostname)
	buf.WriteByte(0)
	_ = binary.Write(buf, binary.LittleEndian, b.RaknetPort)
	return buf.Bytes()
}
