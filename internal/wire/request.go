package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// requestFrame is the packed request layout: tag, pad, frequency, index, name.
type requestFrame struct {
	Tag       [4]byte
	_         byte
	Frequency int32
	Index     int32
	Channel   [ChannelFieldSize]byte
}

// RequestLen is the size of an encoded request frame.
var RequestLen = binary.Size(requestFrame{})

// Request is a decoded request frame.
type Request struct {
	Command   string
	Frequency int32
	Index     int32
	Channel   string
}

// EncodeRequest builds a request frame. A frequency of 0 asks the host to stop
// sending the dataref registered under index.
func EncodeRequest(command string, frequency, index int32, channel string) ([]byte, error) {
	if len(command) != 4 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, command)
	}
	if len(channel) > MaxChannelLen {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrChannelTooLong, len(channel), MaxChannelLen)
	}

	f := requestFrame{Frequency: frequency, Index: index}
	copy(f.Tag[:], command)
	copy(f.Channel[:], channel)

	buf := bytes.NewBuffer(make([]byte, 0, RequestLen))
	if err := binary.Write(buf, binary.LittleEndian, &f); err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRequest parses a request frame, trimming the name at its first zero byte.
func DecodeRequest(p []byte) (Request, error) {
	if len(p) < RequestLen {
		return Request{}, fmt.Errorf("%w: request of %d bytes, need %d", ErrInvalidFrame, len(p), RequestLen)
	}

	var f requestFrame
	if err := binary.Read(bytes.NewReader(p[:RequestLen]), binary.LittleEndian, &f); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}

	name := f.Channel[:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return Request{
		Command:   string(f.Tag[:]),
		Frequency: f.Frequency,
		Index:     f.Index,
		Channel:   string(name),
	}, nil
}
