package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	responseHeaderLen = 5
	samplePairLen     = 8

	// MinResponseLen is a header plus one (index, value) pair.
	MinResponseLen = responseHeaderLen + samplePairLen
)

// DecodeResponse returns the first sample of an RREF response frame.
func DecodeResponse(p []byte) (Sample, error) {
	if err := checkResponse(p); err != nil {
		return Sample{}, err
	}
	return decodePair(p[responseHeaderLen:]), nil
}

// DecodeResponseBatch returns every complete (index, value) pair of an RREF
// response frame. The host packs several subscribed datarefs into one frame
// when they fall due together; a trailing partial pair is ignored.
func DecodeResponseBatch(p []byte) ([]Sample, error) {
	if err := checkResponse(p); err != nil {
		return nil, err
	}
	body := p[responseHeaderLen:]
	samples := make([]Sample, 0, len(body)/samplePairLen)
	for len(body) >= samplePairLen {
		samples = append(samples, decodePair(body))
		body = body[samplePairLen:]
	}
	return samples, nil
}

// EncodeResponse builds a response frame carrying samples in order.
func EncodeResponse(command string, samples ...Sample) ([]byte, error) {
	if len(command) != 4 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCommand, command)
	}
	p := make([]byte, responseHeaderLen, responseHeaderLen+len(samples)*samplePairLen)
	copy(p, command)
	// X-Plane sends ',' in the gap byte; decoders ignore it.
	p[4] = ','
	for _, s := range samples {
		p = binary.LittleEndian.AppendUint32(p, uint32(s.Index))
		p = binary.LittleEndian.AppendUint32(p, math.Float32bits(s.Value))
	}
	return p, nil
}

func checkResponse(p []byte) error {
	if len(p) < MinResponseLen {
		return fmt.Errorf("%w: response of %d bytes, need %d", ErrInvalidFrame, len(p), MinResponseLen)
	}
	if string(p[:4]) != CommandRREF {
		return fmt.Errorf("%w: unexpected tag %q", ErrInvalidFrame, p[:4])
	}
	return nil
}

func decodePair(b []byte) Sample {
	return Sample{
		Index: int32(binary.LittleEndian.Uint32(b[0:4])),
		Value: math.Float32frombits(binary.LittleEndian.Uint32(b[4:8])),
	}
}
