package framing

import "encoding/binary"

// RTPHeaderLen is the fixed 12-byte RTP header used by both UDP and RTSP
// data paths (spec §4.5/§4.6): no padding, extension, or CSRC.
const RTPHeaderLen = 12

// Payload type values the engine understands (spec §6).
const (
	PayloadTypeData     = 96 // data
	PayloadTypeRequest  = 97 // request/init
	PayloadTypeTeardown = 98 // end of session marker
)

// Header is the 12-byte RTP framing header (spec GLOSSARY "RTP"). Packed
// and unpacked with explicit big-endian field access (spec §9: "avoid
// structure casts"), grounded on other_examples' RTPHeader/PacketRTP types
// adapted here to a fixed version-2/no-extension client role.
type Header struct {
	Version     uint8
	PayloadType uint8
	Sequence    uint16
	Timestamp   uint32
	SSRC        uint32
}

// Marshal packs h into a 12-byte big-endian RTP header.
func (h Header) Marshal() []byte {
	buf := make([]byte, RTPHeaderLen)
	buf[0] = h.Version << 6
	buf[1] = h.PayloadType
	binary.BigEndian.PutUint16(buf[2:4], h.Sequence)
	binary.BigEndian.PutUint32(buf[4:8], h.Timestamp)
	binary.BigEndian.PutUint32(buf[8:12], h.SSRC)
	return buf
}

// ParseHeader unpacks the first 12 bytes of b as an RTP header. It accepts
// any payload type; callers filter to {96,97,98} per spec §4.5.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < RTPHeaderLen {
		return Header{}, ErrRTPHeaderShort
	}
	version := b[0] >> 6
	h := Header{
		Version:     version,
		PayloadType: b[1],
		Sequence:    binary.BigEndian.Uint16(b[2:4]),
		Timestamp:   binary.BigEndian.Uint32(b[4:8]),
		SSRC:        binary.BigEndian.Uint32(b[8:12]),
	}
	if version != 2 {
		return h, ErrRTPVersion
	}
	return h, nil
}

// IsKnownPayloadType reports whether pt is one of the three payload types
// this client understands (spec §4.5: "Accept only packets where version=2
// and payload type ∈ {96, 97, 98}").
func IsKnownPayloadType(pt uint8) bool {
	return pt == PayloadTypeData || pt == PayloadTypeRequest || pt == PayloadTypeTeardown
}

// SequenceGreater reports whether sequence u should be considered "newer"
// than the last forwarded sequence sn, under 16-bit ring arithmetic.
//
// This resolves spec §9 Open Question (a) deliberately: the original C
// compares a 16-bit unsigned value as if it were signed ("u < -30000 &&
// sn > 30000") to detect wraparound, which is itself accidental — u, as
// computed there, can never be negative. The well-defined analogue is the
// standard serial-number (RFC 1982-style) comparison: treat the 16-bit
// space as a ring and compare the signed difference.
func SequenceGreater(u, sn uint16) bool {
	return int16(u-sn) > 0
}
