package framing

import "errors"

// ErrChunkFraming is returned by Decoder when the chunked transfer-encoding
// stream violates the grammar in spec §4.8 — always hard, never reconnectable
// (spec §4.8: "the decoder fails the session (hard — no reconnect; data
// integrity is lost)").
var ErrChunkFraming = errors.New("framing: chunked transfer-encoding error")

// ErrRTPHeaderShort is returned when fewer than RTPHeaderLen bytes are
// available to unmarshal.
var ErrRTPHeaderShort = errors.New("framing: short RTP header")

// ErrRTPVersion is returned when the RTP header's version field is not 2.
var ErrRTPVersion = errors.New("framing: unsupported RTP version")
