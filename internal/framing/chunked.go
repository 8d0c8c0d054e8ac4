package framing

import "fmt"

// chunk decoder states, numbered to match spec §4.8's figure directly so a
// reader can cross-reference the two without renumbering in their head.
const (
	stateSize      = 2 // reading hex digits of the chunk size
	stateSizeCR    = 3 // expect '\n' terminating the size line
	stateBody      = 4 // copying chunksize bytes of chunk body
	stateExtension = 5 // skipping a chunk extension until '\r'
	stateBodyCR    = 6 // expect '\r' terminating a non-final chunk's body
	stateBodyLF    = 7 // expect '\n' after that CR, before the next size line
)

// Decoder implements the chunked transfer-encoding state machine of spec
// §4.7, with two extra states (stateBodyCR, stateBodyLF) that consume the
// CRLF following each chunk body. All state lives in the struct rather than call-stack locals, so
// feeding any partition of the input across N calls to Decode produces the
// same decoded output as one call over the whole input (spec §8 invariant 4).
type Decoder struct {
	state     int
	chunkSize int64
	done      bool // final (zero-length) chunk observed; stream ends cleanly
}

// NewDecoder returns a Decoder positioned at the start of a chunked body
// (spec state 1: "Expect chunk size; reset chunksize=0; transition to 2").
func NewDecoder() *Decoder {
	return &Decoder{state: stateSize}
}

// Done reports whether the final zero-length chunk has been observed.
func (d *Decoder) Done() bool { return d.done }

// Decode consumes p and returns the body bytes it decoded to. On a
// protocol violation it returns ErrChunkFraming wrapped with the offending
// detail; the caller must treat this as fatal (no reconnect).
func (d *Decoder) Decode(p []byte) ([]byte, error) {
	var out []byte
	i := 0
	for i < len(p) {
		b := p[i]
		switch d.state {
		case stateSize:
			switch {
			case b >= '0' && b <= '9':
				d.chunkSize = d.chunkSize*16 + int64(b-'0')
				i++
			case b >= 'a' && b <= 'f':
				d.chunkSize = d.chunkSize*16 + int64(b-'a') + 10
				i++
			case b >= 'A' && b <= 'F':
				d.chunkSize = d.chunkSize*16 + int64(b-'A') + 10
				i++
			case b == '\r':
				d.state = stateSizeCR
				i++
			case b == ';':
				d.state = stateExtension
				i++
			default:
				return out, fmt.Errorf("%w: invalid chunk-size byte %q", ErrChunkFraming, b)
			}
		case stateSizeCR:
			if b != '\n' {
				return out, fmt.Errorf("%w: expected LF after chunk size", ErrChunkFraming)
			}
			i++
			if d.chunkSize > 0 {
				d.state = stateBody
			} else {
				d.done = true
				d.state = stateSize
				d.chunkSize = 0
			}
		case stateBody:
			remaining := len(p) - i
			take := remaining
			if int64(take) > d.chunkSize {
				take = int(d.chunkSize)
			}
			out = append(out, p[i:i+take]...)
			d.chunkSize -= int64(take)
			i += take
			if d.chunkSize == 0 {
				d.state = stateBodyCR
			}
		case stateBodyCR:
			if b != '\r' {
				return out, fmt.Errorf("%w: expected CR after chunk body", ErrChunkFraming)
			}
			i++
			d.state = stateBodyLF
		case stateBodyLF:
			if b != '\n' {
				return out, fmt.Errorf("%w: expected LF after chunk body", ErrChunkFraming)
			}
			i++
			d.state = stateSize
		case stateExtension:
			if b == '\r' {
				d.state = stateSizeCR
			}
			i++
		default:
			return out, fmt.Errorf("%w: impossible decoder state %d", ErrChunkFraming, d.state)
		}
	}
	return out, nil
}
