package session

import "errors"

// SoftError wraps a reconnectable failure (spec §7): the engine prints a
// diagnostic, closes sockets, sleeps, and retries.
type SoftError struct {
	err error
}

func Soft(err error) *SoftError { return &SoftError{err: err} }

func (e *SoftError) Error() string { return e.err.Error() }
func (e *SoftError) Unwrap() error { return e.err }

// HardError wraps a terminal failure (spec §7): the engine prints a
// diagnostic and exits without reconnecting.
type HardError struct {
	err error
}

func Hard(err error) *HardError { return &HardError{err: err} }

func (e *HardError) Error() string { return e.err.Error() }
func (e *HardError) Unwrap() error { return e.err }

// Sentinel errors, wrapped at the call site with fmt.Errorf("%w: detail"),
// matching bramburn-gnssgo/pkg/gnssgo/stream/ntrip.go's error style.
var (
	ErrDial            = errors.New("session: dial failed")
	ErrSend            = errors.New("session: send failed")
	ErrRecv            = errors.New("session: recv failed")
	ErrCasterClosed    = errors.New("session: caster closed the session")
	ErrUnexpectedReply = errors.New("session: unexpected response from caster")

	ErrValidation      = errors.New("session: invalid request")
	ErrCredentialsLong = errors.New("session: username/password too long")
	ErrDataTooLong     = errors.New("session: requested data too long")
	ErrChunkFraming    = errors.New("session: chunked encoding framing error")
	ErrModeMismatch    = errors.New("session: mode mismatch, server answered ICY")
	ErrWatchdog        = errors.New("session: watchdog expired")
	ErrSerialOpen      = errors.New("session: serial open failed")
)
