package session

import (
	"io"

	"github.com/bramburn/ntripclient/internal/serialport"
)

// serialSink adapts a serialport.Port to io.Writer, retrying partial
// writes until the block is drained (spec §4.9: "writes may be partial
// and are retried until the block is drained").
type serialSink struct {
	port serialport.Port
}

// NewSerialSink wraps a serial port as the payload sink.
func NewSerialSink(port serialport.Port) io.Writer {
	return &serialSink{port: port}
}

func (s *serialSink) Write(p []byte) (int, error) {
	if err := serialport.WriteAll(s.port, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
