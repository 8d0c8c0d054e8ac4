package session

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/bramburn/ntripclient/internal/nmea"
	"github.com/bramburn/ntripclient/internal/serialport"
	"github.com/sirupsen/logrus"
)

// serialBridge is the concurrent reader side of spec §4.9's serial sink:
// bytes read from the receiver are mirrored to stdout and an optional log
// file, and scanned for GGA sentences to forward upstream over the control
// socket, independent of the payload bytes flowing the other way into the
// serial port.
type serialBridge struct {
	port    serialport.Port
	control io.Writer
	logFile *os.File
	log     logrus.FieldLogger
	scanner *nmea.Scanner
}

// newSerialBridge opens logPath (if set) and returns a bridge ready to run.
func newSerialBridge(port serialport.Port, logPath string, control io.Writer, log logrus.FieldLogger) (*serialBridge, error) {
	b := &serialBridge{port: port, control: control, log: log, scanner: nmea.NewScanner()}
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		b.logFile = f
	}
	return b, nil
}

func (b *serialBridge) Close() {
	if b.logFile != nil {
		b.logFile.Close()
	}
}

// run reads the serial device until ctx is cancelled, feeding each byte
// read to the scanner and mirroring it (spec §4.9: "mirrored to
// standard output and appended to serial_log_path if set").
func (b *serialBridge) run(ctx context.Context) {
	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b.port.SetReadTimeout(200 * time.Millisecond)
		n, err := b.port.Read(buf)
		for i := 0; i < n; i++ {
			c := buf[i]
			os.Stdout.Write([]byte{c})
			if b.logFile != nil {
				b.logFile.Write([]byte{c})
			}
			if sentence, complete := b.scanner.Feed(c); complete {
				b.forward(sentence)
			}
		}
		if err != nil {
			// go.bug.st/serial reports a read timeout as n==0, err==nil;
			// any actual error (e.g. the device was unplugged) ends the
			// bridge. The payload-writing half of the session is
			// unaffected either way.
			return
		}
	}
}

// forward validates the sentence (logged only, never blocking) and sends
// it over the control socket, per spec §4.9: "the matched sentence
// followed by \r\n is sent over the control socket to the caster."
func (b *serialBridge) forward(sentence string) {
	if _, err := nmea.Validate(sentence, b.log); err != nil {
		b.log.WithError(err).Debug("serial: GGA sentence failed validation, forwarding anyway")
	}
	if _, err := b.control.Write([]byte(sentence + "\r\n")); err != nil {
		b.log.WithError(err).Warn("serial: failed to forward GGA upstream")
	}
}

// withSerialBridge starts the bridge (when the request carries a serial
// port) for the duration of fn, stopping it when fn returns.
func (e *Engine) withSerialBridge(ctx context.Context, control io.Writer, fn func() error) error {
	if e.SerialPort == nil {
		return fn()
	}
	bridge, err := newSerialBridge(e.SerialPort, e.SerialLogPath, control, e.Log)
	if err != nil {
		return Hard(err)
	}
	defer bridge.Close()

	bctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go bridge.run(bctx)

	return fn()
}
