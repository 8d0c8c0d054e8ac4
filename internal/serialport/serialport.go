// Package serialport adapts go.bug.st/serial to the session engine's sink
// interface, generalized from a single fixed receiver profile to the full
// baud/data/stop/parity/flow-control matrix a request descriptor can ask for.
package serialport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Port is the narrow surface the session engine and the NMEA bridge need.
type Port interface {
	Read(buffer []byte) (int, error)
	Write(data []byte) (int, error)
	SetReadTimeout(timeout time.Duration) error
	Close() error
}

// Config mirrors the request descriptor's serial fields (spec §3 `serial`).
type Config struct {
	Device      string
	BaudRate    int
	DataBits    int
	StopBits    serial.StopBits
	Parity      serial.Parity
	FlowControl FlowControl
	Timeout     time.Duration
}

// FlowControl names the flow-control setting, matching the original
// serial.c Protocol enum (off / RTS-CTS / XON-XOFF). Open acts on it only
// for FlowRTSCTS, by raising the RTS line after opening the port;
// FlowXonXoff changes nothing on the port.
type FlowControl int

const (
	FlowNone FlowControl = iota
	FlowRTSCTS
	FlowXonXoff
)

// Default matches the teacher's DefaultSerialConfig baud/databits/stopbits
// but drops the TOPGNSS-specific comment: every field here is caller-set
// from CLI flags, this is only the fallback when a flag is omitted.
func Default() Config {
	return Config{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
		Timeout:  500 * time.Millisecond,
	}
}

// GNSSPort implements Port by opening a real OS serial device through
// go.bug.st/serial.
type GNSSPort struct {
	port   serial.Port
	config Config
}

// Open configures and opens the device named in cfg.Device.
func Open(cfg Config) (*GNSSPort, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("serialport: no device specified")
	}
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		Parity:   cfg.Parity,
		StopBits: cfg.StopBits,
	}
	p, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("serialport: opening %s: %w", cfg.Device, err)
	}
	if cfg.FlowControl == FlowRTSCTS {
		if err := p.SetRTS(true); err != nil {
			p.Close()
			return nil, fmt.Errorf("serialport: enabling RTS: %w", err)
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = Default().Timeout
	}
	if err := p.SetReadTimeout(timeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("serialport: setting read timeout: %w", err)
	}
	return &GNSSPort{port: p, config: cfg}, nil
}

func (p *GNSSPort) Read(buffer []byte) (int, error)  { return p.port.Read(buffer) }
func (p *GNSSPort) Write(data []byte) (int, error)    { return p.port.Write(data) }
func (p *GNSSPort) SetReadTimeout(t time.Duration) error {
	p.config.Timeout = t
	return p.port.SetReadTimeout(t)
}

// Close releases the device. go.bug.st/serial restores the line settings
// captured at Open time, the generalized analogue of the original serial.c
// capturing and restoring the prior termios on SerialFree.
func (p *GNSSPort) Close() error {
	if p.port == nil {
		return nil
	}
	return p.port.Close()
}

// ListPorts enumerates available serial devices, as the teacher's
// GetPortDetails/ListPorts pair does.
func ListPorts() ([]*enumerator.PortDetails, error) {
	return enumerator.GetDetailedPortsList()
}

// WriteAll retries partial writes until the whole block is drained, per the
// spec's "writes may be partial and are retried until the block is drained".
func WriteAll(p Port, data []byte) error {
	for len(data) > 0 {
		n, err := p.Write(data)
		if err != nil {
			return fmt.Errorf("serialport: write: %w", err)
		}
		data = data[n:]
	}
	return nil
}
