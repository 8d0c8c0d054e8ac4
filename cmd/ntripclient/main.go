// Command ntripclient is an NTRIP client: it fetches a sourcetable or
// streams a mountpoint over HTTP, NTRIP-1, plain UDP, or RTSP/RTP, and
// writes the stream to stdout or a serial device. Grounded on
// original_source/ntripclient.c's getargs()/main() and the teacher's
// cmd/ntrip-client/main.go for the CLI shell, rebuilt on
// github.com/urfave/cli/v2 for the flag aliasing spec §6 requires.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bramburn/ntripclient/internal/ntripurl"
	"github.com/bramburn/ntripclient/internal/serialport"
	"github.com/bramburn/ntripclient/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"go.bug.st/serial"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	app := &cli.App{
		Name:                 "ntripclient",
		Usage:                "fetch an NTRIP sourcetable or stream a mountpoint",
		UsageText:            "ntripclient [options] [ntrip:mountpoint/user:password@server:port]",
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Aliases: []string{"s"}, Usage: "caster hostname"},
			&cli.StringFlag{Name: "port", Aliases: []string{"r"}, Usage: "caster TCP port"},
			&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "caster username"},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "caster password"},
			&cli.StringFlag{Name: "mountpoint", Aliases: []string{"m", "d"}, Usage: "mountpoint, or a ?-prefixed sourcetable filter"},
			&cli.StringFlag{Name: "nmea", Aliases: []string{"n"}, Usage: "GGA sentence to send as position"},
			&cli.BoolFlag{Name: "bitrate", Aliases: []string{"b"}, Usage: "report receive bitrate every 60s"},
			&cli.StringFlag{Name: "proxyhost", Aliases: []string{"S"}, Usage: "HTTP proxy host"},
			&cli.StringFlag{Name: "proxyport", Aliases: []string{"R"}, Usage: "HTTP proxy port"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"M"}, Usage: "1|h|http, 2|r|rtsp, 3|n|ntrip1, 4|a|auto, 5|u|udp"},
			&cli.BoolFlag{Name: "initudp", Aliases: []string{"I"}, Usage: "send a NAT pinhole packet before PLAY in RTSP mode"},
			&cli.IntFlag{Name: "udpport", Aliases: []string{"P"}, Usage: "local UDP port (0: let the OS choose)"},
			&cli.StringFlag{Name: "serdevice", Aliases: []string{"D"}, Usage: "serial device to write the stream to, instead of stdout"},
			&cli.IntFlag{Name: "baud", Aliases: []string{"B"}, Usage: "serial baud rate"},
			&cli.StringFlag{Name: "stopbits", Aliases: []string{"T"}, Usage: "serial stop bits: 1, 1.5, 2"},
			&cli.StringFlag{Name: "protocol", Aliases: []string{"C"}, Usage: "serial flow control: off, rtscts, xonxoff"},
			&cli.StringFlag{Name: "parity", Aliases: []string{"Y"}, Usage: "serial parity: n, e, o"},
			&cli.IntFlag{Name: "databits", Aliases: []string{"A"}, Usage: "serial data bits: 5..8"},
			&cli.StringFlag{Name: "serlogfile", Aliases: []string{"l"}, Usage: "file to append the bytes read back from the serial device to"},
			&cli.BoolFlag{Name: "debug", Usage: "raise the log level to debug"},
		},
		Action: func(c *cli.Context) error {
			return runClient(c, log)
		},
	}

	if err := app.Run(args); err != nil {
		if exitErr, ok := err.(cli.ExitCoder); ok {
			fmt.Fprintln(os.Stderr, err)
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	return 0
}

// runClient parses the URL and CLI flags into a request descriptor (later
// source wins, per spec §4.1), opens the sink, and drives the session
// engine to completion.
func runClient(c *cli.Context, log *logrus.Logger) error {
	if c.Bool("debug") {
		log.SetLevel(logrus.DebugLevel)
	}

	req := ntripurl.Default()
	if c.NArg() > 0 {
		parsed, err := ntripurl.Parse(c.Args().First())
		if err != nil {
			return cli.Exit(fmt.Sprintf("ntripclient: %v", err), 1)
		}
		req = parsed
	}

	if err := applyFlags(c, &req); err != nil {
		return cli.Exit(fmt.Sprintf("ntripclient: %v", err), 1)
	}
	if err := req.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("ntripclient: %v", err), 1)
	}

	sink, port, closeSink, err := openSink(req)
	if err != nil {
		return cli.Exit(fmt.Sprintf("ntripclient: %v", err), 20)
	}
	defer closeSink()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := session.New(req, sink, log)
	eng.SerialPort = port
	eng.SerialLogPath = req.SerialLogPath
	if err := eng.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return cli.Exit("", 1)
	}
	return nil
}

// applyFlags overrides req's fields with any flags the user actually set,
// implementing spec §4.1's "later source wins" merge: the URL (if any) was
// parsed first, flags apply on top of it.
func applyFlags(c *cli.Context, req *ntripurl.Request) error {
	if c.IsSet("server") {
		req.Server = c.String("server")
	}
	if c.IsSet("port") {
		req.Port = c.String("port")
	}
	if c.IsSet("user") {
		req.User = c.String("user")
	}
	if c.IsSet("password") {
		req.Password = c.String("password")
	}
	if c.IsSet("mountpoint") {
		req.Mountpoint = c.String("mountpoint")
	}
	if c.IsSet("nmea") {
		req.NMEA = c.String("nmea")
	}
	if c.IsSet("bitrate") {
		req.BitrateReport = c.Bool("bitrate")
	}
	if c.IsSet("proxyhost") {
		req.ProxyHost = c.String("proxyhost")
	}
	if c.IsSet("proxyport") {
		req.ProxyPort = c.String("proxyport")
	}
	if c.IsSet("mode") {
		mode, err := ntripurl.ParseMode(c.String("mode"))
		if err != nil {
			return err
		}
		req.Mode = mode
	}
	if c.IsSet("initudp") {
		req.InitUDP = c.Bool("initudp")
	}
	if c.IsSet("udpport") {
		req.UDPPort = c.Int("udpport")
	}
	if c.IsSet("serlogfile") {
		req.SerialLogPath = c.String("serlogfile")
	}

	if c.IsSet("serdevice") {
		sc := req.Serial
		if sc == nil {
			sc = &ntripurl.SerialConfig{}
		}
		sc.Device = c.String("serdevice")
		if c.IsSet("baud") {
			sc.Baud = c.Int("baud")
		}
		if c.IsSet("databits") {
			sc.DataBits = c.Int("databits")
		}
		if c.IsSet("stopbits") {
			sb, err := parseStopBits(c.String("stopbits"))
			if err != nil {
				return err
			}
			sc.StopBits = sb
		}
		if c.IsSet("parity") {
			p, err := parseParity(c.String("parity"))
			if err != nil {
				return err
			}
			sc.Parity = p
		}
		if c.IsSet("protocol") {
			sc.FlowControl = c.String("protocol")
		}
		req.Serial = sc
	}
	return nil
}

func parseStopBits(s string) (serial.StopBits, error) {
	switch s {
	case "1":
		return serial.OneStopBit, nil
	case "1.5":
		return serial.OnePointFiveStopBits, nil
	case "2":
		return serial.TwoStopBits, nil
	default:
		return 0, fmt.Errorf("stopbits: unrecognized %q", s)
	}
}

func parseParity(s string) (serial.Parity, error) {
	switch s {
	case "n", "N":
		return serial.NoParity, nil
	case "e", "E":
		return serial.EvenParity, nil
	case "o", "O":
		return serial.OddParity, nil
	default:
		return 0, fmt.Errorf("parity: unrecognized %q", s)
	}
}

// openSink opens the stdout or serial-device sink named by req (spec §6
// "Sinks"). When a serial device is opened, the raw port is also returned
// so the caller can wire up the concurrent GGA-relay bridge (spec §4.9);
// it is nil for the stdout sink.
func openSink(req ntripurl.Request) (sink io.Writer, port serialport.Port, closeFn func(), err error) {
	if req.Serial == nil || req.Serial.Device == "" {
		return os.Stdout, nil, func() {}, nil
	}

	cfg := serialport.Default()
	cfg.Device = req.Serial.Device
	if req.Serial.Baud > 0 {
		cfg.BaudRate = req.Serial.Baud
	}
	if req.Serial.DataBits > 0 {
		cfg.DataBits = req.Serial.DataBits
	}
	if req.Serial.StopBits != 0 {
		cfg.StopBits = req.Serial.StopBits
	}
	if req.Serial.Parity != 0 {
		cfg.Parity = req.Serial.Parity
	}
	switch req.Serial.FlowControl {
	case "rtscts":
		cfg.FlowControl = serialport.FlowRTSCTS
	case "xonxoff":
		cfg.FlowControl = serialport.FlowXonXoff
	}

	gnssPort, err := serialport.Open(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w", err)
	}
	return session.NewSerialSink(gnssPort), gnssPort, func() { gnssPort.Close() }, nil
}
