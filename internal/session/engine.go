// Package session implements the NTRIP session engine (spec §4): mode
// selection, request construction, response parsing, the watchdog, and
// reconnect-with-backoff. Grounded on original_source/ntripclient.c's
// main() loop and the teacher's internal/ntrip/client.go and
// de-bkg-gognss/pkg/ntrip/client.go for the HTTP-facing pieces.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/bramburn/ntripclient/internal/ntripurl"
	"github.com/bramburn/ntripclient/internal/serialport"
	"github.com/bramburn/ntripclient/internal/transport"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Engine drives a single request descriptor to completion: one or more
// connection attempts, reconnecting with additive backoff on soft
// failures, until a hard failure, a clean end-of-stream, or the caller's
// context is cancelled.
type Engine struct {
	Req       ntripurl.Request
	Dialer    *transport.Dialer
	Sink      io.Writer
	Log       logrus.FieldLogger
	UserAgent string

	// SerialPort, when set, is read concurrently with every attempt and
	// scanned for GGA sentences to relay upstream (spec §4.9); it is
	// independent of Sink, which is the payload write side of the same
	// device.
	SerialPort    serialport.Port
	SerialLogPath string

	watchdog      *Watchdog
	watchdogFired atomic.Bool

	// connected is set once an attempt reaches the data-streaming phase
	// (header parsed, caster accepted the request) and cleared before each
	// new attempt. Run uses it to reset the backoff counter, mirroring
	// original_source/ntripclient.c's sleeptime=0 reset at both of its
	// header-parse-success call sites.
	connected atomic.Bool

	// shuttingDown distinguishes a watchdog re-arm done for the
	// shutdown-grace race (spec §4.9) from the normal inactivity alarm.
	shuttingDown atomic.Bool
}

// markConnected records that the current attempt has started streaming
// data, so a later failure resets the reconnect backoff instead of
// compounding it.
func (e *Engine) markConnected() {
	e.connected.Store(true)
}

// New builds an Engine ready to Run.
func New(req ntripurl.Request, sink io.Writer, log logrus.FieldLogger) *Engine {
	return &Engine{
		Req:       req,
		Dialer:    transport.NewDialer(),
		Sink:      sink,
		Log:       log,
		UserAgent: DefaultUserAgent,
	}
}

// Run drives the reconnect loop of spec §4.9 until completion. It returns
// nil on a clean end-of-stream (exit code 0), a *HardError on a terminal
// failure (exit code 1), or the last soft error if the request was
// one-shot (no mountpoint, or a sourcetable filter) and the attempt never
// succeeded.
func (e *Engine) Run(ctx context.Context) error {
	e.watchdog = NewWatchdog(AlarmTime)
	defer e.watchdog.Stop()

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopWatch := make(chan struct{})
	defer close(stopWatch)
	forceKill := make(chan struct{})
	go func() {
		select {
		case <-e.watchdog.C():
			if e.shuttingDown.Load() {
				close(forceKill)
				return
			}
			e.watchdogFired.Store(true)
			fmt.Fprintf(os.Stderr, "ERROR: more than %d seconds no activity\n", int(AlarmTime.Seconds()))
			cancel()
		case <-stopWatch:
		}
	}()

	oneShot := !e.Req.HasMountpoint() || e.Req.IsSourcetableFilter()
	sleeptime := 1 // spec §8 invariant 5: after k failures, sleep is 1+2(k-1)

	for {
		reqID := uuid.New().String()
		log := e.Log.WithFields(logrus.Fields{
			"request_id": reqID,
			"mode":       e.Req.Mode.String(),
			"mountpoint": e.Req.Mountpoint,
		})

		e.connected.Store(false)
		attemptDone := make(chan error, 1)
		go func() {
			attemptDone <- e.attempt(wctx, log)
		}()

		var err error
		select {
		case err = <-attemptDone:
		case <-ctx.Done():
			// User-requested shutdown (spec §4.9): give the attempt's own
			// ctx.Done() branch a short grace period to send a teardown and
			// return, then force through regardless of whether it finished.
			e.shuttingDown.Store(true)
			e.watchdog.Rearm(ShutdownGrace)
			select {
			case err = <-attemptDone:
			case <-forceKill:
				log.Warn("session: shutdown grace period expired, forcing exit")
				return nil
			}
		}
		if err == nil {
			return nil
		}
		if e.watchdogFired.Load() {
			return Hard(fmt.Errorf("%w", ErrWatchdog))
		}
		if ctx.Err() != nil {
			// User-requested shutdown (spec §4.9: "A user interrupt sets
			// stop ... allows the engine to try a graceful teardown").
			return nil
		}

		var hardErr *HardError
		if errors.As(err, &hardErr) {
			return hardErr
		}

		log.WithError(err).Warn("session: connection attempt failed, retrying")
		if oneShot {
			return err
		}

		if e.connected.Load() {
			sleeptime = 1
		}

		select {
		case <-wctx.Done():
			if e.watchdogFired.Load() {
				return Hard(fmt.Errorf("%w", ErrWatchdog))
			}
			return nil
		case <-time.After(time.Duration(sleeptime) * time.Second):
		}
		sleeptime += 2
	}
}

// attempt dispatches one connection attempt by (mode, has-mountpoint)
// as described in spec §4.5.
func (e *Engine) attempt(ctx context.Context, log logrus.FieldLogger) error {
	switch {
	case !e.Req.HasMountpoint():
		return e.httpAttempt(ctx, log) // sourcetable fetch: always plain HTTP
	case e.Req.Mode == ntripurl.ModeUDP:
		return e.udpAttempt(ctx, log)
	case e.Req.Mode == ntripurl.ModeRTSP:
		return e.rtspAttempt(ctx, log)
	default:
		return e.httpAttempt(ctx, log)
	}
}
