package session

import "time"

// AlarmTime is the inactivity window of spec §4.9: "armed at startup
// (≈120 s) and re‑armed on every payload or control byte."
const AlarmTime = 120 * time.Second

// ShutdownGrace is the shortened re-arm period after a user interrupt,
// giving the engine a last chance at a graceful teardown before the
// process is killed (spec §4.9).
const ShutdownGrace = 2 * time.Second

// KeepaliveInterval governs the RTSP/UDP keepalive cadence (spec §4.5/§4.6:
// "every 15 seconds of wallclock").
const KeepaliveInterval = 15 * time.Second

// BitrateInterval governs the throughput report cadence (spec §4.5:
// "Every 60 seconds of wallclock").
const BitrateInterval = 60 * time.Second

// Watchdog is a re-armable inactivity timer (spec §4.9). It is not a
// signal-driven alarm() the way the original C client implements it —
// Go has no portable SIGALRM equivalent — but a plain re-armable
// time.Timer gives the same externally observable behavior: if it fires
// without being reset first, the session is dead.
type Watchdog struct {
	timer *time.Timer
}

// NewWatchdog starts a watchdog armed for d.
func NewWatchdog(d time.Duration) *Watchdog {
	return &Watchdog{timer: time.NewTimer(d)}
}

// C returns the channel that fires when the watchdog expires.
func (w *Watchdog) C() <-chan time.Time { return w.timer.C }

// Rearm resets the watchdog to fire again after d, draining any pending
// fire event first so stale expirations don't leak through.
func (w *Watchdog) Rearm(d time.Duration) {
	if !w.timer.Stop() {
		select {
		case <-w.timer.C:
		default:
		}
	}
	w.timer.Reset(d)
}

// Stop disarms the watchdog permanently.
func (w *Watchdog) Stop() {
	w.timer.Stop()
}
