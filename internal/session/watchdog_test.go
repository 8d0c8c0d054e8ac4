package session

import (
	"testing"
	"time"
)

func TestWatchdogFiresWhenNotRearmed(t *testing.T) {
	w := NewWatchdog(10 * time.Millisecond)
	defer w.Stop()
	select {
	case <-w.C():
	case <-time.After(200 * time.Millisecond):
		t.Fatal("watchdog did not fire")
	}
}

func TestWatchdogRearmDelaysFire(t *testing.T) {
	w := NewWatchdog(30 * time.Millisecond)
	defer w.Stop()

	rearmed := false
	deadline := time.After(300 * time.Millisecond)
	for {
		select {
		case <-w.C():
			if !rearmed {
				rearmed = true
				w.Rearm(30 * time.Millisecond)
				continue
			}
			return // fired again after the re-arm: success
		case <-deadline:
			t.Fatal("watchdog never fired a second time after Rearm")
		}
	}
}
