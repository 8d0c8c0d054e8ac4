package ntripurl

import (
	"fmt"
	"strings"
)

// Mode selects one of the four transports plus automatic negotiation
// (spec §3 `mode`).
type Mode int

const (
	ModeAuto Mode = iota
	ModeHTTP
	ModeRTSP
	ModeNTRIP1
	ModeUDP
)

func (m Mode) String() string {
	switch m {
	case ModeHTTP:
		return "http"
	case ModeRTSP:
		return "rtsp"
	case ModeNTRIP1:
		return "ntrip1"
	case ModeUDP:
		return "udp"
	default:
		return "auto"
	}
}

// ParseMode accepts any of the three spellings the CLI allows per mode
// (spec §6: "1|h|http", "2|r|rtsp", "3|n|ntrip1", "4|a|auto", "5|u|udp").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "h", "http":
		return ModeHTTP, nil
	case "2", "r", "rtsp":
		return ModeRTSP, nil
	case "3", "n", "ntrip1":
		return ModeNTRIP1, nil
	case "4", "a", "auto":
		return ModeAuto, nil
	case "5", "u", "udp":
		return ModeUDP, nil
	default:
		return ModeAuto, fmt.Errorf("ntripurl: unknown mode %q", s)
	}
}
