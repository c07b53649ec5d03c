package daemon

import "time"

// PowerAction is what a power button pulse asks for.
type PowerAction int

const (
	PowerNone PowerAction = iota
	PowerReboot
	PowerShutdown
)

// maxPulse is the longest pulse worth timing, longer ones are dropped.
const maxPulse = 500 * time.Millisecond

func (a PowerAction) String() string {
	switch a {
	case PowerReboot:
		return "reboot"
	case PowerShutdown:
		return "shutdown"
	default:
		return "none"
	}
}

// ClassifyPulse maps the length of a pulse on the power button line
// to an action. Both ranges are inclusive-exclusive.
func ClassifyPulse(pulse time.Duration) PowerAction {
	switch {
	case pulse >= 10*time.Millisecond && pulse < 30*time.Millisecond:
		return PowerReboot
	case pulse >= 30*time.Millisecond && pulse < 50*time.Millisecond:
		return PowerShutdown
	default:
		return PowerNone
	}
}

// pulseTimer turns edge timestamps into pulse lengths.
// Edges are delivered serially, so it is not guarded.
type pulseTimer struct {
	rise    time.Duration
	pending bool
}

func (p *pulseTimer) rising(ts time.Duration) {
	p.rise = ts
	p.pending = true
}

// falling returns the pulse length and whether a rising edge preceded it.
func (p *pulseTimer) falling(ts time.Duration) (time.Duration, bool) {
	if !p.pending {
		return 0, false
	}
	p.pending = false
	return ts - p.rise, true
}
