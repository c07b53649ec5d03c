package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/oblq/argonone/internal/argonone"
	"github.com/oblq/argonone/internal/prefs"
)

// Icon names, as installed by the panel plugin.
const (
	IconPaused = "argonone-fan-paused"
	IconIdle   = "argonone-fan"
	IconMedium = "argonone-fan-medium"
	IconHigh   = "argonone-fan-high"
)

// DefaultTooltip is shown when the status has its own label.
const DefaultTooltip = "ArgonOne fan"

// Icon picks the icon matching the fan state.
func Icon(s argonone.DeviceState) string {
	switch {
	case !s.FanControlEnabled:
		return IconPaused
	case s.FanSpeed <= 0:
		return IconIdle
	case s.FanSpeed <= 50:
		return IconMedium
	default:
		return IconHigh
	}
}

// Status formats the fan speed and, if requested, the temperature.
func Status(s argonone.DeviceState, p prefs.Preferences) string {
	var b strings.Builder
	if s.FanSpeedKnown() {
		fmt.Fprintf(&b, "%3d%%", s.FanSpeed)
	} else {
		b.WriteString(" -- ")
	}
	switch {
	case !p.IncludeTemperature:
	case s.HasTemperature:
		fmt.Fprintf(&b, " / %4.1fC", s.Temperature)
	default:
		b.WriteString(" / --.-C")
	}
	return b.String()
}

// Frame is what a panel widget would show.
type Frame struct {
	Icon         string
	Label        string
	LabelVisible bool
	Tooltip      string
}

func (f Frame) String() string {
	if f.LabelVisible {
		return fmt.Sprintf("[%s] %s", f.Icon, f.Label)
	}
	return fmt.Sprintf("[%s] (%s)", f.Icon, f.Tooltip)
}

// Renderer keeps the current Frame and writes it out when it changes.
type Renderer struct {
	w     io.Writer
	frame Frame
	drawn bool
}

func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w, frame: Frame{Tooltip: DefaultTooltip}}
}

// Frame returns the last computed frame.
func (r *Renderer) Frame() Frame {
	return r.frame
}

// Update recomputes the parts of the frame made dirty by the change.
// The icon only follows control-relevant changes, label visibility only
// follows configuration changes; the text is refreshed for any of those
// and always when the temperature is displayed.
func (r *Renderer) Update(s argonone.DeviceState, p prefs.Preferences, controlRelevant, configRelevant bool) {
	next := r.frame

	if controlRelevant {
		next.Icon = Icon(s)
	}
	if configRelevant {
		next.LabelVisible = p.ShowLabel
	}
	if configRelevant || controlRelevant || p.IncludeTemperature {
		status := Status(s, p)
		if p.ShowLabel {
			next.Label = status
			if configRelevant {
				next.Tooltip = DefaultTooltip
			}
		} else {
			next.Tooltip = status
		}
	}

	if r.drawn && next == r.frame {
		return
	}
	r.frame = next
	r.drawn = true
	fmt.Fprintln(r.w, next)
}
