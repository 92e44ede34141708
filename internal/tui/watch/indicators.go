package watch

import (
	"strings"
	"time"
)

// Pulse tracks the orchestrator heartbeat. Each second the glyph advances;
// a glyph that stops moving means the dashboard stopped receiving ticks.
type Pulse struct {
	frames []string
	index  int
	seen   time.Time
}

func NewPulse() Pulse {
	return Pulse{
		frames: []string{"◐", "◓", "◑", "◒"},
		seen:   time.Now(),
	}
}

func (p *Pulse) Beat() {
	p.index = (p.index + 1) % len(p.frames)
	p.seen = time.Now()
}

func (p Pulse) Current() string { return p.frames[p.index] }

// Meter is an activity gauge for the event stream. Events fill it to the
// top; it drains one bar for every two quiet seconds.
type Meter struct {
	level int
	last  time.Time
}

const meterBars = 5

func NewMeter() Meter {
	return Meter{}
}

func (m *Meter) OnEvent() {
	m.level = meterBars
	m.last = time.Now()
}

func (m *Meter) Drain() {
	if m.level == 0 {
		return
	}
	steps := int(time.Since(m.last) / (2 * time.Second))
	if steps >= meterBars {
		m.level = 0
		return
	}
	if lvl := meterBars - steps; lvl < m.level {
		m.level = lvl
	}
}

func (m Meter) Render(theme Theme) string {
	var b strings.Builder
	for i := 0; i < meterBars; i++ {
		if i < m.level {
			b.WriteString(theme.PulseOn.Render("▮"))
		} else {
			b.WriteString(theme.PulseOff.Render("▯"))
		}
	}
	return b.String()
}

func (m Meter) LastEvent() time.Time { return m.last }
