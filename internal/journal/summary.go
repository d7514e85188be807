package journal

import (
	"time"

	"github.com/matthewbaird/probenode/internal/probe"
)

// Trend values reported by Summarize.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendSteady  = "steady"
)

// ChannelSummary aggregates the readings of one channel in a window.
type ChannelSummary struct {
	Channel string    `json:"channel"`
	Unit    string    `json:"unit,omitempty"`
	Count   int       `json:"count"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Mean    float64   `json:"mean"`
	First   time.Time `json:"first"`
	Last    time.Time `json:"last"`
	Trend   string    `json:"trend"`
}

// Summary aggregates readings per channel over [Since, Until].
type Summary struct {
	Since    time.Time                 `json:"since"`
	Until    time.Time                 `json:"until"`
	Channels map[string]ChannelSummary `json:"channels"`
}

// Summarize aggregates readings falling inside [since, until]. Readings
// outside the window are ignored.
func Summarize(readings []probe.Reading, since, until time.Time) Summary {
	mid := midpoint(since, until)
	accs := make(map[string]*accumulator)
	for _, r := range readings {
		if r.At.Before(since) || r.At.After(until) {
			continue
		}
		acc, ok := accs[r.Channel]
		if !ok {
			acc = &accumulator{}
			accs[r.Channel] = acc
		}
		acc.add(r, mid)
	}

	out := Summary{Since: since, Until: until, Channels: make(map[string]ChannelSummary, len(accs))}
	for ch, acc := range accs {
		out.Channels[ch] = acc.summary(ch)
	}
	return out
}

func midpoint(since, until time.Time) time.Time {
	return since.Add(until.Sub(since) / 2)
}

// accumulator folds one channel's readings without keeping them.
type accumulator struct {
	unit      string
	count     int
	min, max  float64
	sum       float64
	first     time.Time
	last      time.Time
	firstN    int
	firstSum  float64
	secondN   int
	secondSum float64
}

func (a *accumulator) add(r probe.Reading, mid time.Time) {
	if a.count == 0 || r.Value < a.min {
		a.min = r.Value
	}
	if a.count == 0 || r.Value > a.max {
		a.max = r.Value
	}
	if a.count == 0 || r.At.Before(a.first) {
		a.first = r.At
		a.unit = r.Unit
	}
	if a.count == 0 || r.At.After(a.last) {
		a.last = r.At
	}
	a.count++
	a.sum += r.Value
	if r.At.Before(mid) {
		a.firstN++
		a.firstSum += r.Value
	} else {
		a.secondN++
		a.secondSum += r.Value
	}
}

func (a *accumulator) summary(channel string) ChannelSummary {
	cs := ChannelSummary{
		Channel: channel,
		Unit:    a.unit,
		Count:   a.count,
		Min:     a.min,
		Max:     a.max,
		First:   a.first,
		Last:    a.last,
		Trend:   a.trend(),
	}
	if a.count > 0 {
		cs.Mean = a.sum / float64(a.count)
	}
	return cs
}

// trend compares the mean value in the first vs second half of the window.
// Changes within a tenth of the observed range count as steady.
func (a *accumulator) trend() string {
	if a.firstN == 0 || a.secondN == 0 {
		return TrendSteady
	}
	delta := a.secondSum/float64(a.secondN) - a.firstSum/float64(a.firstN)
	threshold := (a.max - a.min) / 10
	switch {
	case delta > threshold:
		return TrendRising
	case delta < -threshold:
		return TrendFalling
	}
	return TrendSteady
}
