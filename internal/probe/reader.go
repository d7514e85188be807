package probe

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"
)

// Channel describes one measurement: an optional command write, a settle
// delay, then a fixed-size big-endian signed read scaled to engineering
// units.
type Channel struct {
	Name     string
	Register byte
	Command  []byte // nil for continuously updated registers
	Size     int    // 1, 2, 4 or 8 bytes
	Settle   time.Duration
	Scale    float64
	Unit     string
}

var (
	// Temperature is the probe's conversion-triggered temperature register.
	Temperature = Channel{
		Name:     "temperature",
		Register: 0x00,
		Command:  []byte{0x04},
		Size:     4,
		Settle:   100 * time.Millisecond,
		Scale:    0.00001525878,
		Unit:     "C",
	}

	// WaterLevel is the continuously updated capacitive moisture register,
	// reported in raw counts.
	WaterLevel = Channel{
		Name:     "water_level",
		Register: 0x0f,
		Size:     2,
		Scale:    1,
	}
)

// Reading is one decoded sample.
type Reading struct {
	Channel string    `json:"channel"`
	Raw     int64     `json:"raw"`
	Value   float64   `json:"value"`
	Unit    string    `json:"unit,omitempty"`
	At      time.Time `json:"at"`
}

// Text formats the reading for display, e.g. "0.001525878C".
func (r Reading) Text() string {
	return FormatValue(r.Value) + r.Unit
}

// FormatValue renders v with the seven significant digits the probe
// resolves.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 7, 64)
}

// Reader samples channels over a Bus. It is owned by a single caller.
type Reader struct {
	bus   Bus
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewReader returns a Reader that talks to bus.
func NewReader(bus Bus) *Reader {
	return &Reader{bus: bus, sleep: sleepContext, now: time.Now}
}

// Sample performs the channel's bus transaction and decodes the result.
// The settle delay blocks the calling goroutine only, and returns early if
// ctx is cancelled.
func (r *Reader) Sample(ctx context.Context, ch Channel) (Reading, error) {
	switch ch.Size {
	case 1, 2, 4, 8:
	default:
		return Reading{}, fmt.Errorf("probe: channel %s: unsupported size %d", ch.Name, ch.Size)
	}

	if len(ch.Command) > 0 {
		if err := r.bus.Write(ch.Register, ch.Command); err != nil {
			return Reading{}, &BusError{Op: "write", Register: ch.Register, Err: err}
		}
	}
	if ch.Settle > 0 {
		if err := r.sleep(ctx, ch.Settle); err != nil {
			return Reading{}, fmt.Errorf("probe: waiting for %s conversion: %w", ch.Name, err)
		}
	}

	buf := make([]byte, ch.Size)
	if err := r.bus.Read(ch.Register, buf); err != nil {
		return Reading{}, &BusError{Op: "read", Register: ch.Register, Err: err}
	}

	raw := Decode(buf)
	return Reading{
		Channel: ch.Name,
		Raw:     raw,
		Value:   float64(raw) * ch.Scale,
		Unit:    ch.Unit,
		At:      r.now(),
	}, nil
}

// Decode interprets b as a big-endian two's complement integer of its own
// width.
func Decode(b []byte) int64 {
	switch len(b) {
	case 1:
		return int64(int8(b[0]))
	case 2:
		return int64(int16(binary.BigEndian.Uint16(b)))
	case 4:
		return int64(int32(binary.BigEndian.Uint32(b)))
	case 8:
		return int64(binary.BigEndian.Uint64(b))
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
