package vitals

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jwalitptl/nursing-api/internal/rules"
)

type Zone int

const (
	ZoneNormal Zone = iota
	ZoneLow
	ZoneHigh
	ZoneCriticalLow
	ZoneCriticalHigh
	ZoneInvalid
)

func (z Zone) String() string {
	switch z {
	case ZoneNormal:
		return "normal"
	case ZoneLow:
		return "low"
	case ZoneHigh:
		return "high"
	case ZoneCriticalLow:
		return "critical_low"
	case ZoneCriticalHigh:
		return "critical_high"
	default:
		return "invalid"
	}
}

func (z Zone) MarshalText() ([]byte, error) {
	return []byte(z.String()), nil
}

func (z *Zone) UnmarshalText(text []byte) error {
	for c := ZoneNormal; c <= ZoneInvalid; c++ {
		if c.String() == string(text) {
			*z = c
			return nil
		}
	}
	return fmt.Errorf("unknown zone %q", text)
}

func (z Zone) IsCritical() bool { return z == ZoneCriticalLow || z == ZoneCriticalHigh }
func (z Zone) IsWarning() bool  { return z == ZoneLow || z == ZoneHigh }

// Severity maps a zone onto the shared severity scale. Invalid readings are
// input errors, not findings, and report SeverityNone.
func (z Zone) Severity() rules.Severity {
	switch {
	case z.IsCritical():
		return rules.SeverityHigh
	case z.IsWarning():
		return rules.SeverityMedium
	default:
		return rules.SeverityNone
	}
}

var ErrNotNumeric = errors.New("value is not a number")

// ParseValue reads a numeric field as typed at the bedside. A decimal comma
// is accepted; NaN and infinities are rejected.
func ParseValue(raw string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, raw)
	}
	return v, nil
}

// Classifier holds the band table. It is immutable and safe for concurrent
// use.
type Classifier struct {
	bands map[Parameter]Bands
}

// NewClassifier builds a classifier from bands, or the built-in table when
// bands is nil. Every known parameter must be present.
func NewClassifier(bands map[Parameter]Bands) (*Classifier, error) {
	if bands == nil {
		return &Classifier{bands: defaultBands}, nil
	}
	c := &Classifier{bands: make(map[Parameter]Bands, len(bands))}
	for _, p := range parameterOrder {
		b, ok := bands[p]
		if !ok {
			return nil, fmt.Errorf("missing bands for %s", p)
		}
		if err := b.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		c.bands[p] = b
	}
	return c, nil
}

// Default returns a classifier over the built-in table.
func Default() *Classifier {
	return &Classifier{bands: defaultBands}
}

func (c *Classifier) Bands(p Parameter) (Bands, bool) {
	b, ok := c.bands[p]
	return b, ok
}

func (c *Classifier) Classify(p Parameter, v float64) Zone {
	b, ok := c.bands[p]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return ZoneInvalid
	}
	switch {
	case v < b.HardMin || v > b.HardMax:
		return ZoneInvalid
	case v < b.CriticalLow:
		return ZoneCriticalLow
	case v < b.NormalLow:
		return ZoneLow
	case v <= b.NormalHigh:
		return ZoneNormal
	case v <= b.CriticalHigh:
		return ZoneHigh
	default:
		return ZoneCriticalHigh
	}
}

// ClassifyRaw parses raw and classifies it; unparseable input is Invalid.
func (c *Classifier) ClassifyRaw(p Parameter, raw string) Zone {
	v, err := ParseValue(raw)
	if err != nil {
		return ZoneInvalid
	}
	return c.Classify(p, v)
}

// describe renders a human-readable message naming the threshold crossed.
func (c *Classifier) describe(p Parameter, v float64, z Zone) string {
	b := c.bands[p]
	num := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
	val := num(v)
	switch z {
	case ZoneCriticalLow:
		return fmt.Sprintf("%s %s %s is critically low (below %s)", p, val, b.Unit, num(b.CriticalLow))
	case ZoneLow:
		return fmt.Sprintf("%s %s %s is low (below %s)", p, val, b.Unit, num(b.NormalLow))
	case ZoneHigh:
		return fmt.Sprintf("%s %s %s is high (above %s)", p, val, b.Unit, num(b.NormalHigh))
	case ZoneCriticalHigh:
		return fmt.Sprintf("%s %s %s is critically high (above %s)", p, val, b.Unit, num(b.CriticalHigh))
	case ZoneInvalid:
		return fmt.Sprintf("%s %s %s is outside the accepted range %s-%s", p, val, b.Unit, num(b.HardMin), num(b.HardMax))
	default:
		return fmt.Sprintf("%s %s %s is normal", p, val, b.Unit)
	}
}
