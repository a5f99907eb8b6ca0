package vitals

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jwalitptl/nursing-api/internal/model"
)

var (
	ErrUnknownParameter        = errors.New("unknown vital parameter")
	ErrEmptyBundle             = errors.New("no vital signs were entered")
	ErrInvalidReading          = errors.New("reading contains values outside physiologic bounds")
	ErrCriticalNotAcknowledged = errors.New("critical values must be acknowledged before saving")
	ErrWarningsNotAcknowledged = errors.New("out-of-range values must be confirmed before saving")
)

// Bundle is one submission of vital signs. Blank fields are absent;
// non-numeric fields are kept so they classify as Invalid.
type Bundle struct {
	values   map[Parameter]float64
	unparsed map[Parameter]string
}

func NewBundle() Bundle {
	return Bundle{values: map[Parameter]float64{}, unparsed: map[Parameter]string{}}
}

// ParseBundle converts raw form fields into a Bundle. Blank values are
// skipped and unknown field names are rejected.
func ParseBundle(raw map[string]string) (Bundle, error) {
	b := NewBundle()
	for name, value := range raw {
		p := Parameter(strings.ToLower(strings.TrimSpace(name)))
		if !p.Valid() {
			return Bundle{}, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
		}
		if strings.TrimSpace(value) == "" {
			continue
		}
		v, err := ParseValue(value)
		if err != nil {
			b.unparsed[p] = value
			continue
		}
		b.values[p] = v
	}
	return b, nil
}

// BundleFromReading collects the measured fields of a stored reading.
func BundleFromReading(r model.VitalReading) Bundle {
	b := NewBundle()
	for p, f := range readingFields(&r) {
		if *f != nil {
			b.values[p] = **f
		}
	}
	return b
}

func (b Bundle) Set(p Parameter, v float64) Bundle {
	if b.values == nil {
		b = NewBundle()
	}
	b.values[p] = v
	return b
}

func (b Bundle) Value(p Parameter) (float64, bool) {
	v, ok := b.values[p]
	return v, ok
}

func (b Bundle) Len() int   { return len(b.values) + len(b.unparsed) }
func (b Bundle) Empty() bool { return b.Len() == 0 }

// Apply copies the parsed values onto r. Unparsed fields are never applied.
func (b Bundle) Apply(r *model.VitalReading) {
	for p, f := range readingFields(r) {
		if v, ok := b.values[p]; ok {
			v := v
			*f = &v
		}
	}
}

func readingFields(r *model.VitalReading) map[Parameter]**float64 {
	return map[Parameter]**float64{
		Temperature:     &r.Temperature,
		Systolic:        &r.Systolic,
		Diastolic:       &r.Diastolic,
		HeartRate:       &r.HeartRate,
		RespiratoryRate: &r.RespiratoryRate,
		SpO2:            &r.SpO2,
		Glucose:         &r.Glucose,
		Pain:            &r.Pain,
	}
}

// FieldResult is the classification of one present field.
type FieldResult struct {
	Parameter Parameter `json:"parameter"`
	Value     *float64  `json:"value,omitempty"`
	Raw       string    `json:"raw,omitempty"`
	Zone      Zone      `json:"zone"`
	Message   string    `json:"message"`
}

type Summary struct {
	Valid     bool          `json:"valid"`
	Fields    []FieldResult `json:"fields"`
	Invalid   []FieldResult `json:"invalid,omitempty"`
	Criticals []FieldResult `json:"criticals,omitempty"`
	Warnings  []FieldResult `json:"warnings,omitempty"`
}

// ValidateAll classifies every present field independently, in parameter
// order.
func (c *Classifier) ValidateAll(b Bundle) Summary {
	s := Summary{Valid: true, Fields: []FieldResult{}}
	for _, p := range parameterOrder {
		var fr FieldResult
		if raw, ok := b.unparsed[p]; ok {
			fr = FieldResult{
				Parameter: p,
				Raw:       raw,
				Zone:      ZoneInvalid,
				Message:   fmt.Sprintf("%s %q is not a number", p, raw),
			}
		} else if v, ok := b.values[p]; ok {
			v := v
			z := c.Classify(p, v)
			fr = FieldResult{Parameter: p, Value: &v, Zone: z, Message: c.describe(p, v, z)}
		} else {
			continue
		}

		s.Fields = append(s.Fields, fr)
		switch {
		case fr.Zone == ZoneInvalid:
			s.Valid = false
			s.Invalid = append(s.Invalid, fr)
		case fr.Zone.IsCritical():
			s.Criticals = append(s.Criticals, fr)
		case fr.Zone.IsWarning():
			s.Warnings = append(s.Warnings, fr)
		}
	}
	return s
}

type Confirmation int

const (
	ConfirmationNone Confirmation = iota
	ConfirmationSoft
	ConfirmationCritical
	ConfirmationRejected
)

func (c Confirmation) String() string {
	switch c {
	case ConfirmationSoft:
		return "soft"
	case ConfirmationCritical:
		return "critical"
	case ConfirmationRejected:
		return "rejected"
	default:
		return "none"
	}
}

func (c Confirmation) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// RequiredConfirmation is the strongest step the caller must take before
// the reading may be written.
func (s Summary) RequiredConfirmation() Confirmation {
	switch {
	case !s.Valid:
		return ConfirmationRejected
	case len(s.Criticals) > 0:
		return ConfirmationCritical
	case len(s.Warnings) > 0:
		return ConfirmationSoft
	default:
		return ConfirmationNone
	}
}

// AuthorizeWrite checks ack against the required confirmation. A critical
// acknowledgement also covers warnings; nothing covers an invalid reading.
func (s Summary) AuthorizeWrite(ack model.Acknowledgement) error {
	switch s.RequiredConfirmation() {
	case ConfirmationRejected:
		return fmt.Errorf("%w: %s", ErrInvalidReading, messages(s.Invalid))
	case ConfirmationCritical:
		if ack != model.AckCritical {
			return fmt.Errorf("%w: %s", ErrCriticalNotAcknowledged, messages(s.Criticals))
		}
	case ConfirmationSoft:
		if ack != model.AckWarnings && ack != model.AckCritical {
			return fmt.Errorf("%w: %s", ErrWarningsNotAcknowledged, messages(s.Warnings))
		}
	}
	return nil
}

func messages(frs []FieldResult) string {
	parts := make([]string, 0, len(frs))
	for _, fr := range frs {
		parts = append(parts, fr.Message)
	}
	return strings.Join(parts, "; ")
}
