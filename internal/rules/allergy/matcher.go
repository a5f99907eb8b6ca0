// Package allergy checks a medication against a patient's allergies using
// direct name containment, drug-class membership and cross-reactivity.
package allergy

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/rules"
)

// Terms shorter than this never take part in substring matching, so that a
// stray "a" or "mg" cannot match every medication.
const minTermLen = 3

// Allergens matched against class members from the inside ("cilina" in
// "amoxicilina") must be at least this long.
const minInnerLen = 4

type Kind int

const (
	KindNone Kind = iota
	KindDirect
	KindClass
	KindCrossReactivity
)

func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindClass:
		return "class"
	case KindCrossReactivity:
		return "cross_reactivity"
	default:
		return "none"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Match is a single finding. Class is the class of the medication for class
// and cross-reactivity matches; SourceClass is the allergen's class for
// cross-reactivity.
type Match struct {
	Kind        Kind           `json:"kind"`
	Allergen    string         `json:"allergen"`
	Class       string         `json:"class,omitempty"`
	SourceClass string         `json:"source_class,omitempty"`
	Reason      string         `json:"reason"`
	Severity    rules.Severity `json:"severity"`
}

// Rule is the compact identifier stored in the allergy-alert log.
func (m Match) Rule() string {
	switch m.Kind {
	case KindDirect:
		return "direct:" + m.Allergen
	case KindClass:
		return "class:" + m.Class
	case KindCrossReactivity:
		return "cross:" + m.SourceClass + "->" + m.Class
	default:
		return "none"
	}
}

type Verdict int

const (
	VerdictClear Verdict = iota
	VerdictWarnAndConfirm
	VerdictBlocked
)

func (v Verdict) String() string {
	switch v {
	case VerdictWarnAndConfirm:
		return "warn_and_confirm"
	case VerdictBlocked:
		return "blocked"
	default:
		return "clear"
	}
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

type Result struct {
	Medication string  `json:"medication"`
	Matches    []Match `json:"matches"`
	Verdict    Verdict `json:"verdict"`
}

// Severity is the highest severity among the matches.
func (r Result) Severity() rules.Severity {
	s := rules.SeverityNone
	for _, m := range r.Matches {
		s = rules.Max(s, m.Severity)
	}
	return s
}

// Rules lists Match.Rule for every match, in match order.
func (r Result) Rules() []string {
	out := make([]string, 0, len(r.Matches))
	for _, m := range r.Matches {
		out = append(out, m.Rule())
	}
	return out
}

func (r Result) Reasons() string {
	parts := make([]string, 0, len(r.Matches))
	for _, m := range r.Matches {
		parts = append(parts, m.Reason)
	}
	return strings.Join(parts, "; ")
}

// Matcher is safe for concurrent use.
type Matcher struct {
	tables *Tables
}

// NewMatcher builds a matcher over tables, or the built-in tables when nil.
func NewMatcher(tables *Tables) *Matcher {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Matcher{tables: tables}
}

func (m *Matcher) Tables() *Tables {
	return m.tables
}

// CheckMedication returns every finding for medication against allergies.
// A blank medication or an empty allergy set yields a clear result.
func (m *Matcher) CheckMedication(medication string, allergies AllergySet) Result {
	med := Normalize(medication)
	res := Result{Medication: med, Matches: []Match{}}
	if med == "" || allergies.Empty() {
		return res
	}

	medClasses := m.classesOfMedication(med)
	seen := make(map[string]struct{})
	add := func(match Match) {
		key := match.Allergen + "|" + match.Rule()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		res.Matches = append(res.Matches, match)
	}

	for _, raw := range allergies {
		allergen := Normalize(raw)
		if runeLen(allergen) < minTermLen {
			continue
		}

		direct := runeLen(med) >= minTermLen &&
			(strings.Contains(med, allergen) || strings.Contains(allergen, med))
		if direct {
			add(Match{
				Kind:     KindDirect,
				Allergen: allergen,
				Reason:   fmt.Sprintf("medication %q matches allergen %q", med, allergen),
				Severity: rules.SeverityHigh,
			})
		}

		allergenClasses := m.classesOfAllergen(allergen)
		for _, c := range medClasses {
			if !lo.Contains(allergenClasses, c) {
				continue
			}
			add(Match{
				Kind:     KindClass,
				Allergen: allergen,
				Class:    c,
				Reason:   fmt.Sprintf("medication %q and allergen %q are both %s", med, allergen, c),
				Severity: rules.SeverityHigh,
			})
		}

		for _, from := range allergenClasses {
			for _, to := range m.tables.cross[from] {
				if !lo.Contains(medClasses, to) {
					continue
				}
				add(Match{
					Kind:        KindCrossReactivity,
					Allergen:    allergen,
					Class:       to,
					SourceClass: from,
					Reason: fmt.Sprintf("medication %q is in %s, which may cross-react with allergen %q (%s)",
						med, to, allergen, from),
					Severity: rules.SeverityMedium,
				})
			}
		}
	}

	switch res.Severity() {
	case rules.SeverityHigh:
		res.Verdict = VerdictBlocked
	case rules.SeverityMedium:
		res.Verdict = VerdictWarnAndConfirm
	}
	return res
}

// Validation is the patient-facing form of a Result.
type Validation struct {
	Valid   bool   `json:"valid"`
	Result  Result `json:"result"`
	Message string `json:"message,omitempty"`
}

// ValidateMedicationForPatient checks medication against the patient's stored
// allergies. Without a patient there is nothing to check and the result is
// valid; a patient with no allergy text has an empty allergy set.
func (m *Matcher) ValidateMedicationForPatient(medication string, patient *model.Patient) Validation {
	if patient == nil {
		return Validation{Valid: true, Result: Result{Medication: Normalize(medication), Matches: []Match{}}}
	}
	res := m.CheckMedication(medication, ParseAllergies(patient.Allergies))
	v := Validation{Valid: res.Verdict == VerdictClear, Result: res}
	switch res.Verdict {
	case VerdictBlocked:
		v.Message = fmt.Sprintf("%s: %s is contraindicated: %s", patient.Name, res.Medication, res.Reasons())
	case VerdictWarnAndConfirm:
		v.Message = fmt.Sprintf("%s: %s needs confirmation: %s", patient.Name, res.Medication, res.Reasons())
	}
	return v
}

func (m *Matcher) classesOfMedication(med string) []string {
	var out []string
	for _, c := range m.tables.classes {
		for _, member := range c.Members {
			if runeLen(member) >= minTermLen && strings.Contains(med, member) {
				out = append(out, c.Name)
				break
			}
		}
	}
	return out
}

// An allergen belongs to a class when it names the class, contains a member,
// or is a long enough fragment of a member.
func (m *Matcher) classesOfAllergen(allergen string) []string {
	var out []string
	for _, c := range m.tables.classes {
		if allergenMatchesClass(allergen, c) {
			out = append(out, c.Name)
		}
	}
	return out
}

func allergenMatchesClass(allergen string, c DrugClass) bool {
	if strings.Contains(allergen, c.Name) {
		return true
	}
	for _, alias := range c.Aliases {
		if strings.Contains(allergen, alias) {
			return true
		}
	}
	for _, member := range c.Members {
		if strings.Contains(allergen, member) {
			return true
		}
		if runeLen(allergen) >= minInnerLen && strings.Contains(member, allergen) {
			return true
		}
	}
	return false
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
