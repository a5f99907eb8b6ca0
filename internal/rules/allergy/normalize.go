package allergy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var trademarkReplacer = strings.NewReplacer("™", " ", "®", " ", "©", " ", "℠", " ")

// Normalize folds a medication or allergen name into its matching form:
// accents removed, lower-cased, trademark glyphs stripped, whitespace
// trimmed and collapsed. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	folded, _, err := transform.String(accentFolder(), s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = trademarkReplacer.Replace(folded)
	return strings.Join(strings.Fields(folded), " ")
}

// A transform.Transformer carries state, so each call builds its own chain.
func accentFolder() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// AllergySet is a patient's parsed, normalized allergen list.
type AllergySet []string

// ParseAllergies splits the stored comma-separated allergy field. Blank
// entries and duplicates are dropped; an empty field yields an empty set.
func ParseAllergies(raw string) AllergySet {
	parts := strings.Split(raw, ",")
	set := make(AllergySet, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		n := Normalize(p)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		set = append(set, n)
	}
	return set
}

// NewAllergySet normalizes already-split allergen strings.
func NewAllergySet(allergens ...string) AllergySet {
	return ParseAllergies(strings.Join(allergens, ","))
}

func (s AllergySet) Empty() bool {
	return len(s) == 0
}

// String renders the set in its stored form.
func (s AllergySet) String() string {
	return strings.Join(s, ", ")
}
