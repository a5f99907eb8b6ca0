package allergy

import (
	_ "embed"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

//go:embed drug_classes.yaml
var defaultTablesYAML []byte

// DrugClass is one pharmacological class and the substrings that identify
// its members in a medication or allergen name.
type DrugClass struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
	Members []string `yaml:"members"`
}

// Tables is the immutable reference data backing the matcher.
type Tables struct {
	classes []DrugClass
	byName  map[string]int
	cross   map[string][]string
}

type tablesFile struct {
	Classes         []DrugClass         `yaml:"classes"`
	CrossReactivity map[string][]string `yaml:"cross_reactivity"`
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
)

// DefaultTables returns the built-in drug-class and cross-reactivity tables.
func DefaultTables() *Tables {
	defaultOnce.Do(func() {
		t, err := parseTables(defaultTablesYAML)
		if err != nil {
			panic(fmt.Sprintf("allergy: embedded drug tables: %v", err))
		}
		defaultTables = t
	})
	return defaultTables
}

// LoadTables reads tables in the same YAML layout as the embedded file.
func LoadTables(r io.Reader) (*Tables, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read drug tables: %w", err)
	}
	return parseTables(data)
}

func parseTables(data []byte) (*Tables, error) {
	var f tablesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode drug tables: %w", err)
	}
	return NewTables(f.Classes, f.CrossReactivity)
}

// NewTables normalizes and validates class definitions. Every class named in
// cross must be defined.
func NewTables(classes []DrugClass, cross map[string][]string) (*Tables, error) {
	t := &Tables{
		classes: make([]DrugClass, 0, len(classes)),
		byName:  make(map[string]int, len(classes)),
		cross:   make(map[string][]string, len(cross)),
	}
	for _, c := range classes {
		name := Normalize(c.Name)
		if name == "" {
			return nil, fmt.Errorf("drug class with empty name")
		}
		if _, dup := t.byName[name]; dup {
			return nil, fmt.Errorf("drug class %q defined twice", name)
		}
		members := normalizeAll(c.Members)
		if len(members) == 0 {
			return nil, fmt.Errorf("drug class %q has no members", name)
		}
		t.byName[name] = len(t.classes)
		t.classes = append(t.classes, DrugClass{
			Name:    name,
			Aliases: normalizeAll(c.Aliases),
			Members: members,
		})
	}

	sources := make([]string, 0, len(cross))
	for src := range cross {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		from := Normalize(src)
		if _, ok := t.byName[from]; !ok {
			return nil, fmt.Errorf("cross-reactivity source %q is not a drug class", src)
		}
		for _, dst := range cross[src] {
			to := Normalize(dst)
			if _, ok := t.byName[to]; !ok {
				return nil, fmt.Errorf("cross-reactivity target %q is not a drug class", dst)
			}
			if to != from {
				t.cross[from] = appendUnique(t.cross[from], to)
			}
		}
	}
	return t, nil
}

// Classes returns the class definitions in table order.
func (t *Tables) Classes() []DrugClass {
	out := make([]DrugClass, len(t.classes))
	copy(out, t.classes)
	return out
}

// Class looks a class up by normalized name.
func (t *Tables) Class(name string) (DrugClass, bool) {
	i, ok := t.byName[Normalize(name)]
	if !ok {
		return DrugClass{}, false
	}
	return t.classes[i], true
}

// CrossReactive lists the classes registered as cross-reacting with class.
func (t *Tables) CrossReactive(class string) []string {
	return append([]string(nil), t.cross[Normalize(class)]...)
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if n := Normalize(s); n != "" {
			out = appendUnique(out, n)
		}
	}
	return out
}

func appendUnique(list []string, s string) []string {
	if lo.Contains(list, s) {
		return list
	}
	return append(list, s)
}
