// Package equivalence maps the many spellings of an attribute value to one
// canonical form and groups canonical values that are interchangeable.
//
// A Registry is immutable once loaded. Hot reload swaps in a whole new
// Registry through a Holder; readers never observe a partially built one.
package equivalence

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	pstrings "armory/pkg/platform/strings"
)

// MaxFileSize bounds registry files read from disk.
const MaxFileSize = 1 << 20

//go:embed registry.yaml
var defaultRegistryYAML []byte

// Dimension names an attribute family with its own vocabulary.
type Dimension string

const (
	Caliber      Dimension = "caliber"
	Action       Dimension = "action"
	FirearmType  Dimension = "firearm_type"
	Manufacturer Dimension = "manufacturer"
)

// Dimensions lists every dimension a registry file may declare.
var Dimensions = []Dimension{Caliber, Action, FirearmType, Manufacturer}

// ErrInvalidRegistry is wrapped by every validation failure.
var ErrInvalidRegistry = errors.New("invalid equivalence registry")

// Lookup is the read side of the registry. Both *Registry and *Holder
// satisfy it.
type Lookup interface {
	Canonicalize(dim Dimension, raw string) string
	Members(dim Dimension, value string) []string
	Compatible(dim Dimension, a, b string) bool
	FindIn(dim Dimension, text string) (string, bool)
}

type registryYAML struct {
	Version    string                   `yaml:"version"`
	Dimensions map[string]dimensionYAML `yaml:"dimensions"`
}

type dimensionYAML struct {
	Aliases map[string][]string `yaml:"aliases"`
	Classes []classYAML         `yaml:"classes"`
}

type classYAML struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

// Class is a named closed group of canonical values.
type Class struct {
	Name    string
	Members []string
}

type dimension struct {
	canonical map[string]string // key -> canonical display form
	classOf   map[string]int    // key of canonical -> index into classes
	classes   []Class
	scan      *regexp.Regexp // every known spelling, longest first
}

// Registry is a loaded, validated equivalence table.
type Registry struct {
	version  string
	hash     string
	loadedAt time.Time
	dims     map[Dimension]*dimension
}

// Default parses the registry compiled into the binary.
func Default() (*Registry, error) {
	return Parse(defaultRegistryYAML)
}

// Parse builds a Registry from YAML and validates it.
func Parse(data []byte) (*Registry, error) {
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrInvalidRegistry, len(data), MaxFileSize)
	}

	var raw registryYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", ErrInvalidRegistry, err)
	}

	sum := sha256.Sum256(data)
	reg := &Registry{
		version:  raw.Version,
		hash:     hex.EncodeToString(sum[:6]),
		loadedAt: time.Now().UTC(),
		dims:     make(map[Dimension]*dimension, len(Dimensions)),
	}

	for name := range raw.Dimensions {
		if !slices.Contains(Dimensions, Dimension(name)) {
			return nil, fmt.Errorf("%w: unknown dimension %q", ErrInvalidRegistry, name)
		}
	}

	for _, dim := range Dimensions {
		d, err := buildDimension(dim, raw.Dimensions[string(dim)])
		if err != nil {
			return nil, err
		}
		reg.dims[dim] = d
	}
	return reg, nil
}

func buildDimension(dim Dimension, raw dimensionYAML) (*dimension, error) {
	d := &dimension{
		canonical: make(map[string]string),
		classOf:   make(map[string]int),
	}
	var spellings []string

	// Sorted so conflicts are reported deterministically.
	canonicals := make([]string, 0, len(raw.Aliases))
	for c := range raw.Aliases {
		canonicals = append(canonicals, c)
	}
	sort.Strings(canonicals)

	for _, c := range canonicals {
		display := Display(c)
		if display == "" {
			return nil, fmt.Errorf("%w: %s: empty canonical value", ErrInvalidRegistry, dim)
		}
		for _, alias := range append([]string{c}, raw.Aliases[c]...) {
			k := Key(alias)
			if k == "" {
				return nil, fmt.Errorf("%w: %s: empty alias for %q", ErrInvalidRegistry, dim, display)
			}
			if prev, ok := d.canonical[k]; ok && prev != display {
				return nil, fmt.Errorf("%w: %s: alias %q maps to both %q and %q",
					ErrInvalidRegistry, dim, alias, prev, display)
			}
			d.canonical[k] = display
			spellings = append(spellings, alias)
		}
	}

	for i, cls := range raw.Classes {
		if strings.TrimSpace(cls.Name) == "" {
			return nil, fmt.Errorf("%w: %s: class %d has no name", ErrInvalidRegistry, dim, i)
		}
		if len(cls.Members) == 0 {
			return nil, fmt.Errorf("%w: %s: class %q has no members", ErrInvalidRegistry, dim, cls.Name)
		}
		members := make([]string, 0, len(cls.Members))
		for _, m := range cls.Members {
			display := d.canonicalize(m)
			k := Key(display)
			if k == "" {
				return nil, fmt.Errorf("%w: %s: class %q has an empty member", ErrInvalidRegistry, dim, cls.Name)
			}
			if j, ok := d.classOf[k]; ok {
				if j == i {
					continue
				}
				return nil, fmt.Errorf("%w: %s: %q is in classes %q and %q",
					ErrInvalidRegistry, dim, display, d.classes[j].Name, cls.Name)
			}
			d.classOf[k] = i
			members = append(members, display)
		}
		d.classes = append(d.classes, Class{Name: cls.Name, Members: members})
	}

	d.scan = compileScanner(spellings)
	return d, nil
}

// compileScanner builds one alternation over every distinct spelling. Longer
// spellings come first so "SIG SAUER" wins over "SIG" at the same position.
func compileScanner(spellings []string) *regexp.Regexp {
	for i, s := range spellings {
		spellings[i] = norm.NFKC.String(s)
	}
	alts := pstrings.DedupeAndTrimUpper(spellings)
	if len(alts) == 0 {
		return nil
	}
	sort.Slice(alts, func(i, j int) bool {
		if len(alts[i]) != len(alts[j]) {
			return len(alts[i]) > len(alts[j])
		}
		return alts[i] < alts[j]
	})
	for i, a := range alts {
		alts[i] = regexp.QuoteMeta(a)
	}
	return regexp.MustCompile(`(?:^|[^A-Z0-9])(` + strings.Join(alts, "|") + `)(?:$|[^A-Z0-9])`)
}

// Version is the version string declared in the registry file.
func (r *Registry) Version() string { return r.version }

// Hash identifies the registry content.
func (r *Registry) Hash() string { return r.hash }

// LoadedAt is when the registry was parsed.
func (r *Registry) LoadedAt() time.Time { return r.loadedAt }

// Classes returns a copy of the classes declared for dim.
func (r *Registry) Classes(dim Dimension) []Class {
	d := r.dims[dim]
	if d == nil {
		return nil
	}
	out := make([]Class, len(d.classes))
	for i, c := range d.classes {
		out[i] = Class{Name: c.Name, Members: slices.Clone(c.Members)}
	}
	return out
}

// Canonicalize returns the canonical spelling of raw. Unknown values come
// back in display form (NFKC, upper-case, single spaces).
func (r *Registry) Canonicalize(dim Dimension, raw string) string {
	d := r.dims[dim]
	if d == nil {
		return Display(raw)
	}
	return d.canonicalize(raw)
}

func (d *dimension) canonicalize(raw string) string {
	if c, ok := d.canonical[Key(raw)]; ok {
		return c
	}
	return Display(raw)
}

// Members returns the class containing value, value included. A value in no
// class is its own singleton class.
func (r *Registry) Members(dim Dimension, value string) []string {
	c := r.Canonicalize(dim, value)
	if c == "" {
		return nil
	}
	d := r.dims[dim]
	if d != nil {
		if i, ok := d.classOf[Key(c)]; ok {
			return slices.Clone(d.classes[i].Members)
		}
	}
	return []string{c}
}

// Compatible reports whether a and b denote the same value or share a
// class. Unknown values are compatible only with themselves.
func (r *Registry) Compatible(dim Dimension, a, b string) bool {
	ka := Key(r.Canonicalize(dim, a))
	kb := Key(r.Canonicalize(dim, b))
	if ka == kb {
		return true
	}
	d := r.dims[dim]
	if d == nil {
		return false
	}
	ia, okA := d.classOf[ka]
	ib, okB := d.classOf[kb]
	return okA && okB && ia == ib
}

// FindIn scans upper-cased text for the first known spelling of a dim value
// and returns its canonical form.
func (r *Registry) FindIn(dim Dimension, text string) (string, bool) {
	d := r.dims[dim]
	if d == nil || d.scan == nil {
		return "", false
	}
	m := d.scan.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return d.canonicalize(m[1]), true
}

// Display normalizes raw for presentation: NFKC, upper-case, trimmed, with
// whitespace runs collapsed.
func Display(raw string) string {
	return strings.ToUpper(pstrings.CollapseSpaces(norm.NFKC.String(raw)))
}

// Key is the comparison form of raw. Spaces, hyphens and dots that are not
// decimal points are dropped, so "9 MM", "9-MM" and "9MM" collide while
// "5.56" keeps its point.
func Key(raw string) string {
	s := Display(raw)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case ' ', '-':
			continue
		case '.':
			if i > 0 && isDigit(s[i-1]) && i+1 < len(s) && isDigit(s[i+1]) {
				b.WriteByte(c)
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
