// Package extract derives structured attributes from free-text product names.
//
// Each attribute has an ordered rule table; the first rule that matches wins.
// Extraction never fails: text that matches nothing leaves the attribute nil.
package extract

import (
	"fmt"
	"strconv"
	"strings"

	catalog "armory/internal/catalog/models"
	"armory/internal/intel/equivalence"
	"armory/internal/intel/models"
)

// Extractor turns catalog records into attribute sets.
type Extractor struct {
	registry equivalence.Lookup
}

// New creates an Extractor that canonicalizes through registry. Passing a
// *equivalence.Holder makes the extractor follow registry reloads.
func New(registry equivalence.Lookup) (*Extractor, error) {
	if registry == nil {
		return nil, fmt.Errorf("equivalence registry is required")
	}
	return &Extractor{registry: registry}, nil
}

// Extract derives the full attribute set for a record.
func (e *Extractor) Extract(r catalog.Record) models.AttributeSet {
	attrs := e.ExtractText(r.Name, r.Manufacturer)
	attrs.Category = present(equivalence.Display(r.Category))
	attrs.Department = present(strings.TrimSpace(r.DepartmentCode))
	if r.Weight != nil && *r.Weight > 0 {
		attrs.Weight = models.Ptr(*r.Weight)
	}
	return attrs
}

// ExtractText derives the attributes carried by a name, with an optional
// manufacturer field taking precedence over one found in the name.
func (e *Extractor) ExtractText(name, manufacturer string) models.AttributeSet {
	var attrs models.AttributeSet
	text := equivalence.Display(name)

	if r, raw, span, ok := firstRule(caliberRules, text); ok {
		attrs.Caliber = present(e.registry.Canonicalize(equivalence.Caliber, raw))
		// Masked so "22 LONG RIFLE" is not read as a rifle and
		// "30-06 SPRINGFIELD" is not read as a manufacturer.
		text = mask(text, span)
		if r.shotshell {
			if loc := chamberRule.FindStringIndex(text[span[1]:]); loc != nil {
				text = mask(text, [2]int{span[1] + loc[0], span[1] + loc[1]})
			}
		}
	}

	if raw, _, ok := firstMatch(barrelRules, text); ok {
		attrs.BarrelLength = barrel(raw)
	}

	if raw, _, ok := firstMatch(capacityRules, text); ok {
		attrs.Capacity = capacity(raw)
	}

	if raw, _, ok := firstMatch(actionRules, text); ok {
		attrs.ActionType = present(e.registry.Canonicalize(equivalence.Action, raw))
	}

	if raw, _, ok := firstMatch(firearmTypeRules, text); ok {
		attrs.FirearmType = present(e.registry.Canonicalize(equivalence.FirearmType, raw))
	}

	if m := strings.TrimSpace(manufacturer); m != "" {
		attrs.Manufacturer = present(e.registry.Canonicalize(equivalence.Manufacturer, m))
	} else if found, ok := e.registry.FindIn(equivalence.Manufacturer, text); ok {
		attrs.Manufacturer = present(found)
	}

	return attrs
}

// firstMatch returns the value of the first rule that matches text together
// with the byte span of its capture group.
func firstMatch(rules []rule, text string) (string, [2]int, bool) {
	_, raw, span, ok := firstRule(rules, text)
	return raw, span, ok
}

func firstRule(rules []rule, text string) (rule, string, [2]int, bool) {
	for _, r := range rules {
		loc := r.re.FindStringSubmatchIndex(text)
		if loc == nil || loc[2] < 0 {
			continue
		}
		span := [2]int{loc[2], loc[3]}
		if r.canonical != "" {
			return r, r.canonical, span, true
		}
		return r, text[span[0]:span[1]], span, true
	}
	return rule{}, "", [2]int{}, false
}

func mask(text string, span [2]int) string {
	return text[:span[0]] + strings.Repeat(" ", span[1]-span[0]) + text[span[1]:]
}

func barrel(raw string) *string {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return models.Ptr(strconv.FormatFloat(v, 'f', -1, 64) + `"`)
}

func capacity(raw string) *string {
	compact := strings.ReplaceAll(raw, " ", "")
	head, _, _ := strings.Cut(compact, "+")
	if n, err := strconv.Atoi(head); err != nil || n <= 0 {
		return nil
	}
	return models.Ptr(compact)
}

func present(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
