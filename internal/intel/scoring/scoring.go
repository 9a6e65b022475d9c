// Package scoring compares two attribute sets and explains the result.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"armory/internal/intel/equivalence"
	"armory/internal/intel/models"
)

// Weights are the points each signal contributes and the tolerances of the
// numeric signals.
type Weights struct {
	Perfect      int `yaml:"perfect"`
	Manufacturer int `yaml:"manufacturer"`
	Caliber      int `yaml:"caliber"`
	FirearmType  int `yaml:"firearm_type"`
	Category     int `yaml:"category"`
	Department   int `yaml:"department"`
	Barrel       int `yaml:"barrel"`
	Capacity     int `yaml:"capacity"`
	Action       int `yaml:"action"`
	Weight       int `yaml:"weight"`

	BarrelToleranceInches float64 `yaml:"barrel_tolerance_inches"`
	CapacityTolerance     int     `yaml:"capacity_tolerance"`
	WeightToleranceRatio  float64 `yaml:"weight_tolerance_ratio"`
}

// DefaultWeights returns the production weights.
func DefaultWeights() Weights {
	return Weights{
		Perfect:      100,
		Manufacturer: 25,
		Caliber:      40,
		FirearmType:  30,
		Category:     20,
		Department:   15,
		Barrel:       10,
		Capacity:     10,
		Action:       15,
		Weight:       5,

		BarrelToleranceInches: 1.0,
		CapacityTolerance:     2,
		WeightToleranceRatio:  0.10,
	}
}

// Validate rejects negative weights and a perfect-match bonus smaller than
// the three signals it replaces, which would let an extra match lower a score.
func (w Weights) Validate() error {
	var errs []error
	for _, f := range []struct {
		name  string
		value int
	}{
		{"perfect", w.Perfect}, {"manufacturer", w.Manufacturer}, {"caliber", w.Caliber},
		{"firearm_type", w.FirearmType}, {"category", w.Category}, {"department", w.Department},
		{"barrel", w.Barrel}, {"capacity", w.Capacity}, {"action", w.Action}, {"weight", w.Weight},
	} {
		if f.value < 0 {
			errs = append(errs, fmt.Errorf("weight %s must not be negative", f.name))
		}
	}
	if w.Perfect < w.Manufacturer+w.Caliber+w.FirearmType {
		errs = append(errs, fmt.Errorf("perfect weight %d is below manufacturer+caliber+firearm_type (%d)",
			w.Perfect, w.Manufacturer+w.Caliber+w.FirearmType))
	}
	if w.BarrelToleranceInches < 0 || w.CapacityTolerance < 0 || w.WeightToleranceRatio < 0 {
		errs = append(errs, errors.New("tolerances must not be negative"))
	}
	return errors.Join(errs...)
}

// Scorer computes similarity scores.
type Scorer struct {
	registry equivalence.Lookup
	weights  Weights
}

// New creates a Scorer. Passing a *equivalence.Holder makes caliber
// compatibility follow registry reloads.
func New(registry equivalence.Lookup, weights Weights) (*Scorer, error) {
	if registry == nil {
		return nil, fmt.Errorf("equivalence registry is required")
	}
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}
	return &Scorer{registry: registry, weights: weights}, nil
}

// Weights returns the weights in use.
func (s *Scorer) Weights() Weights { return s.weights }

// Score compares candidate against target. Points do not depend on argument
// order; reasons name the target's value first.
func (s *Scorer) Score(target, candidate models.AttributeSet) models.Score {
	w := s.weights
	score := models.Score{Reasons: []string{}}

	sameMfr := bothPresent(target.Manufacturer, candidate.Manufacturer) &&
		s.registry.Compatible(equivalence.Manufacturer, *target.Manufacturer, *candidate.Manufacturer)
	sameCaliber := bothPresent(target.Caliber, candidate.Caliber) &&
		s.registry.Compatible(equivalence.Caliber, *target.Caliber, *candidate.Caliber)
	sameType := bothPresent(target.FirearmType, candidate.FirearmType) &&
		s.registry.Compatible(equivalence.FirearmType, *target.FirearmType, *candidate.FirearmType)

	if sameMfr && sameCaliber && sameType {
		score.Add(w.Perfect, fmt.Sprintf("Same manufacturer, caliber and type (%s, %s, %s)",
			*target.Manufacturer, *target.Caliber, *target.FirearmType))
	} else {
		if sameMfr {
			score.Add(w.Manufacturer, fmt.Sprintf("Same manufacturer (%s)", *target.Manufacturer))
		}
		if sameCaliber {
			if *target.Caliber == *candidate.Caliber {
				score.Add(w.Caliber, fmt.Sprintf("Same caliber (%s)", *target.Caliber))
			} else {
				score.Add(w.Caliber, fmt.Sprintf("Compatible caliber (%s / %s)", *target.Caliber, *candidate.Caliber))
			}
		}
		if sameType {
			score.Add(w.FirearmType, fmt.Sprintf("Same firearm type (%s)", *target.FirearmType))
		}
	}

	if bothPresent(target.Category, candidate.Category) && strings.EqualFold(*target.Category, *candidate.Category) {
		score.Add(w.Category, fmt.Sprintf("Same category (%s)", *target.Category))
	}

	if bothPresent(target.Department, candidate.Department) && strings.EqualFold(*target.Department, *candidate.Department) {
		score.Add(w.Department, fmt.Sprintf("Same department (%s)", *target.Department))
	}

	tb, okT := target.BarrelInches()
	cb, okC := candidate.BarrelInches()
	if okT && okC && math.Abs(tb-cb) <= w.BarrelToleranceInches {
		score.Add(w.Barrel, fmt.Sprintf("Similar barrel length (%s vs %s)", *target.BarrelLength, *candidate.BarrelLength))
	}

	tr, okT := target.Rounds()
	cr, okC := candidate.Rounds()
	if okT && okC && abs(tr-cr) <= w.CapacityTolerance {
		score.Add(w.Capacity, fmt.Sprintf("Similar capacity (%s vs %s)", *target.Capacity, *candidate.Capacity))
	}

	if bothPresent(target.ActionType, candidate.ActionType) &&
		s.registry.Compatible(equivalence.Action, *target.ActionType, *candidate.ActionType) {
		score.Add(w.Action, fmt.Sprintf("Same action type (%s)", *target.ActionType))
	}

	if similarWeight(target.Weight, candidate.Weight, w.WeightToleranceRatio) {
		score.Add(w.Weight, fmt.Sprintf("Similar weight (%s vs %s)", formatWeight(*target.Weight), formatWeight(*candidate.Weight)))
	}

	return score
}

func bothPresent(a, b *string) bool {
	return a != nil && b != nil
}

func similarWeight(a, b *float64, ratio float64) bool {
	if a == nil || b == nil || *a <= 0 || *b <= 0 {
		return false
	}
	avg := (*a + *b) / 2
	return math.Abs(*a-*b) <= ratio*avg
}

func formatWeight(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
