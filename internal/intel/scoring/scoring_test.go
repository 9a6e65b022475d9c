package scoring

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"armory/internal/intel/equivalence"
	"armory/internal/intel/models"
)

var p = models.Ptr[string]

type ScorerSuite struct {
	suite.Suite
	scorer *Scorer
}

func TestScorerSuite(t *testing.T) {
	suite.Run(t, new(ScorerSuite))
}

func (s *ScorerSuite) SetupSuite() {
	reg, err := equivalence.Default()
	s.Require().NoError(err)
	s.scorer, err = New(reg, DefaultWeights())
	s.Require().NoError(err)
}

func glock19() models.AttributeSet {
	return models.AttributeSet{
		Caliber:      p("9MM"),
		BarrelLength: p(`4.02"`),
		Capacity:     p("15"),
		ActionType:   p("STRIKER-FIRED"),
		FirearmType:  p("PISTOL"),
		Manufacturer: p("GLOCK"),
		Category:     p("HANDGUNS"),
		Department:   p("01"),
		Weight:       models.Ptr(1.3),
	}
}

// =============================================================================
// Construction
// =============================================================================

func (s *ScorerSuite) TestNew() {
	reg, err := equivalence.Default()
	s.Require().NoError(err)

	s.Run("requires a registry", func() {
		_, err := New(nil, DefaultWeights())
		s.Error(err)
	})

	s.Run("rejects negative weights", func() {
		w := DefaultWeights()
		w.Category = -1
		_, err := New(reg, w)
		s.ErrorContains(err, "category")
	})

	s.Run("rejects a perfect bonus below its parts", func() {
		w := DefaultWeights()
		w.Perfect = 50
		_, err := New(reg, w)
		s.ErrorContains(err, "perfect")
	})
}

// =============================================================================
// Signals
// =============================================================================

func (s *ScorerSuite) TestPerfectMatch() {
	target := glock19()
	candidate := glock19()
	candidate.Caliber = p("9MM LUGER")

	score := s.scorer.Score(target, candidate)

	s.Equal(100+20+15+10+10+15+5, score.Points)
	s.Equal("Same manufacturer, caliber and type (GLOCK, 9MM, PISTOL)", score.Reasons[0])
	s.NotContains(score.Reasons, "Same manufacturer (GLOCK)")

	mfrOnly := s.scorer.Score(target, models.AttributeSet{Manufacturer: p("GLOCK")})
	s.Equal(25, mfrOnly.Points)
	s.Greater(score.Points, mfrOnly.Points)
}

func (s *ScorerSuite) TestIndividualSignals() {
	cases := []struct {
		name      string
		target    models.AttributeSet
		candidate models.AttributeSet
		points    int
		reason    string
	}{
		{
			name:      "manufacturer",
			target:    models.AttributeSet{Manufacturer: p("RUGER")},
			candidate: models.AttributeSet{Manufacturer: p("RUGER")},
			points:    25, reason: "Same manufacturer (RUGER)",
		},
		{
			name:      "same caliber",
			target:    models.AttributeSet{Caliber: p("9MM")},
			candidate: models.AttributeSet{Caliber: p("9MM")},
			points:    40, reason: "Same caliber (9MM)",
		},
		{
			name:      "compatible caliber",
			target:    models.AttributeSet{Caliber: p("5.56 NATO")},
			candidate: models.AttributeSet{Caliber: p(".223 REM")},
			points:    40, reason: "Compatible caliber (5.56 NATO / .223 REM)",
		},
		{
			name:      "firearm type",
			target:    models.AttributeSet{FirearmType: p("RIFLE")},
			candidate: models.AttributeSet{FirearmType: p("RIFLE")},
			points:    30, reason: "Same firearm type (RIFLE)",
		},
		{
			name:      "category ignores case",
			target:    models.AttributeSet{Category: p("HANDGUNS")},
			candidate: models.AttributeSet{Category: p("Handguns")},
			points:    20, reason: "Same category (HANDGUNS)",
		},
		{
			name:      "department",
			target:    models.AttributeSet{Department: p("07")},
			candidate: models.AttributeSet{Department: p("07")},
			points:    15, reason: "Same department (07)",
		},
		{
			name:      "barrel within tolerance",
			target:    models.AttributeSet{BarrelLength: p(`4"`)},
			candidate: models.AttributeSet{BarrelLength: p(`5"`)},
			points:    10, reason: `Similar barrel length (4" vs 5")`,
		},
		{
			name:      "capacity uses magazine count",
			target:    models.AttributeSet{Capacity: p("17+1")},
			candidate: models.AttributeSet{Capacity: p("15")},
			points:    10, reason: "Similar capacity (17+1 vs 15)",
		},
		{
			name:      "action",
			target:    models.AttributeSet{ActionType: p("DA/SA")},
			candidate: models.AttributeSet{ActionType: p("DA/SA")},
			points:    15, reason: "Same action type (DA/SA)",
		},
		{
			name:      "weight within ten percent of the average",
			target:    models.AttributeSet{Weight: models.Ptr(2.0)},
			candidate: models.AttributeSet{Weight: models.Ptr(2.2)},
			points:    5, reason: "Similar weight (2 vs 2.2)",
		},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			score := s.scorer.Score(tc.target, tc.candidate)
			s.Equal(tc.points, score.Points)
			s.Equal([]string{tc.reason}, score.Reasons)
		})
	}
}

func (s *ScorerSuite) TestTolerances() {
	s.Run("barrel outside tolerance", func() {
		score := s.scorer.Score(
			models.AttributeSet{BarrelLength: p(`4"`)},
			models.AttributeSet{BarrelLength: p(`5.5"`)},
		)
		s.Zero(score.Points)
	})

	s.Run("capacity outside tolerance", func() {
		score := s.scorer.Score(
			models.AttributeSet{Capacity: p("10")},
			models.AttributeSet{Capacity: p("13")},
		)
		s.Zero(score.Points)
	})

	s.Run("weight outside tolerance", func() {
		score := s.scorer.Score(
			models.AttributeSet{Weight: models.Ptr(2.0)},
			models.AttributeSet{Weight: models.Ptr(2.5)},
		)
		s.Zero(score.Points)
	})

	s.Run("incompatible calibers", func() {
		score := s.scorer.Score(
			models.AttributeSet{Caliber: p("9MM")},
			models.AttributeSet{Caliber: p(".45 ACP")},
		)
		s.Zero(score.Points)
	})
}

func (s *ScorerSuite) TestAbsentAttributesNeverFire() {
	score := s.scorer.Score(models.AttributeSet{}, glock19())
	s.Zero(score.Points)
	s.Empty(score.Reasons)

	score = s.scorer.Score(models.AttributeSet{}, models.AttributeSet{})
	s.Zero(score.Points)
}

// =============================================================================
// Properties
// =============================================================================

func (s *ScorerSuite) TestCommutativePoints() {
	a := glock19()
	b := models.AttributeSet{
		Caliber:      p("9MM"),
		BarrelLength: p(`4.5"`),
		Capacity:     p("17+1"),
		FirearmType:  p("PISTOL"),
		Manufacturer: p("SIG SAUER"),
		Category:     p("HANDGUNS"),
		Weight:       models.Ptr(1.35),
	}
	s.Equal(s.scorer.Score(a, b).Points, s.scorer.Score(b, a).Points)
}

// Turning on one more matching attribute on the candidate never lowers the
// score.
func (s *ScorerSuite) TestMonotonic() {
	target := glock19()
	setters := []func(*models.AttributeSet){
		func(a *models.AttributeSet) { a.Manufacturer = target.Manufacturer },
		func(a *models.AttributeSet) { a.Caliber = target.Caliber },
		func(a *models.AttributeSet) { a.FirearmType = target.FirearmType },
		func(a *models.AttributeSet) { a.Category = target.Category },
		func(a *models.AttributeSet) { a.Department = target.Department },
		func(a *models.AttributeSet) { a.BarrelLength = target.BarrelLength },
		func(a *models.AttributeSet) { a.Capacity = target.Capacity },
		func(a *models.AttributeSet) { a.ActionType = target.ActionType },
		func(a *models.AttributeSet) { a.Weight = target.Weight },
	}

	// Every subset of signals, then each one added on top.
	for mask := range 1 << len(setters) {
		var base models.AttributeSet
		for i, set := range setters {
			if mask&(1<<i) != 0 {
				set(&base)
			}
		}
		before := s.scorer.Score(target, base).Points
		for i, set := range setters {
			if mask&(1<<i) != 0 {
				continue
			}
			more := base
			set(&more)
			s.GreaterOrEqual(s.scorer.Score(target, more).Points, before, "mask %b + signal %d", mask, i)
		}
	}
}
