// Package models holds the value types the intelligence engine passes between
// extraction, scoring and ranking.
package models

import (
	"strconv"
	"strings"
	"time"

	catalog "armory/internal/catalog/models"
	id "armory/pkg/domain"
)

// AttributeSet is what the engine knows about one product. Absent attributes
// are nil; a present attribute is never the empty string.
type AttributeSet struct {
	Caliber      *string  `json:"caliber,omitempty"`
	BarrelLength *string  `json:"barrel_length,omitempty"`
	Capacity     *string  `json:"capacity,omitempty"`
	ActionType   *string  `json:"action_type,omitempty"`
	FirearmType  *string  `json:"firearm_type,omitempty"`
	Manufacturer *string  `json:"manufacturer,omitempty"`
	Category     *string  `json:"category,omitempty"`
	Department   *string  `json:"department,omitempty"`
	Weight       *float64 `json:"weight,omitempty"`
}

// BarrelInches parses BarrelLength ("4.5\"") into inches.
func (a AttributeSet) BarrelInches() (float64, bool) {
	if a.BarrelLength == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimRight(*a.BarrelLength, `"`), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Rounds returns the magazine capacity. For compound forms like "17+1" only
// the magazine count is used.
func (a AttributeSet) Rounds() (int, bool) {
	if a.Capacity == nil {
		return 0, false
	}
	head, _, _ := strings.Cut(*a.Capacity, "+")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsEmpty reports whether no attribute was recognized.
func (a AttributeSet) IsEmpty() bool {
	return a.Caliber == nil && a.BarrelLength == nil && a.Capacity == nil &&
		a.ActionType == nil && a.FirearmType == nil && a.Manufacturer == nil &&
		a.Category == nil && a.Department == nil && a.Weight == nil
}

// Score is the outcome of comparing two attribute sets.
type Score struct {
	Points  int      `json:"points"`
	Reasons []string `json:"reasons"`
}

// Add records a fired signal.
func (s *Score) Add(points int, reason string) {
	s.Points += points
	s.Reasons = append(s.Reasons, reason)
}

// ScoredCandidate pairs a sampled product with its score.
type ScoredCandidate struct {
	ID    id.ProductID
	Score Score
}

// RankedItem is one entry of a related-products answer.
type RankedItem struct {
	Product catalog.Record `json:"product"`
	Score   Score          `json:"score"`
}

// RankedResult is an ordered related-products answer. Partial is set when the
// query deadline cut scoring short.
type RankedResult struct {
	TargetID   id.ProductID `json:"target_id"`
	Items      []RankedItem `json:"items"`
	Sampled    int          `json:"sampled"`
	Scored     int          `json:"scored"`
	Partial    bool         `json:"partial"`
	Generation uint64       `json:"generation"`
}

// CacheStatus describes the intelligence cache.
type CacheStatus struct {
	Ready      bool      `json:"ready"`
	Size       int       `json:"size"`
	Generation uint64    `json:"generation"`
	BuiltAt    time.Time `json:"built_at,omitzero"`
}

// EngineStatus is the cache status plus the registry it was built against.
type EngineStatus struct {
	Cache           CacheStatus `json:"cache"`
	RegistryVersion string      `json:"registry_version,omitempty"`
	RegistryHash    string      `json:"registry_hash,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
