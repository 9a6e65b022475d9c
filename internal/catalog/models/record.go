package models

import id "armory/pkg/domain"

// Record is a read-only catalog entry as supplied by the persistence layer.
// Only Name is reliably populated by the upstream feed.
type Record struct {
	ID             id.ProductID `json:"id"`
	Name           string       `json:"name"`
	Manufacturer   string       `json:"manufacturer,omitempty"`
	Category       string       `json:"category,omitempty"`
	DepartmentCode string       `json:"department_code,omitempty"`
	Weight         *float64     `json:"weight,omitempty"`
}
