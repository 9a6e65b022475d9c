// Package domain holds identifier types shared across packages.
package domain

import (
	"strconv"
	"strings"

	dErrors "armory/pkg/domain-errors"
)

// ProductID identifies a catalog record. Catalog IDs are positive integers
// assigned by the persistence layer.
type ProductID int64

// ParseProductID parses a decimal product ID at a trust boundary.
func ParseProductID(s string) (ProductID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "product id is required")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "product id must be an integer")
	}
	if n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "product id must be positive")
	}
	return ProductID(n), nil
}

func (id ProductID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// IsNil reports whether id is the zero value.
func (id ProductID) IsNil() bool {
	return id == 0
}
