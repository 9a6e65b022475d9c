package ports

import (
	"context"

	"armory/internal/catalog/models"
	id "armory/pkg/domain"
)

// Repository is the read-only view of the catalog owned by the persistence
// collaborator.
type Repository interface {
	// All returns a snapshot of every catalog record.
	All(ctx context.Context) ([]models.Record, error)
	// FindByIDs returns the records for ids. Order is unspecified and unknown
	// IDs are omitted.
	FindByIDs(ctx context.Context, ids []id.ProductID) ([]models.Record, error)
}
