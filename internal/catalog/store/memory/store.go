package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"armory/internal/catalog/models"
	id "armory/pkg/domain"
)

// InMemoryCatalog implements ports.Repository over a map of records.
// Used by the CLI with JSON snapshots and by tests; production reads Postgres.
type InMemoryCatalog struct {
	mu      sync.RWMutex
	records map[id.ProductID]models.Record
}

// New creates an in-memory catalog seeded with records.
func New(records ...models.Record) *InMemoryCatalog {
	c := &InMemoryCatalog{records: make(map[id.ProductID]models.Record, len(records))}
	for _, r := range records {
		c.records[r.ID] = r
	}
	return c
}

// LoadFile reads a JSON array of records from path.
func LoadFile(path string) (*InMemoryCatalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog snapshot: %w", err)
	}
	defer f.Close()

	var records []models.Record
	if err := json.NewDecoder(f).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode catalog snapshot %s: %w", path, err)
	}
	for i, r := range records {
		if r.ID <= 0 {
			return nil, fmt.Errorf("catalog snapshot %s: record %d has invalid id %d", path, i, r.ID)
		}
	}
	return New(records...), nil
}

// Put inserts or replaces a record.
func (c *InMemoryCatalog) Put(r models.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[r.ID] = r
}

// Delete removes records; unknown IDs are ignored.
func (c *InMemoryCatalog) Delete(ids ...id.ProductID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pid := range ids {
		delete(c.records, pid)
	}
}

// Replace swaps the whole catalog contents.
func (c *InMemoryCatalog) Replace(records []models.Record) {
	next := make(map[id.ProductID]models.Record, len(records))
	for _, r := range records {
		next[r.ID] = r
	}
	c.mu.Lock()
	c.records = next
	c.mu.Unlock()
}

// All returns every record ordered by ID.
func (c *InMemoryCatalog) All(_ context.Context) ([]models.Record, error) {
	c.mu.RLock()
	out := make([]models.Record, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindByIDs returns the known records among ids, in the order requested.
func (c *InMemoryCatalog) FindByIDs(_ context.Context, ids []id.ProductID) ([]models.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Record, 0, len(ids))
	for _, pid := range ids {
		if r, ok := c.records[pid]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}
