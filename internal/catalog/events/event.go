// Package events carries catalog-change notifications over Kafka. The
// consumer applies them to a writable catalog when one is configured and
// rebuilds the intelligence cache once per fetched batch.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"armory/internal/catalog/models"
	id "armory/pkg/domain"
)

// Type names a kind of catalog change.
type Type string

const (
	TypeUpsert Type = "upsert"
	TypeDelete Type = "delete"
	TypeReload Type = "reload"
)

// Event is the JSON payload of one catalog-change message.
type Event struct {
	Type       Type            `json:"type"`
	Records    []models.Record `json:"records,omitempty"`
	ProductIDs []id.ProductID  `json:"product_ids,omitempty"`
	OccurredAt time.Time       `json:"occurred_at,omitzero"`
}

// Decode parses and validates a message value.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode catalog event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Encode renders the event as a message value.
func (e Event) Encode() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// Validate checks that the payload matches the event type.
func (e Event) Validate() error {
	switch e.Type {
	case TypeUpsert:
		if len(e.Records) == 0 {
			return fmt.Errorf("catalog event %s: records are required", e.Type)
		}
		for _, r := range e.Records {
			if r.ID <= 0 {
				return fmt.Errorf("catalog event %s: invalid record id %d", e.Type, r.ID)
			}
		}
	case TypeDelete:
		if len(e.ProductIDs) == 0 {
			return fmt.Errorf("catalog event %s: product_ids are required", e.Type)
		}
	case TypeReload:
	default:
		return fmt.Errorf("catalog event: unknown type %q", e.Type)
	}
	return nil
}

// Writer is a catalog that accepts change events directly.
type Writer interface {
	Put(r models.Record)
	Delete(ids ...id.ProductID)
}

// Apply writes the event's changes into w.
func (e Event) Apply(w Writer) {
	switch e.Type {
	case TypeUpsert:
		for _, r := range e.Records {
			w.Put(r)
		}
	case TypeDelete:
		w.Delete(e.ProductIDs...)
	}
}
