package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/lib/pq"

	"armory/internal/catalog/models"
	id "armory/pkg/domain"
	"armory/pkg/platform/tx"
)

// Schema is the products table the catalog reader expects. The persistence
// collaborator owns it; tests and local setups apply it directly.
//
//go:embed schema.sql
var Schema string

const selectColumns = `id, name, manufacturer, category, department_code, weight`

// PostgresCatalog reads catalog records from PostgreSQL.
type PostgresCatalog struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed catalog reader.
func New(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// EnsureSchema applies Schema. Only used outside production.
func (c *PostgresCatalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply catalog schema: %w", err)
	}
	return nil
}

// All streams every product row into memory ordered by id.
func (c *PostgresCatalog) All(ctx context.Context) ([]models.Record, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// FindByIDs loads the given products in a single round trip.
func (c *PostgresCatalog) FindByIDs(ctx context.Context, ids []id.ProductID) ([]models.Record, error) {
	if len(ids) == 0 {
		return []models.Record{}, nil
	}
	raw := make([]int64, len(ids))
	for i, pid := range ids {
		raw[i] = int64(pid)
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM products WHERE id = ANY($1)`, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("find products by ids: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Upsert writes records in one transaction, joining the caller's when ctx
// carries one. The query path never calls it; catalog import does.
func (c *PostgresCatalog) Upsert(ctx context.Context, records []models.Record) error {
	const query = `
		INSERT INTO products (id, name, manufacturer, category, department_code, weight)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			manufacturer = EXCLUDED.manufacturer,
			category = EXCLUDED.category,
			department_code = EXCLUDED.department_code,
			weight = EXCLUDED.weight
	`
	return tx.Run(ctx, c.db, func(ctx context.Context) error {
		t, _ := tx.From(ctx)
		stmt, err := t.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare upsert: %w", err)
		}
		defer stmt.Close()
		for _, r := range records {
			_, err := stmt.ExecContext(ctx,
				int64(r.ID), r.Name,
				nullString(r.Manufacturer), nullString(r.Category), nullString(r.DepartmentCode),
				nullFloat(r.Weight),
			)
			if err != nil {
				return fmt.Errorf("upsert product %d: %w", r.ID, err)
			}
		}
		return nil
	})
}

func scanRecords(rows *sql.Rows) ([]models.Record, error) {
	var out []models.Record
	for rows.Next() {
		var (
			pid                    int64
			name                   string
			manufacturer, category sql.NullString
			department             sql.NullString
			weight                 sql.NullFloat64
		)
		if err := rows.Scan(&pid, &name, &manufacturer, &category, &department, &weight); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		r := models.Record{
			ID:             id.ProductID(pid),
			Name:           name,
			Manufacturer:   manufacturer.String,
			Category:       category.String,
			DepartmentCode: department.String,
		}
		if weight.Valid {
			w := weight.Float64
			r.Weight = &w
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
