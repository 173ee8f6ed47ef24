// Package postgres persists markdowns in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"pricingflow/pkg/markdown"
)

// Repository persists markdowns and product associations in
// PostgreSQL. Policies are stored as their specification: type,
// optional percentage and a JSON thresholds map.
type Repository struct {
	db *sql.DB
}

// New creates a PostgreSQL repository.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the markdown tables if they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS markdowns (id TEXT PRIMARY KEY, type TEXT NOT NULL, percentage DOUBLE PRECISION, thresholds JSONB)",
		"CREATE TABLE IF NOT EXISTS product_markdowns (product_id TEXT PRIMARY KEY, markdown_id TEXT NOT NULL)",
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Create inserts a new markdown built from the specification.
func (r *Repository) Create(ctx context.Context, spec markdown.Specification) (string, error) {
	if _, err := markdown.NewPolicy(spec); err != nil {
		return "", err
	}
	id := uuid.NewString()
	percentage, thresholds, err := specColumns(spec)
	if err != nil {
		return "", err
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO markdowns (id,type,percentage,thresholds) VALUES ($1,$2,$3,$4)",
		id, string(spec.Type), percentage, thresholds)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Get retrieves a markdown by id.
func (r *Repository) Get(ctx context.Context, id string) (markdown.Markdown, error) {
	row := r.db.QueryRowContext(ctx, "SELECT type,percentage,thresholds FROM markdowns WHERE id=$1", id)
	m, err := scanMarkdown(id, row.Scan)
	if err == sql.ErrNoRows {
		return markdown.Markdown{}, markdown.ErrNotFound
	}
	return m, err
}

// List fetches all markdowns.
func (r *Repository) List(ctx context.Context) ([]markdown.Markdown, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id,type,percentage,thresholds FROM markdowns")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []markdown.Markdown
	for rows.Next() {
		var id string
		m, err := scanMarkdown("", func(dest ...any) error {
			return rows.Scan(append([]any{&id}, dest...)...)
		})
		if err != nil {
			return nil, err
		}
		m.ID = id
		out = append(out, m)
	}
	return out, rows.Err()
}

// Update replaces the stored policy for id.
func (r *Repository) Update(ctx context.Context, id string, spec markdown.Specification) error {
	if _, err := markdown.NewPolicy(spec); err != nil {
		return err
	}
	percentage, thresholds, err := specColumns(spec)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE markdowns SET type=$2, percentage=$3, thresholds=$4 WHERE id=$1",
		id, string(spec.Type), percentage, thresholds)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return markdown.ErrNotFound
	}
	return nil
}

// Delete removes a markdown by id. Rows in product_markdowns pointing
// at it are kept; GetByProduct re-checks the markdowns table.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM markdowns WHERE id=$1", id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return markdown.ErrNotFound
	}
	return nil
}

// GetByProduct resolves the association row and loads the markdown.
func (r *Repository) GetByProduct(ctx context.Context, productID string) (markdown.Markdown, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		"SELECT markdown_id FROM product_markdowns WHERE product_id=$1", productID).Scan(&id)
	if err == sql.ErrNoRows {
		return markdown.Markdown{}, markdown.ErrNotFound
	}
	if err != nil {
		return markdown.Markdown{}, err
	}
	return r.Get(ctx, id)
}

// Associate upserts productID -> id rows.
func (r *Repository) Associate(ctx context.Context, id string, productIDs []string) error {
	for _, pid := range productIDs {
		_, err := r.db.ExecContext(ctx,
			"INSERT INTO product_markdowns (product_id,markdown_id) VALUES ($1,$2) ON CONFLICT (product_id) DO UPDATE SET markdown_id=$2",
			pid, id)
		if err != nil {
			return err
		}
	}
	return nil
}

// Dissociate removes the association rows for the given products.
func (r *Repository) Dissociate(ctx context.Context, id string, productIDs []string) error {
	for _, pid := range productIDs {
		if _, err := r.db.ExecContext(ctx, "DELETE FROM product_markdowns WHERE product_id=$1", pid); err != nil {
			return err
		}
	}
	return nil
}

func specColumns(spec markdown.Specification) (sql.NullFloat64, []byte, error) {
	var percentage sql.NullFloat64
	if spec.Configuration.Percentage != nil {
		percentage = sql.NullFloat64{Float64: *spec.Configuration.Percentage, Valid: true}
	}
	var thresholds []byte
	if spec.Configuration.Thresholds != nil {
		b, err := json.Marshal(spec.Configuration.Thresholds)
		if err != nil {
			return percentage, nil, err
		}
		thresholds = b
	}
	return percentage, thresholds, nil
}

func scanMarkdown(id string, scan func(dest ...any) error) (markdown.Markdown, error) {
	var (
		typ        string
		percentage sql.NullFloat64
		thresholds []byte
	)
	if err := scan(&typ, &percentage, &thresholds); err != nil {
		return markdown.Markdown{}, err
	}
	spec := markdown.Specification{Type: markdown.Type(typ)}
	if percentage.Valid {
		spec.Configuration.Percentage = &percentage.Float64
	}
	if thresholds != nil {
		m := make(map[int]float64)
		if err := json.Unmarshal(thresholds, &m); err != nil {
			return markdown.Markdown{}, fmt.Errorf("decode thresholds: %w", err)
		}
		spec.Configuration.Thresholds = m
	}
	p, err := markdown.NewPolicy(spec)
	if err != nil {
		return markdown.Markdown{}, err
	}
	return markdown.Markdown{ID: id, Policy: p}, nil
}
