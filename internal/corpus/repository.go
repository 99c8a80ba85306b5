package corpus

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/medicobot/medicobot/pkg/postgres"
)

// Repository reads and writes the diseases table. The admin dashboard edits
// rows through Upsert; the matcher rebuilds its index from List after every
// change.
//
// It requires a `diseases` table:
//
//	CREATE TABLE diseases (
//	    id          BIGSERIAL PRIMARY KEY,
//	    name        TEXT NOT NULL UNIQUE,
//	    symptoms    TEXT NOT NULL,
//	    description TEXT NOT NULL DEFAULT '',
//	    treatments  TEXT NOT NULL DEFAULT '',
//	    precautions TEXT NOT NULL DEFAULT ''
//	);
type Repository struct {
	db *postgres.Client
}

// NewRepository creates a Repository backed by the given Postgres client.
func NewRepository(db *postgres.Client) *Repository {
	return &Repository{db: db}
}

// List returns all disease records in insertion order. The order is the
// corpus order the matcher uses for tie-breaking, so it must be stable
// between calls.
func (r *Repository) List(ctx context.Context) ([]Disease, error) {
	rows, err := r.db.DB.QueryContext(ctx,
		`SELECT name, symptoms, description, treatments, precautions
		 FROM diseases ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying diseases: %w", err)
	}
	defer rows.Close()

	var diseases []Disease
	for rows.Next() {
		var d Disease
		if err := rows.Scan(&d.Name, &d.Symptoms, &d.Description, &d.Treatments, &d.Precautions); err != nil {
			return nil, fmt.Errorf("scanning disease row: %w", err)
		}
		diseases = append(diseases, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating disease rows: %w", err)
	}
	return diseases, nil
}

// Upsert inserts a disease record or updates its payload when the name
// already exists.
func (r *Repository) Upsert(ctx context.Context, d Disease) error {
	_, err := r.db.DB.ExecContext(ctx,
		`INSERT INTO diseases (name, symptoms, description, treatments, precautions)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (name) DO UPDATE SET
		   symptoms = EXCLUDED.symptoms,
		   description = EXCLUDED.description,
		   treatments = EXCLUDED.treatments,
		   precautions = EXCLUDED.precautions`,
		d.Name, d.Symptoms, d.Description, d.Treatments, d.Precautions)
	if err != nil {
		return fmt.Errorf("upserting disease %s: %w", d.Name, err)
	}
	return nil
}

// ReplaceAll swaps the entire diseases table for the given records in one
// transaction. Used by the corpus loader when seeding from CSV.
func (r *Repository) ReplaceAll(ctx context.Context, diseases []Disease) error {
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM diseases`); err != nil {
			return fmt.Errorf("clearing diseases: %w", err)
		}
		for _, d := range diseases {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO diseases (name, symptoms, description, treatments, precautions)
				 VALUES ($1, $2, $3, $4, $5)`,
				d.Name, d.Symptoms, d.Description, d.Treatments, d.Precautions)
			if err != nil {
				return fmt.Errorf("inserting disease %s: %w", d.Name, err)
			}
		}
		return nil
	})
}

// Count returns the number of disease records.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM diseases`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting diseases: %w", err)
	}
	return n, nil
}
