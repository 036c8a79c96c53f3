package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// ReferenceRepository serves the small reference tables used for filtering
// and access control: liaisons, ateliers, profiles and client_liaisons.
// These are plain CRUD rows with active flags; no lifecycle beyond that.
type ReferenceRepository struct {
	db DB
}

// NewReferenceRepository creates a new reference repository.
func NewReferenceRepository(db DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// GetLiaison retrieves a liaison by ID.
func (r *ReferenceRepository) GetLiaison(ctx context.Context, id uuid.UUID) (*Liaison, error) {
	query := `SELECT id, name, active, created_at FROM liaisons WHERE id = $1`
	l := &Liaison{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&l.ID, &l.Name, &l.Active, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// GetAtelier retrieves an atelier by ID.
func (r *ReferenceRepository) GetAtelier(ctx context.Context, id uuid.UUID) (*Atelier, error) {
	query := `SELECT id, name, active, created_at FROM ateliers WHERE id = $1`
	a := &Atelier{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.Name, &a.Active, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListActiveLiaisons returns all active liaisons ordered by name.
func (r *ReferenceRepository) ListActiveLiaisons(ctx context.Context) ([]Liaison, error) {
	query := `SELECT id, name, active, created_at FROM liaisons WHERE active = true ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var liaisons []Liaison
	for rows.Next() {
		var l Liaison
		if err := rows.Scan(&l.ID, &l.Name, &l.Active, &l.CreatedAt); err != nil {
			return nil, err
		}
		liaisons = append(liaisons, l)
	}
	return liaisons, rows.Err()
}

// ListLiaisonsForProfile returns the liaisons a client profile is allowed to
// see, via the client_liaisons join table.
func (r *ReferenceRepository) ListLiaisonsForProfile(ctx context.Context, profileID uuid.UUID) ([]Liaison, error) {
	query := `
		SELECT l.id, l.name, l.active, l.created_at
		FROM liaisons l
		JOIN client_liaisons cl ON cl.liaison_id = l.id
		WHERE cl.profile_id = $1 AND l.active = true
		ORDER BY l.name ASC
	`
	rows, err := r.db.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var liaisons []Liaison
	for rows.Next() {
		var l Liaison
		if err := rows.Scan(&l.ID, &l.Name, &l.Active, &l.CreatedAt); err != nil {
			return nil, err
		}
		liaisons = append(liaisons, l)
	}
	return liaisons, rows.Err()
}
