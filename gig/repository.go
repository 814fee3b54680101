package gig

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested gig does not exist.
var ErrNotFound = errors.New("gig: not found")

// Repository handles data access for gigs. Methods taking a pgx.Tx run
// inside the caller's transaction.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Gig, error)
	GetByID(ctx context.Context, id string) (Gig, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Gig, error)
	Update(ctx context.Context, tx pgx.Tx, id string, patch UpdateParams) (Gig, error)
	Delete(ctx context.Context, tx pgx.Tx, id string) error
	ListOpen(ctx context.Context) ([]Gig, error)
	SearchText(ctx context.Context, query string) ([]Gig, error)
	SearchSubstring(ctx context.Context, query string) ([]Gig, error)
	ListForOwner(ctx context.Context, ownerID string) ([]Summary, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const gigColumns = `g.id, g.title, g.description, g.budget, g.owner_id, u.name, g.status::text, g.hired_freelancer_id, g.created_at, g.updated_at`

func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Gig, error) {
	const query = `
		INSERT INTO gigs (title, description, budget, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, title, description, budget, owner_id, status::text, hired_freelancer_id, created_at, updated_at
	`

	var g Gig
	err := r.pool.QueryRow(ctx, query,
		params.Title,
		params.Description,
		params.Budget,
		params.OwnerID,
	).Scan(&g.ID, &g.Title, &g.Description, &g.Budget, &g.OwnerID, &g.Status, &g.HiredFreelancerID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return Gig{}, fmt.Errorf("gig: insert: %w", err)
	}
	return g, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (Gig, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM gigs g
		JOIN users u ON u.id = g.owner_id
		WHERE g.id = $1
	`, gigColumns)

	g, err := scanGig(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Gig{}, ErrNotFound
		}
		return Gig{}, fmt.Errorf("gig: get by id: %w", err)
	}
	return g, nil
}

func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Gig, error) {
	const query = `
		SELECT id, title, description, budget, owner_id, status::text, hired_freelancer_id, created_at, updated_at
		FROM gigs
		WHERE id = $1
		FOR UPDATE
	`

	var g Gig
	err := tx.QueryRow(ctx, query, id).Scan(
		&g.ID, &g.Title, &g.Description, &g.Budget, &g.OwnerID, &g.Status, &g.HiredFreelancerID, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Gig{}, ErrNotFound
		}
		return Gig{}, fmt.Errorf("gig: get for update: %w", err)
	}
	return g, nil
}

func (r *PGRepository) Update(ctx context.Context, tx pgx.Tx, id string, patch UpdateParams) (Gig, error) {
	const query = `
		UPDATE gigs
		SET title = COALESCE($2, title),
		    description = COALESCE($3, description),
		    budget = COALESCE($4, budget),
		    updated_at = now()
		WHERE id = $1
		RETURNING id, title, description, budget, owner_id, status::text, hired_freelancer_id, created_at, updated_at
	`

	var g Gig
	err := tx.QueryRow(ctx, query, id, patch.Title, patch.Description, patch.Budget).Scan(
		&g.ID, &g.Title, &g.Description, &g.Budget, &g.OwnerID, &g.Status, &g.HiredFreelancerID, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Gig{}, ErrNotFound
		}
		return Gig{}, fmt.Errorf("gig: update: %w", err)
	}
	return g, nil
}

// Delete removes the gig; the bids FK cascade removes every bid referencing
// it in the same statement.
func (r *PGRepository) Delete(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM gigs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("gig: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) ListOpen(ctx context.Context) ([]Gig, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM gigs g
		JOIN users u ON u.id = g.owner_id
		WHERE g.status = 'open'
		ORDER BY g.created_at DESC
	`, gigColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("gig: list open: %w", err)
	}
	defer rows.Close()

	return collectGigs(rows)
}

// SearchText runs the relevance-ranked full-text tier over open gigs.
func (r *PGRepository) SearchText(ctx context.Context, query string) ([]Gig, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM gigs g
		JOIN users u ON u.id = g.owner_id
		WHERE g.status = 'open'
		  AND to_tsvector('english', g.title || ' ' || g.description) @@ websearch_to_tsquery('english', $1)
		ORDER BY ts_rank(to_tsvector('english', g.title || ' ' || g.description), websearch_to_tsquery('english', $1)) DESC
	`, gigColumns)

	rows, err := r.pool.Query(ctx, sql, query)
	if err != nil {
		return nil, fmt.Errorf("gig: text search: %w", err)
	}
	defer rows.Close()

	return collectGigs(rows)
}

// SearchSubstring is the recall fallback: case-insensitive substring match
// on title or description among open gigs.
func (r *PGRepository) SearchSubstring(ctx context.Context, query string) ([]Gig, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM gigs g
		JOIN users u ON u.id = g.owner_id
		WHERE g.status = 'open'
		  AND (g.title ILIKE '%%' || $1 || '%%' OR g.description ILIKE '%%' || $1 || '%%')
		ORDER BY g.created_at DESC
	`, gigColumns)

	rows, err := r.pool.Query(ctx, sql, query)
	if err != nil {
		return nil, fmt.Errorf("gig: substring search: %w", err)
	}
	defer rows.Close()

	return collectGigs(rows)
}

func (r *PGRepository) ListForOwner(ctx context.Context, ownerID string) ([]Summary, error) {
	const query = `
		SELECT g.id, g.title, g.status::text, g.budget, g.created_at, COUNT(b.id)
		FROM gigs g
		LEFT JOIN bids b ON b.gig_id = g.id
		WHERE g.owner_id = $1
		GROUP BY g.id
		ORDER BY g.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("gig: list for owner: %w", err)
	}
	defer rows.Close()

	out := make([]Summary, 0, 8)
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Title, &s.Status, &s.Budget, &s.CreatedAt, &s.BidCount); err != nil {
			return nil, fmt.Errorf("gig: scan summary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gig: iterate summaries: %w", err)
	}
	return out, nil
}

func scanGig(row pgx.Row) (Gig, error) {
	var g Gig
	return g, row.Scan(
		&g.ID,
		&g.Title,
		&g.Description,
		&g.Budget,
		&g.OwnerID,
		&g.OwnerName,
		&g.Status,
		&g.HiredFreelancerID,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
}

func collectGigs(rows pgx.Rows) ([]Gig, error) {
	out := make([]Gig, 0, 8)
	for rows.Next() {
		g, err := scanGig(rows)
		if err != nil {
			return nil, fmt.Errorf("gig: scan gig: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gig: iterate gigs: %w", err)
	}
	return out, nil
}
