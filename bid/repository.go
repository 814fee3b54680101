package bid

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrGigNotFound signals the referenced gig does not exist.
	ErrGigNotFound = errors.New("bid: gig not found")
	// ErrDuplicate signals the freelancer already bid on this gig. The
	// bids_gig_freelancer_idx unique index is the real enforcement; this
	// sentinel is how a lost race surfaces.
	ErrDuplicate = errors.New("bid: already bid on this gig")
)

// Repository handles data access for bids. Methods taking a pgx.Tx are meant
// to run inside the caller's admission transaction.
type Repository interface {
	LockGigShared(ctx context.Context, tx pgx.Tx, gigID string) (GigSnapshot, error)
	ExistsForGig(ctx context.Context, tx pgx.Tx, gigID, freelancerID string) (bool, error)
	Insert(ctx context.Context, tx pgx.Tx, params SubmitParams) (Bid, error)
	UserName(ctx context.Context, tx pgx.Tx, userID string) (string, error)
	GetGig(ctx context.Context, gigID string) (GigSnapshot, error)
	ListForGig(ctx context.Context, gigID string) ([]Bid, error)
	ListVisible(ctx context.Context, gigID, freelancerID string) ([]Bid, error)
	ListForFreelancer(ctx context.Context, freelancerID string) ([]WithGig, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// LockGigShared reads the gig row under FOR SHARE so the admission checks
// cannot interleave with the hiring coordinator's FOR UPDATE transition,
// while leaving concurrent submissions by other freelancers unblocked.
func (r *PGRepository) LockGigShared(ctx context.Context, tx pgx.Tx, gigID string) (GigSnapshot, error) {
	const query = `
		SELECT id, owner_id, title, status::text
		FROM gigs
		WHERE id = $1
		FOR SHARE
	`

	var snap GigSnapshot
	if err := tx.QueryRow(ctx, query, gigID).Scan(&snap.ID, &snap.OwnerID, &snap.Title, &snap.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GigSnapshot{}, ErrGigNotFound
		}
		return GigSnapshot{}, fmt.Errorf("bid: lock gig: %w", err)
	}
	return snap, nil
}

func (r *PGRepository) ExistsForGig(ctx context.Context, tx pgx.Tx, gigID, freelancerID string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bids WHERE gig_id = $1 AND freelancer_id = $2)`,
		gigID, freelancerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("bid: check existing: %w", err)
	}
	return exists, nil
}

func (r *PGRepository) Insert(ctx context.Context, tx pgx.Tx, params SubmitParams) (Bid, error) {
	const query = `
		INSERT INTO bids (gig_id, freelancer_id, amount, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, gig_id, freelancer_id, amount, message, status::text, created_at
	`

	var b Bid
	err := tx.QueryRow(ctx, query,
		params.GigID,
		params.FreelancerID,
		params.Amount,
		params.Message,
	).Scan(&b.ID, &b.GigID, &b.FreelancerID, &b.Amount, &b.Message, &b.Status, &b.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Bid{}, ErrDuplicate
		}
		return Bid{}, fmt.Errorf("bid: insert: %w", err)
	}
	return b, nil
}

func (r *PGRepository) UserName(ctx context.Context, tx pgx.Tx, userID string) (string, error) {
	var name string
	if err := tx.QueryRow(ctx, `SELECT name FROM users WHERE id = $1`, userID).Scan(&name); err != nil {
		return "", fmt.Errorf("bid: load user name: %w", err)
	}
	return name, nil
}

func (r *PGRepository) GetGig(ctx context.Context, gigID string) (GigSnapshot, error) {
	const query = `
		SELECT id, owner_id, title, status::text
		FROM gigs
		WHERE id = $1
	`

	var snap GigSnapshot
	if err := r.pool.QueryRow(ctx, query, gigID).Scan(&snap.ID, &snap.OwnerID, &snap.Title, &snap.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GigSnapshot{}, ErrGigNotFound
		}
		return GigSnapshot{}, fmt.Errorf("bid: get gig: %w", err)
	}
	return snap, nil
}

// ListForGig returns every bid on a gig with bidder identity attached.
func (r *PGRepository) ListForGig(ctx context.Context, gigID string) ([]Bid, error) {
	const query = `
		SELECT b.id, b.gig_id, b.freelancer_id, u.name, u.email, b.amount, b.message, b.status::text, b.created_at
		FROM bids b
		JOIN users u ON u.id = b.freelancer_id
		WHERE b.gig_id = $1
		ORDER BY b.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, gigID)
	if err != nil {
		return nil, fmt.Errorf("bid: list for gig: %w", err)
	}
	defer rows.Close()

	return collectBids(rows)
}

// ListVisible returns the single bid a non-owner viewer may see on a gig.
func (r *PGRepository) ListVisible(ctx context.Context, gigID, freelancerID string) ([]Bid, error) {
	const query = `
		SELECT b.id, b.gig_id, b.freelancer_id, u.name, u.email, b.amount, b.message, b.status::text, b.created_at
		FROM bids b
		JOIN users u ON u.id = b.freelancer_id
		WHERE b.gig_id = $1 AND b.freelancer_id = $2
	`

	rows, err := r.pool.Query(ctx, query, gigID, freelancerID)
	if err != nil {
		return nil, fmt.Errorf("bid: list visible: %w", err)
	}
	defer rows.Close()

	return collectBids(rows)
}

func (r *PGRepository) ListForFreelancer(ctx context.Context, freelancerID string) ([]WithGig, error) {
	const query = `
		SELECT b.id, b.gig_id, b.freelancer_id, b.amount, b.message, b.status::text, b.created_at,
		       g.title, g.status::text
		FROM bids b
		JOIN gigs g ON g.id = b.gig_id
		WHERE b.freelancer_id = $1
		ORDER BY b.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, freelancerID)
	if err != nil {
		return nil, fmt.Errorf("bid: list for freelancer: %w", err)
	}
	defer rows.Close()

	out := make([]WithGig, 0, 8)
	for rows.Next() {
		var item WithGig
		if err := rows.Scan(
			&item.ID,
			&item.GigID,
			&item.FreelancerID,
			&item.Amount,
			&item.Message,
			&item.Status,
			&item.CreatedAt,
			&item.GigTitle,
			&item.GigStatus,
		); err != nil {
			return nil, fmt.Errorf("bid: scan freelancer bid: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bid: iterate freelancer bids: %w", err)
	}
	return out, nil
}

func collectBids(rows pgx.Rows) ([]Bid, error) {
	out := make([]Bid, 0, 8)
	for rows.Next() {
		var b Bid
		if err := rows.Scan(
			&b.ID,
			&b.GigID,
			&b.FreelancerID,
			&b.FreelancerName,
			&b.FreelancerEmail,
			&b.Amount,
			&b.Message,
			&b.Status,
			&b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("bid: scan bid: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bid: iterate bids: %w", err)
	}
	return out, nil
}
