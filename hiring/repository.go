package hiring

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var (
	// ErrGigNotFound signals the gig does not exist.
	ErrGigNotFound = errors.New("hiring: gig not found")
	// ErrBidNotFound signals the bid does not exist.
	ErrBidNotFound = errors.New("hiring: bid not found")
)

// GigRow is the slice of a gig row the coordinator needs.
type GigRow struct {
	ID      string
	OwnerID string
	Title   string
	Status  string
}

// BidRow is the slice of a bid row the coordinator needs.
type BidRow struct {
	ID           string
	GigID        string
	FreelancerID string
	Amount       decimal.Decimal
	Status       string
}

// Repository enumerates the writes the hire transaction is made of. Every
// method runs inside the caller's transaction.
type Repository interface {
	LockGig(ctx context.Context, tx pgx.Tx, gigID string) (GigRow, error)
	GetBid(ctx context.Context, tx pgx.Tx, bidID string) (BidRow, error)
	AssignGig(ctx context.Context, tx pgx.Tx, gigID, freelancerID string) error
	MarkBidHired(ctx context.Context, tx pgx.Tx, bidID string) error
	RejectSiblings(ctx context.Context, tx pgx.Tx, gigID, keepBidID string) ([]string, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct{}

func NewRepository() *PGRepository {
	return &PGRepository{}
}

// LockGig takes the per-gig exclusive lock the whole transition serializes
// on; concurrent submissions hold FOR SHARE on the same row and line up
// behind it.
func (r *PGRepository) LockGig(ctx context.Context, tx pgx.Tx, gigID string) (GigRow, error) {
	const query = `
		SELECT id, owner_id, title, status::text
		FROM gigs
		WHERE id = $1
		FOR UPDATE
	`

	var row GigRow
	if err := tx.QueryRow(ctx, query, gigID).Scan(&row.ID, &row.OwnerID, &row.Title, &row.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GigRow{}, ErrGigNotFound
		}
		return GigRow{}, fmt.Errorf("hiring: lock gig: %w", err)
	}
	return row, nil
}

func (r *PGRepository) GetBid(ctx context.Context, tx pgx.Tx, bidID string) (BidRow, error) {
	const query = `
		SELECT id, gig_id, freelancer_id, amount, status::text
		FROM bids
		WHERE id = $1
	`

	var row BidRow
	if err := tx.QueryRow(ctx, query, bidID).Scan(&row.ID, &row.GigID, &row.FreelancerID, &row.Amount, &row.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BidRow{}, ErrBidNotFound
		}
		return BidRow{}, fmt.Errorf("hiring: load bid: %w", err)
	}
	return row, nil
}

func (r *PGRepository) AssignGig(ctx context.Context, tx pgx.Tx, gigID, freelancerID string) error {
	const query = `
		UPDATE gigs
		SET status = 'assigned',
		    hired_freelancer_id = $2,
		    updated_at = now()
		WHERE id = $1
	`

	if _, err := tx.Exec(ctx, query, gigID, freelancerID); err != nil {
		return fmt.Errorf("hiring: assign gig: %w", err)
	}
	return nil
}

func (r *PGRepository) MarkBidHired(ctx context.Context, tx pgx.Tx, bidID string) error {
	if _, err := tx.Exec(ctx, `UPDATE bids SET status = 'hired' WHERE id = $1`, bidID); err != nil {
		return fmt.Errorf("hiring: mark bid hired: %w", err)
	}
	return nil
}

// RejectSiblings flips every other still-pending bid on the gig to rejected
// and reports the affected freelancers. Bids already in a terminal state are
// left untouched.
func (r *PGRepository) RejectSiblings(ctx context.Context, tx pgx.Tx, gigID, keepBidID string) ([]string, error) {
	const query = `
		UPDATE bids
		SET status = 'rejected'
		WHERE gig_id = $1
		  AND id <> $2
		  AND status = 'pending'
		RETURNING freelancer_id
	`

	rows, err := tx.Query(ctx, query, gigID, keepBidID)
	if err != nil {
		return nil, fmt.Errorf("hiring: reject siblings: %w", err)
	}
	defer rows.Close()

	losers := make([]string, 0, 8)
	for rows.Next() {
		var freelancerID string
		if err := rows.Scan(&freelancerID); err != nil {
			return nil, fmt.Errorf("hiring: scan rejected freelancer: %w", err)
		}
		losers = append(losers, freelancerID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hiring: iterate rejected freelancers: %w", err)
	}
	return losers, nil
}
