package hiring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"gigflow/notify"
)

var (
	// ErrForbidden signals the caller does not own the gig.
	ErrForbidden = errors.New("hiring: caller is not the gig owner")
	// ErrNotOpen signals the gig has already been assigned.
	ErrNotOpen = errors.New("hiring: gig is no longer open")
	// ErrBidMismatch signals the bid belongs to a different gig.
	ErrBidMismatch = errors.New("hiring: bid does not belong to this gig")
	// ErrBidNotPending signals the bid is already in a terminal state.
	ErrBidNotPending = errors.New("hiring: bid is not pending")
)

// TxBeginner is the slice of pgxpool.Pool the coordinator needs.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Notifier delivers events to a user's live connections.
type Notifier interface {
	Publish(userID string, event notify.Event) int
}

// HireParams identifies the hiring decision being made.
type HireParams struct {
	OwnerID string
	GigID   string
	BidID   string
}

// HireResult describes the outcome of a committed hire.
type HireResult struct {
	GigID             string
	GigTitle          string
	BidID             string
	HiredFreelancerID string
	Amount            decimal.Decimal
	RejectedCount     int
}

// Coordinator executes the open-to-assigned transition for a gig: one bid
// wins, every other pending bid loses, in a single transaction.
type Coordinator struct {
	pool     TxBeginner
	repo     Repository
	notifier Notifier
	logger   *slog.Logger
}

func NewCoordinator(pool TxBeginner, repo Repository, notifier Notifier, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{pool: pool, repo: repo, notifier: notifier, logger: logger}
}

// Hire accepts the given bid and rejects the gig's other pending bids. The
// gig row is locked FOR UPDATE for the duration, so at most one concurrent
// Hire can observe the gig open; the rest fail with ErrNotOpen. Notification
// fan-out happens after commit and never affects the result.
func (c *Coordinator) Hire(ctx context.Context, params HireParams) (HireResult, error) {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return HireResult{}, fmt.Errorf("hiring: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	gig, err := c.repo.LockGig(ctx, tx, params.GigID)
	if err != nil {
		return HireResult{}, err
	}
	if gig.OwnerID != params.OwnerID {
		return HireResult{}, ErrForbidden
	}
	if gig.Status != "open" {
		return HireResult{}, ErrNotOpen
	}

	winner, err := c.repo.GetBid(ctx, tx, params.BidID)
	if err != nil {
		return HireResult{}, err
	}
	if winner.GigID != gig.ID {
		return HireResult{}, ErrBidMismatch
	}
	if winner.Status != "pending" {
		return HireResult{}, ErrBidNotPending
	}

	if err := c.repo.AssignGig(ctx, tx, gig.ID, winner.FreelancerID); err != nil {
		return HireResult{}, err
	}
	if err := c.repo.MarkBidHired(ctx, tx, winner.ID); err != nil {
		return HireResult{}, err
	}
	losers, err := c.repo.RejectSiblings(ctx, tx, gig.ID, winner.ID)
	if err != nil {
		return HireResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return HireResult{}, fmt.Errorf("hiring: commit tx: %w", err)
	}

	c.fanOut(gig, winner, losers)

	return HireResult{
		GigID:             gig.ID,
		GigTitle:          gig.Title,
		BidID:             winner.ID,
		HiredFreelancerID: winner.FreelancerID,
		Amount:            winner.Amount,
		RejectedCount:     len(losers),
	}, nil
}

// fanOut notifies the winner and the losers. Delivery is best effort:
// offline users simply miss the event.
func (c *Coordinator) fanOut(gig GigRow, winner BidRow, losers []string) {
	if c.notifier == nil {
		return
	}

	c.notifier.Publish(winner.FreelancerID, notify.Event{
		Type: notify.EventHired,
		Payload: notify.HiredPayload{
			GigID:    gig.ID,
			BidID:    winner.ID,
			GigTitle: gig.Title,
			Amount:   winner.Amount,
		},
	})

	for _, freelancerID := range losers {
		c.notifier.Publish(freelancerID, notify.Event{
			Type: notify.EventRejected,
			Payload: notify.RejectedPayload{
				GigID:    gig.ID,
				GigTitle: gig.Title,
			},
		})
	}

	c.logger.Info("hire fan-out complete",
		"gig_id", gig.ID,
		"winner", winner.FreelancerID,
		"rejected", len(losers))
}
