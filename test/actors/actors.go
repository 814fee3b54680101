package actors

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"gigflow/bid"
	"gigflow/gig"
	"gigflow/hiring"
)

// Bidder repeatedly places bids on the contested gig. Duplicate and
// closed-gig rejections are the expected outcome under contention.
func Bidder(ctx context.Context, svc *bid.Service, gigID, freelancerID string, rng *rand.Rand, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		_, err := svc.Submit(ctx, bid.SubmitParams{
			GigID:        gigID,
			FreelancerID: freelancerID,
			Amount:       decimal.NewFromInt(int64(50 + rng.Intn(500))),
			Message:      "stress bid",
		})
		if err != nil && !expectedBidErr(err) {
			return err
		}
		time.Sleep(time.Duration(10+rng.Intn(30)) * time.Millisecond)
	}
}

func expectedBidErr(err error) bool {
	return errors.Is(err, bid.ErrDuplicate) ||
		errors.Is(err, bid.ErrGigNotOpen) ||
		errors.Is(err, bid.ErrGigNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Hirer races other hirers to accept a random pending bid. Exactly one
// attempt per gig can win; the rest must observe a closed gig.
func Hirer(ctx context.Context, pool *pgxpool.Pool, coord *hiring.Coordinator, gigID, ownerID string, rng *rand.Rand, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		var bidID string
		err := pool.QueryRow(ctx,
			`SELECT id FROM bids WHERE gig_id = $1 AND status = 'pending' ORDER BY random() LIMIT 1`,
			gigID).Scan(&bidID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if _, err := coord.Hire(ctx, hiring.HireParams{OwnerID: ownerID, GigID: gigID, BidID: bidID}); err != nil && !expectedHireErr(err) {
			return err
		}
		time.Sleep(time.Duration(20+rng.Intn(60)) * time.Millisecond)
	}
}

func expectedHireErr(err error) bool {
	return errors.Is(err, hiring.ErrNotOpen) ||
		errors.Is(err, hiring.ErrBidNotPending) ||
		errors.Is(err, hiring.ErrBidNotFound) ||
		errors.Is(err, hiring.ErrGigNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Churner creates short-lived gigs and deletes them again, exercising the
// cascade path while the contested gig is being fought over.
func Churner(ctx context.Context, svc *gig.Service, ownerID string, rng *rand.Rand, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		created, err := svc.Create(ctx, gig.CreateParams{
			OwnerID:     ownerID,
			Title:       "churn gig",
			Description: "transient workload",
			Budget:      "100",
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		time.Sleep(time.Duration(20+rng.Intn(40)) * time.Millisecond)

		if err := svc.Delete(ctx, ownerID, created.ID); err != nil && ctx.Err() == nil {
			return err
		}
	}
}

// Searcher keeps the read path warm while writers churn.
func Searcher(ctx context.Context, svc *gig.Service, rng *rand.Rand, stop <-chan struct{}) error {
	queries := []string{"landing", "gig", "api", "zz"}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		if _, err := svc.Search(ctx, queries[rng.Intn(len(queries))]); err != nil && !errors.Is(err, gig.ErrValidation) && ctx.Err() == nil {
			return err
		}
		if _, err := svc.ListOpen(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		time.Sleep(time.Duration(30+rng.Intn(50)) * time.Millisecond)
	}
}
