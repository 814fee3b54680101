package bid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gigflow/notify"
)

var (
	// ErrValidation signals malformed input.
	ErrValidation = errors.New("bid: invalid input")
	// ErrOwnGig signals an owner trying to bid on their own gig.
	ErrOwnGig = errors.New("bid: cannot bid on own gig")
	// ErrGigNotOpen signals the gig already left the open state.
	ErrGigNotOpen = errors.New("bid: gig not open for bidding")
	// ErrForbidden signals the caller may not view these bids.
	ErrForbidden = errors.New("bid: forbidden")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Notifier pushes an event to every live channel of one account.
type Notifier interface {
	Publish(userID string, event notify.Event) int
}

// Service admits new bids and answers bid listings.
type Service struct {
	pool     TxBeginner
	repo     Repository
	notifier Notifier
	logger   *slog.Logger
}

func NewService(pool TxBeginner, repo Repository, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pool:     pool,
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// Submit admits a new bid against an open gig. The whole precondition chain
// and the insert run in one transaction holding a shared lock on the gig
// row, so a submission can never attach to a gig the coordinator is closing
// concurrently.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (Bid, error) {
	if uuid.Validate(params.GigID) != nil {
		return Bid{}, fmt.Errorf("%w: gig id required", ErrValidation)
	}
	if params.FreelancerID == "" {
		return Bid{}, fmt.Errorf("%w: freelancer id required", ErrValidation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Bid{}, fmt.Errorf("bid: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	gig, err := s.repo.LockGigShared(ctx, tx, params.GigID)
	if err != nil {
		return Bid{}, err
	}
	if gig.OwnerID == params.FreelancerID {
		return Bid{}, ErrOwnGig
	}
	if gig.Status != "open" {
		return Bid{}, ErrGigNotOpen
	}

	exists, err := s.repo.ExistsForGig(ctx, tx, params.GigID, params.FreelancerID)
	if err != nil {
		return Bid{}, err
	}
	if exists {
		return Bid{}, ErrDuplicate
	}

	if !params.Amount.IsPositive() {
		return Bid{}, fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}

	created, err := s.repo.Insert(ctx, tx, params)
	if err != nil {
		return Bid{}, err
	}

	freelancerName, err := s.repo.UserName(ctx, tx, params.FreelancerID)
	if err != nil {
		return Bid{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Bid{}, fmt.Errorf("bid: commit tx: %w", err)
	}

	created.FreelancerName = freelancerName

	// Best-effort: the bid is committed whether or not the owner is online.
	if s.notifier != nil {
		s.notifier.Publish(gig.OwnerID, notify.Event{
			Type: notify.EventNewBid,
			Payload: notify.NewBidPayload{
				GigID:          gig.ID,
				GigTitle:       gig.Title,
				FreelancerName: freelancerName,
				Amount:         created.Amount,
			},
		})
	}

	return created, nil
}

// ListForGig returns every bid on the gig. Owner only.
func (s *Service) ListForGig(ctx context.Context, ownerID, gigID string) ([]Bid, error) {
	gig, err := s.repo.GetGig(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if gig.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return s.repo.ListForGig(ctx, gigID)
}

// ListForBidder returns the freelancer's own bids, newest first, each
// annotated with its gig title and status.
func (s *Service) ListForBidder(ctx context.Context, freelancerID string) ([]WithGig, error) {
	if freelancerID == "" {
		return nil, fmt.Errorf("%w: freelancer id required", ErrValidation)
	}
	return s.repo.ListForFreelancer(ctx, freelancerID)
}

// VisibleForGig applies the privacy rule for gig detail reads: the owner
// sees every bid, another authenticated viewer sees only their own, an
// anonymous viewer sees none.
func (s *Service) VisibleForGig(ctx context.Context, gig GigSnapshot, viewerID string) ([]Bid, error) {
	switch {
	case viewerID == "":
		return []Bid{}, nil
	case viewerID == gig.OwnerID:
		return s.repo.ListForGig(ctx, gig.ID)
	default:
		return s.repo.ListVisible(ctx, gig.ID, viewerID)
	}
}
