package gig

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"gigflow/bid"
)

var (
	// ErrValidation signals malformed input.
	ErrValidation = errors.New("gig: invalid input")
	// ErrForbidden signals the caller does not own the gig.
	ErrForbidden = errors.New("gig: forbidden")
	// ErrNotOpen signals an edit attempted after the gig left the open state.
	ErrNotOpen = errors.New("gig: not open")
)

// substringFallbackMinLen is the shortest query that may trigger the
// substring fallback tier; shorter queries return whatever full-text found.
const substringFallbackMinLen = 3

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// BidViewer answers which bids a given viewer may see on a gig.
type BidViewer interface {
	VisibleForGig(ctx context.Context, gig bid.GigSnapshot, viewerID string) ([]bid.Bid, error)
}

// Service owns the gig lifecycle: creation, owner-gated edits and deletion,
// and the public read paths.
type Service struct {
	pool TxBeginner
	repo Repository
	bids BidViewer
}

func NewService(pool TxBeginner, repo Repository, bids BidViewer) *Service {
	return &Service{
		pool: pool,
		repo: repo,
		bids: bids,
	}
}

// Create posts a new gig with status open.
func (s *Service) Create(ctx context.Context, params CreateParams) (Gig, error) {
	if params.OwnerID == "" {
		return Gig{}, fmt.Errorf("%w: owner id required", ErrValidation)
	}
	params.Title = strings.TrimSpace(params.Title)
	params.Description = strings.TrimSpace(params.Description)
	params.Budget = strings.TrimSpace(params.Budget)

	if utf8.RuneCountInString(params.Title) < 3 {
		return Gig{}, fmt.Errorf("%w: title must be at least 3 characters", ErrValidation)
	}
	if utf8.RuneCountInString(params.Description) < 3 {
		return Gig{}, fmt.Errorf("%w: description must be at least 3 characters", ErrValidation)
	}
	if params.Budget == "" {
		return Gig{}, fmt.Errorf("%w: budget is required", ErrValidation)
	}

	return s.repo.Create(ctx, params)
}

// Update applies a partial patch to an open gig owned by the actor. Nil
// patch fields are untouched, never reset.
func (s *Service) Update(ctx context.Context, actorID, gigID string, patch UpdateParams) (Gig, error) {
	if err := validatePatch(patch); err != nil {
		return Gig{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Gig{}, fmt.Errorf("gig: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.repo.GetForUpdate(ctx, tx, gigID)
	if err != nil {
		return Gig{}, err
	}
	if current.OwnerID != actorID {
		return Gig{}, ErrForbidden
	}
	if current.Status != StatusOpen {
		return Gig{}, ErrNotOpen
	}

	updated, err := s.repo.Update(ctx, tx, gigID, patch)
	if err != nil {
		return Gig{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Gig{}, fmt.Errorf("gig: commit tx: %w", err)
	}
	return updated, nil
}

// Delete removes a gig and, through the store cascade, every bid on it.
func (s *Service) Delete(ctx context.Context, actorID, gigID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("gig: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.repo.GetForUpdate(ctx, tx, gigID)
	if err != nil {
		return err
	}
	if current.OwnerID != actorID {
		return ErrForbidden
	}

	if err := s.repo.Delete(ctx, tx, gigID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("gig: commit delete: %w", err)
	}
	return nil
}

// Details returns the gig plus the bids the viewer is allowed to see:
// everything for the owner, their own bid for another authenticated viewer,
// nothing for an anonymous one.
func (s *Service) Details(ctx context.Context, gigID, viewerID string) (Gig, []bid.Bid, error) {
	g, err := s.repo.GetByID(ctx, gigID)
	if err != nil {
		return Gig{}, nil, err
	}

	bids, err := s.bids.VisibleForGig(ctx, bid.GigSnapshot{
		ID:      g.ID,
		OwnerID: g.OwnerID,
		Title:   g.Title,
		Status:  string(g.Status),
	}, viewerID)
	if err != nil {
		return Gig{}, nil, err
	}

	return g, bids, nil
}

// ListOpen returns every open gig, newest first.
func (s *Service) ListOpen(ctx context.Context) ([]Gig, error) {
	return s.repo.ListOpen(ctx)
}

// Search runs the two-tier lookup over open gigs: ranked full-text first,
// then a substring scan when full-text found nothing and the query is long
// enough to make a scan meaningful.
func (s *Service) Search(ctx context.Context, query string) ([]Gig, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query required", ErrValidation)
	}

	results, err := s.repo.SearchText(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 && utf8.RuneCountInString(query) >= substringFallbackMinLen {
		return s.repo.SearchSubstring(ctx, query)
	}
	return results, nil
}

// ListForOwner returns the owner's gigs with live bid counts, newest first.
func (s *Service) ListForOwner(ctx context.Context, ownerID string) ([]Summary, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id required", ErrValidation)
	}
	return s.repo.ListForOwner(ctx, ownerID)
}

func validatePatch(patch UpdateParams) error {
	if patch.empty() {
		return fmt.Errorf("%w: empty patch", ErrValidation)
	}
	if patch.Title != nil && utf8.RuneCountInString(strings.TrimSpace(*patch.Title)) < 3 {
		return fmt.Errorf("%w: title must be at least 3 characters", ErrValidation)
	}
	if patch.Description != nil && utf8.RuneCountInString(strings.TrimSpace(*patch.Description)) < 3 {
		return fmt.Errorf("%w: description must be at least 3 characters", ErrValidation)
	}
	if patch.Budget != nil && strings.TrimSpace(*patch.Budget) == "" {
		return fmt.Errorf("%w: budget cannot be empty", ErrValidation)
	}
	return nil
}
