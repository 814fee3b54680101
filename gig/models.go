package gig

import "time"

type Status string

const (
	StatusOpen     Status = "open"
	StatusAssigned Status = "assigned"
)

// Gig mirrors the gigs table. OwnerName is attached on reads that join the
// owner account and empty elsewhere.
type Gig struct {
	ID                string
	Title             string
	Description       string
	Budget            string
	OwnerID           string
	OwnerName         string
	Status            Status
	HiredFreelancerID *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Summary is the owner-dashboard projection of a gig. BidCount is aggregated
// live from the bids table, never stored.
type Summary struct {
	ID        string
	Title     string
	Status    Status
	Budget    string
	BidCount  int
	CreatedAt time.Time
}

// CreateParams contains the validated input for posting a gig.
type CreateParams struct {
	OwnerID     string
	Title       string
	Description string
	Budget      string
}

// UpdateParams is a partial patch: nil fields are left untouched. Status is
// deliberately absent; the only open->assigned path is the hiring
// coordinator.
type UpdateParams struct {
	Title       *string
	Description *string
	Budget      *string
}

func (p UpdateParams) empty() bool {
	return p.Title == nil && p.Description == nil && p.Budget == nil
}
