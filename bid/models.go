package bid

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusHired    Status = "hired"
	StatusRejected Status = "rejected"
)

// Bid mirrors the bids table. FreelancerName and FreelancerEmail are
// attached on owner-facing reads and empty elsewhere.
type Bid struct {
	ID              string
	GigID           string
	FreelancerID    string
	FreelancerName  string
	FreelancerEmail string
	Amount          decimal.Decimal
	Message         string
	Status          Status
	CreatedAt       time.Time
}

// WithGig annotates a bid with its parent gig for the bidder dashboard.
type WithGig struct {
	Bid
	GigTitle  string
	GigStatus string
}

// GigSnapshot is the slice of a gig row the admission checks need.
type GigSnapshot struct {
	ID      string
	OwnerID string
	Title   string
	Status  string
}

// SubmitParams contains the validated input for placing a bid.
type SubmitParams struct {
	GigID        string
	FreelancerID string
	Amount       decimal.Decimal
	Message      string
}
