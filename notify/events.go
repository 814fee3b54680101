package notify

import "github.com/shopspring/decimal"

type EventType string

const (
	EventNewBid   EventType = "new_bid"
	EventHired    EventType = "hired"
	EventRejected EventType = "rejected"
)

// Event is a single notification delivered to a subscriber channel.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// NewBidPayload notifies a gig owner that a freelancer placed a bid.
type NewBidPayload struct {
	GigID          string          `json:"gigId"`
	GigTitle       string          `json:"gigTitle"`
	FreelancerName string          `json:"freelancerName"`
	Amount         decimal.Decimal `json:"amount"`
}

// HiredPayload notifies the accepted freelancer. It is the only event that
// carries a bid amount.
type HiredPayload struct {
	GigID    string          `json:"gigId"`
	BidID    string          `json:"bidId"`
	GigTitle string          `json:"gigTitle"`
	Amount   decimal.Decimal `json:"amount"`
}

// RejectedPayload notifies a losing bidder that the gig closed. Competing
// amounts are never disclosed.
type RejectedPayload struct {
	GigID    string `json:"gigId"`
	GigTitle string `json:"gigTitle"`
}
