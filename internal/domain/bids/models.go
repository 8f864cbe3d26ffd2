package bids

import (
	"time"

	"github.com/google/uuid"
)

// BidStatus is the lifecycle state of a bid
type BidStatus string

const (
	BidStatusPending  BidStatus = "pending"
	BidStatusAccepted BidStatus = "accepted"
	BidStatusRejected BidStatus = "rejected"
)

// Bid represents one freelancer's offer on a project
type Bid struct {
	ID           uuid.UUID `db:"id"`
	ProjectID    uuid.UUID `db:"project_id"`
	FreelancerID uuid.UUID `db:"freelancer_id"`
	Amount       int64     `db:"amount"`
	Message      string    `db:"message"`
	Status       BidStatus `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// Project is the subset of the remote project resource this service observes.
// FreelancerID is uuid.Nil until the owner has accepted a bid.
type Project struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      uuid.UUID `json:"ownerId"`
	FreelancerID uuid.UUID `json:"freelancerId"`
}

// Assigned reports whether the project already has an accepted freelancer
func (p *Project) Assigned() bool {
	return p.FreelancerID != uuid.Nil
}
