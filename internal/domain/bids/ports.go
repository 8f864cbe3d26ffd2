package bids

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gigportal/bid-service/pkg/events"
)

// BidRepository defines the interface for bid persistence
type BidRepository interface {
	// GetAll retrieves every bid
	GetAll(ctx context.Context) ([]*Bid, error)

	// GetByID retrieves a bid by its ID
	GetByID(ctx context.Context, bidID uuid.UUID) (*Bid, error)

	// GetByProjectID retrieves all bids placed on a project
	GetByProjectID(ctx context.Context, projectID uuid.UUID) ([]*Bid, error)

	// GetByFreelancerID retrieves all bids placed by a freelancer
	GetByFreelancerID(ctx context.Context, freelancerID uuid.UUID) ([]*Bid, error)

	// GetByProjectAndFreelancer retrieves a freelancer's bid on a specific project
	GetByProjectAndFreelancer(ctx context.Context, projectID, freelancerID uuid.UUID) (*Bid, error)

	// GetPendingByFreelancerID retrieves a freelancer's pending bid, nil if none
	GetPendingByFreelancerID(ctx context.Context, freelancerID uuid.UUID) (*Bid, error)

	// Create saves a new bid within a transaction. The bids table carries a
	// partial unique index on (freelancer_id) WHERE status = 'pending', so a
	// concurrent duplicate surfaces as ErrBidPending.
	Create(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// Update replaces an existing bid
	Update(ctx context.Context, bidID uuid.UUID, bid *Bid) error

	// MarkAccepted transitions the winning bid to accepted and every other bid
	// on the same project to rejected, within a transaction
	MarkAccepted(ctx context.Context, tx pgx.Tx, bidID, projectID uuid.UUID) error

	// Delete removes a bid by its ID
	Delete(ctx context.Context, bidID uuid.UUID) error
}

// ProjectClient defines the interface for the remote project service.
// GetProject returns (nil, nil) when the project does not exist so the
// caller can translate absence into a domain failure.
type ProjectClient interface {
	GetProject(ctx context.Context, projectID uuid.UUID) (*Project, error)

	// GetProjectFresh behaves like GetProject but bypasses any caching
	// layer. Accept reads through it: a stale unassigned project must not
	// pass the assignment check.
	GetProjectFresh(ctx context.Context, projectID uuid.UUID) (*Project, error)

	// UpdateProject pushes the updated project using the caller's bearer
	// token. The remote outcome is reported as a bool, not an error.
	UpdateProject(ctx context.Context, token string, project *Project) (bool, error)
}

// OutboxRepository defines the interface for outbox event persistence
type OutboxRepository interface {
	// SaveEvent saves an outbox event within a transaction
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error

	// GetPendingEvents retrieves pending events for processing
	// Uses SELECT FOR UPDATE SKIP LOCKED to prevent race conditions
	GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*events.OutboxEvent, error)

	// UpdateEventStatus updates the status of an event
	UpdateEventStatus(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, status events.OutboxStatus) error
}

// EventPublisher defines the interface for publishing events to a message broker
type EventPublisher interface {
	// Publish publishes a message to the broker
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}
