package bids

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gigportal/bid-service/pkg/database"
	"github.com/gigportal/bid-service/pkg/events"
)

// OpenBidCommand carries the fields a freelancer submits when bidding
type OpenBidCommand struct {
	ProjectID    uuid.UUID
	FreelancerID uuid.UUID
	Amount       int64
	Message      string
}

// AcceptBidCommand identifies which bid is being accepted for which project.
// Token is the caller's bearer token, forwarded to the project service for
// the downstream update. CallerID is the identity attempting acceptance.
type AcceptBidCommand struct {
	BidID        uuid.UUID
	ProjectID    uuid.UUID
	FreelancerID uuid.UUID
	Token        string
	CallerID     uuid.UUID
}

// InvalidBidError marks a business-rule violation. The whole family maps to
// one client-error status at the boundary; Reason is the message surfaced to
// the caller, so the wording is part of the API.
type InvalidBidError struct {
	Reason string
}

func (e *InvalidBidError) Error() string {
	return e.Reason
}

var (
	ErrInvalidBid      = &InvalidBidError{"Invalid bid"}
	ErrProjectNotFound = &InvalidBidError{"projectId invalid"}
	ErrBidPending      = &InvalidBidError{"User already has a bid pending"}
	ErrNotProjectOwner = &InvalidBidError{"User doesn't have permission to accept this bid"}
	ErrProjectAssigned = &InvalidBidError{"Project cannot be accepted as a freelancer has already been chosen"}
	ErrBidNotCreated   = &InvalidBidError{"Bid was not created"}

	ErrUserNotFound = fmt.Errorf("user not found")
)

// Event routing keys published through the outbox
const (
	EventBidOpened   = "bid.opened"
	EventBidAccepted = "bid.accepted"
)

// BidEvent is the JSON payload of bid lifecycle events
type BidEvent struct {
	BidID        uuid.UUID `json:"bidId"`
	ProjectID    uuid.UUID `json:"projectId"`
	FreelancerID uuid.UUID `json:"freelancerId"`
	Amount       int64     `json:"amount"`
	Timestamp    time.Time `json:"timestamp"`
}

// Service implements the bid lifecycle business rules. It is stateless
// between calls; all state lives in the store and the remote project service.
type Service struct {
	txManager  database.TransactionManager
	bidRepo    BidRepository
	outboxRepo OutboxRepository
	projects   ProjectClient
}

// NewService creates a new bid lifecycle service
func NewService(
	txManager database.TransactionManager,
	bidRepo BidRepository,
	outboxRepo OutboxRepository,
	projects ProjectClient,
) *Service {
	return &Service{
		txManager:  txManager,
		bidRepo:    bidRepo,
		outboxRepo: outboxRepo,
		projects:   projects,
	}
}

// Open places a new bid. The referenced project must exist and the
// freelancer must not already hold a pending bid on any project. The bid and
// its outbox event are saved in the same database transaction.
func (s *Service) Open(ctx context.Context, cmd OpenBidCommand) (*Bid, error) {
	project, err := s.projects.GetProject(ctx, cmd.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch project: %w", err)
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}

	// Friendly pre-check. The partial unique index on pending bids is the
	// authoritative guard against two concurrent opens from one freelancer.
	existing, err := s.bidRepo.GetPendingByFreelancerID(ctx, cmd.FreelancerID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up pending bids: %w", err)
	}
	if existing != nil {
		return nil, ErrBidPending
	}

	now := time.Now()
	bid := &Bid{
		ID:           uuid.New(),
		ProjectID:    cmd.ProjectID,
		FreelancerID: cmd.FreelancerID,
		Amount:       cmd.Amount,
		Message:      cmd.Message,
		Status:       BidStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if createErr := s.bidRepo.Create(ctx, tx, bid); createErr != nil {
		var invalid *InvalidBidError
		if errors.As(createErr, &invalid) {
			return nil, createErr
		}
		return nil, fmt.Errorf("%w: %v", ErrBidNotCreated, createErr)
	}

	if saveErr := s.saveEvent(ctx, tx, EventBidOpened, bid); saveErr != nil {
		return nil, saveErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	return bid, nil
}

// Accept assigns the bid's freelancer to the referenced project. Only the
// project owner may accept, and only while the project is unassigned. The
// remote update's outcome is returned unmodified; on success the bid is
// marked accepted and its sibling bids rejected.
func (s *Service) Accept(ctx context.Context, cmd AcceptBidCommand) (bool, error) {
	// Fresh read on purpose: a cached unassigned project would re-open the
	// window between the assignment check and the remote update.
	project, err := s.projects.GetProjectFresh(ctx, cmd.ProjectID)
	if err != nil {
		return false, fmt.Errorf("failed to fetch project: %w", err)
	}
	if project == nil {
		return false, ErrProjectNotFound
	}

	if project.OwnerID != cmd.CallerID {
		return false, ErrNotProjectOwner
	}

	if project.Assigned() {
		return false, ErrProjectAssigned
	}

	bid, err := s.bidRepo.GetByID(ctx, cmd.BidID)
	if err != nil {
		return false, fmt.Errorf("failed to load bid: %w", err)
	}

	project.FreelancerID = cmd.FreelancerID

	ok, err := s.projects.UpdateProject(ctx, cmd.Token, project)
	if err != nil {
		return false, fmt.Errorf("failed to update project: %w", err)
	}
	if !ok {
		// Remote rejected the assignment; leave local state untouched.
		return false, nil
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if markErr := s.bidRepo.MarkAccepted(ctx, tx, cmd.BidID, cmd.ProjectID); markErr != nil {
		return false, fmt.Errorf("failed to mark bid accepted: %w", markErr)
	}

	if saveErr := s.saveEvent(ctx, tx, EventBidAccepted, bid); saveErr != nil {
		return false, saveErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	return true, nil
}

// saveEvent stores a bid lifecycle event in the outbox within the transaction
func (s *Service) saveEvent(ctx context.Context, tx pgx.Tx, eventType string, bid *Bid) error {
	payload, err := json.Marshal(BidEvent{
		BidID:        bid.ID,
		ProjectID:    bid.ProjectID,
		FreelancerID: bid.FreelancerID,
		Amount:       bid.Amount,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	event := &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		Status:    events.OutboxStatusPending,
		CreatedAt: time.Now(),
	}

	if err := s.outboxRepo.SaveEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}
	return nil
}
