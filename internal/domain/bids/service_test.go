package bids

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gigportal/bid-service/pkg/events"
)

// fakeTx satisfies pgx.Tx for unit tests; only Commit and Rollback are used
// by the service, the embedded interface panics on anything else.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Tx), args.Error(1)
}

type MockBidRepository struct {
	mock.Mock
}

func (m *MockBidRepository) GetAll(ctx context.Context) ([]*Bid, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Bid), args.Error(1)
}

func (m *MockBidRepository) GetByID(ctx context.Context, bidID uuid.UUID) (*Bid, error) {
	args := m.Called(ctx, bidID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Bid), args.Error(1)
}

func (m *MockBidRepository) GetByProjectID(ctx context.Context, projectID uuid.UUID) ([]*Bid, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Bid), args.Error(1)
}

func (m *MockBidRepository) GetByFreelancerID(ctx context.Context, freelancerID uuid.UUID) ([]*Bid, error) {
	args := m.Called(ctx, freelancerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Bid), args.Error(1)
}

func (m *MockBidRepository) GetByProjectAndFreelancer(ctx context.Context, projectID, freelancerID uuid.UUID) (*Bid, error) {
	args := m.Called(ctx, projectID, freelancerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Bid), args.Error(1)
}

func (m *MockBidRepository) GetPendingByFreelancerID(ctx context.Context, freelancerID uuid.UUID) (*Bid, error) {
	args := m.Called(ctx, freelancerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Bid), args.Error(1)
}

func (m *MockBidRepository) Create(ctx context.Context, tx pgx.Tx, bid *Bid) error {
	args := m.Called(ctx, tx, bid)
	return args.Error(0)
}

func (m *MockBidRepository) Update(ctx context.Context, bidID uuid.UUID, bid *Bid) error {
	args := m.Called(ctx, bidID, bid)
	return args.Error(0)
}

func (m *MockBidRepository) MarkAccepted(ctx context.Context, tx pgx.Tx, bidID, projectID uuid.UUID) error {
	args := m.Called(ctx, tx, bidID, projectID)
	return args.Error(0)
}

func (m *MockBidRepository) Delete(ctx context.Context, bidID uuid.UUID) error {
	args := m.Called(ctx, bidID)
	return args.Error(0)
}

type MockProjectClient struct {
	mock.Mock
}

func (m *MockProjectClient) GetProject(ctx context.Context, projectID uuid.UUID) (*Project, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Project), args.Error(1)
}

func (m *MockProjectClient) GetProjectFresh(ctx context.Context, projectID uuid.UUID) (*Project, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Project), args.Error(1)
}

func (m *MockProjectClient) UpdateProject(ctx context.Context, token string, project *Project) (bool, error) {
	args := m.Called(ctx, token, project)
	return args.Bool(0), args.Error(1)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*events.OutboxEvent, error) {
	args := m.Called(ctx, tx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*events.OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) UpdateEventStatus(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, status events.OutboxStatus) error {
	args := m.Called(ctx, tx, eventID, status)
	return args.Error(0)
}

type serviceMocks struct {
	txManager  *MockTxManager
	bidRepo    *MockBidRepository
	outboxRepo *MockOutboxRepository
	projects   *MockProjectClient
	tx         *fakeTx
}

func newTestService() (*Service, *serviceMocks) {
	m := &serviceMocks{
		txManager:  new(MockTxManager),
		bidRepo:    new(MockBidRepository),
		outboxRepo: new(MockOutboxRepository),
		projects:   new(MockProjectClient),
		tx:         new(fakeTx),
	}
	svc := NewService(m.txManager, m.bidRepo, m.outboxRepo, m.projects)
	return svc, m
}

func TestService_Open(t *testing.T) {
	projectID := uuid.New()
	freelancerID := uuid.New()

	cmd := OpenBidCommand{
		ProjectID:    projectID,
		FreelancerID: freelancerID,
		Amount:       100,
		Message:      "I can do this in two weeks",
	}

	t.Run("fails when the project does not exist", func(t *testing.T) {
		svc, m := newTestService()
		m.projects.On("GetProject", mock.Anything, projectID).Return(nil, nil)

		bid, err := svc.Open(context.Background(), cmd)

		assert.Nil(t, bid)
		assert.ErrorIs(t, err, ErrProjectNotFound)
		var invalid *InvalidBidError
		assert.ErrorAs(t, err, &invalid)
		m.bidRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("fails when the project fetch errors", func(t *testing.T) {
		svc, m := newTestService()
		m.projects.On("GetProject", mock.Anything, projectID).Return(nil, fmt.Errorf("connection refused"))

		_, err := svc.Open(context.Background(), cmd)

		assert.Error(t, err)
		var invalid *InvalidBidError
		assert.False(t, errors.As(err, &invalid))
	})

	t.Run("fails when the freelancer already has a pending bid on any project", func(t *testing.T) {
		// Scope is deliberately global: the existing bid targets a different
		// project and still blocks the new one.
		svc, m := newTestService()
		m.projects.On("GetProject", mock.Anything, projectID).Return(&Project{ID: projectID, OwnerID: uuid.New()}, nil)
		m.bidRepo.On("GetPendingByFreelancerID", mock.Anything, freelancerID).
			Return(&Bid{ID: uuid.New(), ProjectID: uuid.New(), FreelancerID: freelancerID, Status: BidStatusPending}, nil)

		bid, err := svc.Open(context.Background(), cmd)

		assert.Nil(t, bid)
		assert.ErrorIs(t, err, ErrBidPending)
		assert.Equal(t, "User already has a bid pending", err.Error())
		m.bidRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("persists the bid and outbox event on success", func(t *testing.T) {
		svc, m := newTestService()
		m.projects.On("GetProject", mock.Anything, projectID).Return(&Project{ID: projectID, OwnerID: uuid.New()}, nil)
		m.bidRepo.On("GetPendingByFreelancerID", mock.Anything, freelancerID).Return(nil, nil)
		m.txManager.On("BeginTx", mock.Anything).Return(m.tx, nil)
		m.bidRepo.On("Create", mock.Anything, m.tx, mock.AnythingOfType("*bids.Bid")).Return(nil)
		m.outboxRepo.On("SaveEvent", mock.Anything, m.tx, mock.MatchedBy(func(e *events.OutboxEvent) bool {
			return e.EventType == EventBidOpened
		})).Return(nil)

		bid, err := svc.Open(context.Background(), cmd)

		require.NoError(t, err)
		require.NotNil(t, bid)
		assert.NotEqual(t, uuid.Nil, bid.ID)
		assert.Equal(t, projectID, bid.ProjectID)
		assert.Equal(t, freelancerID, bid.FreelancerID)
		assert.Equal(t, int64(100), bid.Amount)
		assert.Equal(t, "I can do this in two weeks", bid.Message)
		assert.Equal(t, BidStatusPending, bid.Status)
		assert.True(t, m.tx.committed)
	})

	t.Run("fails with the pending error when the insert trips the unique index", func(t *testing.T) {
		svc, m := newTestService()
		m.projects.On("GetProject", mock.Anything, projectID).Return(&Project{ID: projectID, OwnerID: uuid.New()}, nil)
		m.bidRepo.On("GetPendingByFreelancerID", mock.Anything, freelancerID).Return(nil, nil)
		m.txManager.On("BeginTx", mock.Anything).Return(m.tx, nil)
		m.bidRepo.On("Create", mock.Anything, m.tx, mock.Anything).Return(ErrBidPending)

		_, err := svc.Open(context.Background(), cmd)

		assert.ErrorIs(t, err, ErrBidPending)
		assert.False(t, m.tx.committed)
	})

	t.Run("fails with a bid-not-created error when the store write fails", func(t *testing.T) {
		svc, m := newTestService()
		m.projects.On("GetProject", mock.Anything, projectID).Return(&Project{ID: projectID, OwnerID: uuid.New()}, nil)
		m.bidRepo.On("GetPendingByFreelancerID", mock.Anything, freelancerID).Return(nil, nil)
		m.txManager.On("BeginTx", mock.Anything).Return(m.tx, nil)
		m.bidRepo.On("Create", mock.Anything, m.tx, mock.Anything).Return(fmt.Errorf("failed to insert bid"))

		_, err := svc.Open(context.Background(), cmd)

		assert.ErrorIs(t, err, ErrBidNotCreated)
		var invalid *InvalidBidError
		assert.ErrorAs(t, err, &invalid)
	})
}

func TestService_Accept(t *testing.T) {
	bidID := uuid.New()
	projectID := uuid.New()
	freelancerID := uuid.New()
	ownerID := uuid.New()
	const token = "token-123"

	cmd := AcceptBidCommand{
		BidID:        bidID,
		ProjectID:    projectID,
		FreelancerID: freelancerID,
		Token:        token,
		CallerID:     ownerID,
	}

	storedBid := &Bid{
		ID:           bidID,
		ProjectID:    projectID,
		FreelancerID: freelancerID,
		Amount:       4200,
		Status:       BidStatusPending,
	}

	t.Run("fails when the project does not exist", func(t *testing.T) {
		svc, m := newTestService()
		m.projects.On("GetProjectFresh", mock.Anything, projectID).Return(nil, nil)

		ok, err := svc.Accept(context.Background(), cmd)

		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrProjectNotFound)
		assert.Equal(t, "projectId invalid", err.Error())
	})

	t.Run("fails when the caller is not the project owner", func(t *testing.T) {
		svc, m := newTestService()
		m.projects.On("GetProjectFresh", mock.Anything, projectID).
			Return(&Project{ID: projectID, OwnerID: uuid.New()}, nil)

		ok, err := svc.Accept(context.Background(), cmd)

		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrNotProjectOwner)
		m.projects.AssertNotCalled(t, "UpdateProject", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("fails when the project already has a freelancer", func(t *testing.T) {
		svc, m := newTestService()
		m.projects.On("GetProjectFresh", mock.Anything, projectID).
			Return(&Project{ID: projectID, OwnerID: ownerID, FreelancerID: uuid.New()}, nil)

		ok, err := svc.Accept(context.Background(), cmd)

		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrProjectAssigned)
		m.projects.AssertNotCalled(t, "UpdateProject", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("fails when the bid cannot be loaded", func(t *testing.T) {
		svc, m := newTestService()
		m.projects.On("GetProjectFresh", mock.Anything, projectID).
			Return(&Project{ID: projectID, OwnerID: ownerID}, nil)
		m.bidRepo.On("GetByID", mock.Anything, bidID).Return(nil, fmt.Errorf("bid not found"))

		ok, err := svc.Accept(context.Background(), cmd)

		assert.False(t, ok)
		assert.Error(t, err)
		m.projects.AssertNotCalled(t, "UpdateProject", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("pushes the assignment and records the acceptance on success", func(t *testing.T) {
		svc, m := newTestService()
		m.projects.On("GetProjectFresh", mock.Anything, projectID).
			Return(&Project{ID: projectID, OwnerID: ownerID}, nil)
		m.bidRepo.On("GetByID", mock.Anything, bidID).Return(storedBid, nil)
		m.projects.On("UpdateProject", mock.Anything, token, mock.MatchedBy(func(p *Project) bool {
			return p.ID == projectID && p.FreelancerID == freelancerID
		})).Return(true, nil).Once()
		m.txManager.On("BeginTx", mock.Anything).Return(m.tx, nil)
		m.bidRepo.On("MarkAccepted", mock.Anything, m.tx, bidID, projectID).Return(nil)
		m.outboxRepo.On("SaveEvent", mock.Anything, m.tx, mock.MatchedBy(func(e *events.OutboxEvent) bool {
			if e.EventType != EventBidAccepted {
				return false
			}
			// The event carries the stored bid, not the command
			var payload BidEvent
			if err := json.Unmarshal(e.Payload, &payload); err != nil {
				return false
			}
			return payload.BidID == bidID && payload.Amount == storedBid.Amount
		})).Return(nil)

		ok, err := svc.Accept(context.Background(), cmd)

		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, m.tx.committed)
		m.projects.AssertNumberOfCalls(t, "UpdateProject", 1)
	})

	t.Run("returns false without local changes when the remote refuses", func(t *testing.T) {
		svc, m := newTestService()
		m.projects.On("GetProjectFresh", mock.Anything, projectID).
			Return(&Project{ID: projectID, OwnerID: ownerID}, nil)
		m.bidRepo.On("GetByID", mock.Anything, bidID).Return(storedBid, nil)
		m.projects.On("UpdateProject", mock.Anything, token, mock.Anything).Return(false, nil)

		ok, err := svc.Accept(context.Background(), cmd)

		assert.NoError(t, err)
		assert.False(t, ok)
		m.bidRepo.AssertNotCalled(t, "MarkAccepted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("propagates remote update failures", func(t *testing.T) {
		svc, m := newTestService()
		m.projects.On("GetProjectFresh", mock.Anything, projectID).
			Return(&Project{ID: projectID, OwnerID: ownerID}, nil)
		m.bidRepo.On("GetByID", mock.Anything, bidID).Return(storedBid, nil)
		m.projects.On("UpdateProject", mock.Anything, token, mock.Anything).
			Return(false, fmt.Errorf("gateway timeout"))

		ok, err := svc.Accept(context.Background(), cmd)

		assert.False(t, ok)
		assert.Error(t, err)
		m.bidRepo.AssertNotCalled(t, "MarkAccepted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
