package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gigportal/bid-service/internal/domain/bids"
	pkgdb "github.com/gigportal/bid-service/pkg/database"
)

// uniqueViolation is the Postgres error code for unique constraint violations
const uniqueViolation = "23505"

const bidColumns = "id, project_id, freelancer_id, amount, message, status, created_at, updated_at"

// PostgresBidRepository implements bids.BidRepository using pgx
type PostgresBidRepository struct {
	pool *pgxpool.Pool // Keep pool for non-transactional operations
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// GetAll retrieves every bid, newest first
func (r *PostgresBidRepository) GetAll(ctx context.Context) ([]*bids.Bid, error) {
	query := fmt.Sprintf(`SELECT %s FROM bids ORDER BY created_at DESC`, bidColumns)
	return r.queryBids(ctx, query)
}

// GetByID retrieves a bid by its ID
func (r *PostgresBidRepository) GetByID(ctx context.Context, bidID uuid.UUID) (*bids.Bid, error) {
	query := fmt.Sprintf(`SELECT %s FROM bids WHERE id = $1`, bidColumns)
	bid, err := r.scanBid(r.pool.QueryRow(ctx, query, bidID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("bid not found")
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return bid, nil
}

// GetByProjectID retrieves all bids placed on a project
func (r *PostgresBidRepository) GetByProjectID(ctx context.Context, projectID uuid.UUID) ([]*bids.Bid, error) {
	query := fmt.Sprintf(`SELECT %s FROM bids WHERE project_id = $1 ORDER BY created_at DESC`, bidColumns)
	return r.queryBids(ctx, query, projectID)
}

// GetByFreelancerID retrieves all bids placed by a freelancer
func (r *PostgresBidRepository) GetByFreelancerID(ctx context.Context, freelancerID uuid.UUID) ([]*bids.Bid, error) {
	query := fmt.Sprintf(`SELECT %s FROM bids WHERE freelancer_id = $1 ORDER BY created_at DESC`, bidColumns)
	return r.queryBids(ctx, query, freelancerID)
}

// GetByProjectAndFreelancer retrieves a freelancer's bid on a specific project
func (r *PostgresBidRepository) GetByProjectAndFreelancer(ctx context.Context, projectID, freelancerID uuid.UUID) (*bids.Bid, error) {
	query := fmt.Sprintf(`SELECT %s FROM bids WHERE project_id = $1 AND freelancer_id = $2`, bidColumns)
	bid, err := r.scanBid(r.pool.QueryRow(ctx, query, projectID, freelancerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return bid, nil
}

// GetPendingByFreelancerID retrieves a freelancer's pending bid, nil if none.
// The scope is deliberately global: one pending bid blocks bidding on every
// project, not just the one it targets.
func (r *PostgresBidRepository) GetPendingByFreelancerID(ctx context.Context, freelancerID uuid.UUID) (*bids.Bid, error) {
	query := fmt.Sprintf(`SELECT %s FROM bids WHERE freelancer_id = $1 AND status = 'pending'`, bidColumns)
	bid, err := r.scanBid(r.pool.QueryRow(ctx, query, freelancerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pending bid: %w", err)
	}
	return bid, nil
}

// Create saves a new bid within a transaction. A concurrent pending bid from
// the same freelancer trips the partial unique index and surfaces as
// bids.ErrBidPending.
func (r *PostgresBidRepository) Create(ctx context.Context, tx pgx.Tx, bid *bids.Bid) error {
	query := `
		INSERT INTO bids (id, project_id, freelancer_id, amount, message, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::bid_status, $7, $8)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.ProjectID,
		bid.FreelancerID,
		bid.Amount,
		bid.Message,
		bid.Status,
		bid.CreatedAt,
		bid.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return bids.ErrBidPending
		}
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// Update replaces an existing bid's mutable fields
func (r *PostgresBidRepository) Update(ctx context.Context, bidID uuid.UUID, bid *bids.Bid) error {
	query := `
		UPDATE bids
		SET amount = $1, message = $2, status = $3::bid_status, updated_at = NOW()
		WHERE id = $4
	`
	result, err := r.pool.Exec(ctx, query, bid.Amount, bid.Message, bid.Status, bidID)
	if err != nil {
		return fmt.Errorf("failed to update bid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("bid not found")
	}
	return nil
}

// MarkAccepted transitions the winning bid to accepted and every other bid on
// the same project to rejected, within a transaction
func (r *PostgresBidRepository) MarkAccepted(ctx context.Context, tx pgx.Tx, bidID, projectID uuid.UUID) error {
	result, err := tx.Exec(ctx, `
		UPDATE bids
		SET status = 'accepted', updated_at = NOW()
		WHERE id = $1 AND project_id = $2
	`, bidID, projectID)
	if err != nil {
		return fmt.Errorf("failed to accept bid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("bid not found")
	}

	_, err = tx.Exec(ctx, `
		UPDATE bids
		SET status = 'rejected', updated_at = NOW()
		WHERE project_id = $1 AND id != $2 AND status = 'pending'
	`, projectID, bidID)
	if err != nil {
		return fmt.Errorf("failed to reject sibling bids: %w", err)
	}
	return nil
}

// Delete removes a bid by its ID
func (r *PostgresBidRepository) Delete(ctx context.Context, bidID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM bids WHERE id = $1`, bidID)
	if err != nil {
		return fmt.Errorf("failed to delete bid: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("bid not found")
	}
	return nil
}

// queryBids runs against any DBTX so reads work on a pool or inside a transaction
func (r *PostgresBidRepository) queryBids(ctx context.Context, query string, args ...any) ([]*bids.Bid, error) {
	return r.queryBidsOn(ctx, r.pool, query, args...)
}

func (r *PostgresBidRepository) queryBidsOn(ctx context.Context, db pkgdb.DBTX, query string, args ...any) ([]*bids.Bid, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	var result []*bids.Bid
	for rows.Next() {
		bid, scanErr := r.scanBid(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", scanErr)
		}
		result = append(result, bid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return result, nil
}

func (r *PostgresBidRepository) scanBid(row pgx.Row) (*bids.Bid, error) {
	var bid bids.Bid
	err := row.Scan(
		&bid.ID,
		&bid.ProjectID,
		&bid.FreelancerID,
		&bid.Amount,
		&bid.Message,
		&bid.Status,
		&bid.CreatedAt,
		&bid.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

var _ bids.BidRepository = (*PostgresBidRepository)(nil)
