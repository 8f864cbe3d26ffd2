package projects

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/gigportal/bid-service/internal/domain/bids"
)

// projectDTO is the wire shape of the remote project resource. The remote
// service sends an empty freelancerId while the project is unassigned.
type projectDTO struct {
	ID           string `json:"id"`
	OwnerID      string `json:"ownerId"`
	FreelancerID string `json:"freelancerId"`
}

// Client talks to the remote project service over HTTP. The base URL is
// injected at construction; a missing value is a startup failure, never a
// per-request one.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a project service client with the given request timeout
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// GetProject fetches a project by ID. A remote 404 is reported as (nil, nil)
// so callers can translate absence into their own domain failure.
func (c *Client) GetProject(ctx context.Context, projectID uuid.UUID) (*bids.Project, error) {
	url := fmt.Sprintf("%s/api/projects/%s", c.baseURL, projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build project request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch project: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("project service returned status %d", resp.StatusCode)
	}

	var dto projectDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		return nil, fmt.Errorf("failed to decode project: %w", err)
	}

	return dto.toDomain()
}

// GetProjectFresh is the same as GetProject; the plain client has no cache
// to bypass.
func (c *Client) GetProjectFresh(ctx context.Context, projectID uuid.UUID) (*bids.Project, error) {
	return c.GetProject(ctx, projectID)
}

// UpdateProject pushes the updated project using the caller's bearer token.
// The remote outcome is a bool: any non-2xx response is a refusal, not an
// error.
func (c *Client) UpdateProject(ctx context.Context, token string, project *bids.Project) (bool, error) {
	body, err := json.Marshal(fromDomain(project))
	if err != nil {
		return false, fmt.Errorf("failed to encode project: %w", err)
	}

	url := fmt.Sprintf("%s/api/projects/%s", c.baseURL, project.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build project update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to update project: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

func (d projectDTO) toDomain() (*bids.Project, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid project id %q: %w", d.ID, err)
	}
	ownerID, err := uuid.Parse(d.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("invalid project ownerId %q: %w", d.OwnerID, err)
	}

	freelancerID := uuid.Nil
	if d.FreelancerID != "" {
		freelancerID, err = uuid.Parse(d.FreelancerID)
		if err != nil {
			return nil, fmt.Errorf("invalid project freelancerId %q: %w", d.FreelancerID, err)
		}
	}

	return &bids.Project{
		ID:           id,
		OwnerID:      ownerID,
		FreelancerID: freelancerID,
	}, nil
}

func fromDomain(p *bids.Project) projectDTO {
	dto := projectDTO{
		ID:      p.ID.String(),
		OwnerID: p.OwnerID.String(),
	}
	if p.FreelancerID != uuid.Nil {
		dto.FreelancerID = p.FreelancerID.String()
	}
	return dto
}

var _ bids.ProjectClient = (*Client)(nil)
