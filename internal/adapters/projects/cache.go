package projects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gigportal/bid-service/internal/domain/bids"
)

const projectKeyPrefix = "bidsvc:project:"

// projectCacheTTL is short on purpose: a stale unassigned project widens the
// accept race window, so entries expire quickly and are dropped on update.
const projectCacheTTL = 30 * time.Second

// CachedClient wraps a ProjectClient with a redis cache-aside layer. Cache
// failures degrade to the inner client rather than failing the request.
type CachedClient struct {
	inner  bids.ProjectClient
	redis  *redis.Client
	logger *slog.Logger
}

// NewRedisClient builds a redis client from a redis://host:port/db URL
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// NewCachedClient creates a caching decorator around a project client
func NewCachedClient(inner bids.ProjectClient, rdb *redis.Client, logger *slog.Logger) *CachedClient {
	return &CachedClient{
		inner:  inner,
		redis:  rdb,
		logger: logger,
	}
}

// GetProject returns the cached project when present, otherwise fetches from
// the remote service and caches the result. Absence is never cached.
func (c *CachedClient) GetProject(ctx context.Context, projectID uuid.UUID) (*bids.Project, error) {
	key := projectKeyPrefix + projectID.String()

	cached, err := c.redis.Get(ctx, key).Bytes()
	if err == nil {
		var project bids.Project
		if unmarshalErr := json.Unmarshal(cached, &project); unmarshalErr == nil {
			return &project, nil
		}
		// Corrupt entry, fall through to the remote fetch
		c.redis.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("project cache read failed", "error", err)
	}

	project, err := c.inner.GetProject(ctx, projectID)
	if err != nil || project == nil {
		return project, err
	}

	if body, marshalErr := json.Marshal(project); marshalErr == nil {
		if setErr := c.redis.Set(ctx, key, body, projectCacheTTL).Err(); setErr != nil {
			c.logger.Warn("project cache write failed", "error", setErr)
		}
	}

	return project, nil
}

// GetProjectFresh skips the cache entirely and reads from the inner client.
// The result is not cached either: callers asking for a fresh read are about
// to change the project.
func (c *CachedClient) GetProjectFresh(ctx context.Context, projectID uuid.UUID) (*bids.Project, error) {
	return c.inner.GetProjectFresh(ctx, projectID)
}

// UpdateProject delegates to the inner client and invalidates the cached
// entry on success so the assignment is immediately visible
func (c *CachedClient) UpdateProject(ctx context.Context, token string, project *bids.Project) (bool, error) {
	ok, err := c.inner.UpdateProject(ctx, token, project)
	if ok {
		if delErr := c.redis.Del(ctx, projectKeyPrefix+project.ID.String()).Err(); delErr != nil {
			c.logger.Warn("project cache invalidation failed", "error", delErr)
		}
	}
	return ok, err
}

var _ bids.ProjectClient = (*CachedClient)(nil)
