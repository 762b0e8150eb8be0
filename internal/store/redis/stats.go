package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatsTTL bounds how long a day's counter hash survives. Dashboards read
// recent days; anything older lives in the sqlite event tables.
const StatsTTL = 35 * 24 * time.Hour

// Store handles the redis-backed sync-side state.
type Store struct {
	client *redis.Client
}

// NewStore creates a redis store on an established client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// RecordSync bumps the daily counters for one completed sync session.
// Implements the sync handler's Stats collaborator.
func (s *Store) RecordSync(ctx context.Context, computerID, projectID int64, ok bool) error {
	key := SyncStatsKey(time.Now())

	pipe := s.client.Pipeline()
	pipe.HIncrBy(ctx, key, "total", 1)
	pipe.HIncrBy(ctx, key, fmt.Sprintf("project:%d", projectID), 1)
	if !ok {
		pipe.HIncrBy(ctx, key, "failed", 1)
	}
	pipe.Expire(ctx, key, StatsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record sync counters: %w", err)
	}
	return nil
}

// SyncCounters returns the counter hash for one calendar day.
func (s *Store) SyncCounters(ctx context.Context, day time.Time) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, SyncStatsKey(day)).Result()
	if err != nil {
		return nil, fmt.Errorf("read sync counters: %w", err)
	}

	out := make(map[string]int64, len(raw))
	for field, val := range raw {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse counter %s: %w", field, err)
		}
		out[field] = n
	}
	return out, nil
}

// SetDeploymentResult moves the computer into the deployment's ok or error
// set, removing it from the opposite one.
func (s *Store) SetDeploymentResult(ctx context.Context, deploymentID, computerID int64, ok bool) error {
	okKey, errKey := DeploymentOKKey(deploymentID), DeploymentErrorKey(deploymentID)
	add, rem := okKey, errKey
	if !ok {
		add, rem = errKey, okKey
	}

	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, add, computerID)
	pipe.SRem(ctx, rem, computerID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set deployment result: %w", err)
	}
	return nil
}

// DeploymentResults returns the ok and error computer sets of a deployment.
func (s *Store) DeploymentResults(ctx context.Context, deploymentID int64) (okIDs, errIDs []int64, err error) {
	okIDs, err = s.members(ctx, DeploymentOKKey(deploymentID))
	if err != nil {
		return nil, nil, err
	}
	errIDs, err = s.members(ctx, DeploymentErrorKey(deploymentID))
	if err != nil {
		return nil, nil, err
	}
	return okIDs, errIDs, nil
}

// ClearDeployment drops both result sets, used when a deployment is
// removed or rebuilt.
func (s *Store) ClearDeployment(ctx context.Context, deploymentID int64) error {
	err := s.client.Del(ctx, DeploymentOKKey(deploymentID), DeploymentErrorKey(deploymentID)).Err()
	if err != nil {
		return fmt.Errorf("clear deployment sets: %w", err)
	}
	return nil
}

func (s *Store) members(ctx context.Context, key string) ([]int64, error) {
	raw, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read set %s: %w", key, err)
	}
	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse member %s: %w", v, err)
		}
		out = append(out, n)
	}
	return out, nil
}
