package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisLPosArgs = redis.LPosArgs{}

func isNil(err error) bool { return errors.Is(err, redis.Nil) }

// admittedTTL bounds how long an admission ticket stays valid when the
// computer never comes back for it.
const admittedTTL = 15 * time.Minute

// EnqueueComputer appends the computer to the admission queue. Re-queueing
// an already waiting computer is a no-op so its position is preserved.
func (s *Store) EnqueueComputer(ctx context.Context, computerID int64) error {
	added, err := s.client.SAdd(ctx, keyAdmissionMembers, computerID).Result()
	if err != nil {
		return fmt.Errorf("enqueue computer: %w", err)
	}
	if added == 0 {
		return nil
	}
	if err := s.client.RPush(ctx, keyAdmissionQueue, computerID).Err(); err != nil {
		return fmt.Errorf("enqueue computer: %w", err)
	}
	return nil
}

// DequeueComputers pops up to n computers from the queue head.
func (s *Store) DequeueComputers(ctx context.Context, n int) ([]int64, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := s.client.LPopCount(ctx, keyAdmissionQueue, n).Result()
	if err != nil {
		if isNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue computers: %w", err)
	}

	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse queued id %s: %w", v, err)
		}
		out = append(out, id)
	}
	if len(out) > 0 {
		members := make([]any, len(out))
		for i, id := range out {
			members[i] = id
		}
		if err := s.client.SRem(ctx, keyAdmissionMembers, members...).Err(); err != nil {
			return nil, fmt.Errorf("dequeue computers: %w", err)
		}
	}
	return out, nil
}

// AdmitComputers grants the given computers a time-bounded clearance to
// sync.
func (s *Store) AdmitComputers(ctx context.Context, computerIDs []int64) error {
	if len(computerIDs) == 0 {
		return nil
	}
	members := make([]any, len(computerIDs))
	for i, id := range computerIDs {
		members[i] = id
	}

	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, keyAdmissionAdmitted, members...)
	pipe.Expire(ctx, keyAdmissionAdmitted, admittedTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("admit computers: %w", err)
	}
	return nil
}

// ConsumeAdmission redeems a computer's clearance. Returns true exactly
// once per admission.
func (s *Store) ConsumeAdmission(ctx context.Context, computerID int64) (bool, error) {
	removed, err := s.client.SRem(ctx, keyAdmissionAdmitted, computerID).Result()
	if err != nil {
		return false, fmt.Errorf("consume admission: %w", err)
	}
	return removed > 0, nil
}

// QueueLength reports how many computers are waiting.
func (s *Store) QueueLength(ctx context.Context) (int64, error) {
	n, err := s.client.LLen(ctx, keyAdmissionQueue).Result()
	if err != nil {
		return 0, fmt.Errorf("read queue length: %w", err)
	}
	return n, nil
}

// QueuePosition reports the 0-based slot of the computer in the queue, or
// -1 when it is not waiting.
func (s *Store) QueuePosition(ctx context.Context, computerID int64) (int64, error) {
	pos, err := s.client.LPos(ctx, keyAdmissionQueue, strconv.FormatInt(computerID, 10), redisLPosArgs).Result()
	if err != nil {
		if isNil(err) {
			return -1, nil
		}
		return 0, fmt.Errorf("read queue position: %w", err)
	}
	return pos, nil
}
