package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tgaller/triviador-server/internal/model"
)

// snapshotTTL bounds how long a projection outlives its last write, so a
// crashed server does not leave phantom live matches behind.
const snapshotTTL = time.Hour

func snapshotKey(matchID string) string { return "match:" + matchID + ":state" }

const liveSetKey = "matches:live"

// SaveSnapshot writes the live-match projection: the JSON snapshot under a
// TTL plus membership in the live set.
func (c *Client) SaveSnapshot(ctx context.Context, snap *model.MatchSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, snapshotKey(snap.MatchID), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return c.rdb.SAdd(ctx, liveSetKey, snap.MatchID).Err()
}

// GetSnapshot retrieves one match projection, or nil when absent.
func (c *Client) GetSnapshot(ctx context.Context, matchID string) (*model.MatchSnapshot, error) {
	data, err := c.rdb.Get(ctx, snapshotKey(matchID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	var snap model.MatchSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// RemoveSnapshot deletes a match projection and its live-set membership.
func (c *Client) RemoveSnapshot(ctx context.Context, matchID string) error {
	if err := c.rdb.Del(ctx, snapshotKey(matchID)).Err(); err != nil {
		return fmt.Errorf("del snapshot: %w", err)
	}
	return c.rdb.SRem(ctx, liveSetKey, matchID).Err()
}

// LiveMatchIDs returns the ids currently in the live set.
func (c *Client) LiveMatchIDs(ctx context.Context) ([]string, error) {
	ids, err := c.rdb.SMembers(ctx, liveSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("live match ids: %w", err)
	}
	return ids, nil
}
