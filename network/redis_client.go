package network

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v7"
)

// RedisClient caches WorkItemState payloads so workers polling for
// resumable state don't hammer the primary database. The database
// remains the source of truth; every cache entry can be rebuilt from
// it.
type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(address, password string, db int) *RedisClient {
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr:     address,
			Password: password,
			DB:       db,
		}),
	}
}

func (c *RedisClient) Ping() (string, error) {
	return c.client.Ping().Result()
}

// WorkItemStateGet returns the cached state payload for a work item.
// A cache miss returns redis.Nil, which callers treat as "go ask the
// database".
func (c *RedisClient) WorkItemStateGet(workItemID int64) ([]byte, error) {
	key := stateKey(workItemID)
	data, err := c.client.Get(key).Result()
	if err != nil {
		return nil, fmt.Errorf("WorkItemStateGet (%d): %w", workItemID, err)
	}
	return []byte(data), nil
}

// WorkItemStateSave caches the state payload for a work item.
func (c *RedisClient) WorkItemStateSave(workItemID int64, state []byte) error {
	_, err := c.client.Set(stateKey(workItemID), state, 0).Result()
	return err
}

// WorkItemStateDelete evicts the cached payload for a work item.
func (c *RedisClient) WorkItemStateDelete(workItemID int64) error {
	_, err := c.client.Del(stateKey(workItemID)).Result()
	return err
}

// IsCacheMiss returns true if err means the key was not cached.
func IsCacheMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

func stateKey(workItemID int64) string {
	return "state:" + strconv.FormatInt(workItemID, 10)
}
