package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// PermissionCache stores effective permission sets in Redis so the
// authorization path avoids a database round trip per request.
type PermissionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPermissionCache constructs a cache with the given entry lifetime.
func NewPermissionCache(client *redis.Client, ttl time.Duration) *PermissionCache {
	return &PermissionCache{client: client, ttl: ttl}
}

func permissionKey(accountID int64) string {
	return "rbac:perms:" + strconv.FormatInt(accountID, 10)
}

// Get returns the cached permission set, ok=false on miss.
func (c *PermissionCache) Get(ctx context.Context, accountID int64) ([]string, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, permissionKey(accountID)).Bytes()
	if err != nil {
		return nil, false
	}
	var perms []string
	if err := json.Unmarshal(payload, &perms); err != nil {
		return nil, false
	}
	return perms, true
}

// Set stores the permission set with the configured TTL.
func (c *PermissionCache) Set(ctx context.Context, accountID int64, perms []string) error {
	if c == nil || c.client == nil {
		return nil
	}
	payload, err := json.Marshal(perms)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, permissionKey(accountID), payload, c.ttl).Err()
}

// Invalidate drops the cached set after a role change.
func (c *PermissionCache) Invalidate(ctx context.Context, accountID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Del(ctx, permissionKey(accountID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
