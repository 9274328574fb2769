package stores

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRoleDirectory maps member IDs to their single club role in Redis
// (key: member_role:{memberID}). Session layers read it when building an
// Actor; capability resolution stays in the resolver chain, so the
// directory never stores capabilities.
type RedisRoleDirectory struct {
	client *redis.Client
	keyFmt string // format string, e.g. "member_role:%s"
}

func NewRedisRoleDirectory(client *redis.Client) *RedisRoleDirectory {
	return &RedisRoleDirectory{client: client, keyFmt: "member_role:%s"}
}

func (r *RedisRoleDirectory) key(memberID string) string {
	return fmt.Sprintf(r.keyFmt, memberID)
}

func (r *RedisRoleDirectory) SetRole(ctx context.Context, memberID, role string) error {
	return r.client.Set(ctx, r.key(memberID), role, 0).Err()
}

// Role returns the member's role, or "" when none is recorded. A missing
// key is not an error: members without a directory entry resolve to the
// zero-capability role.
func (r *RedisRoleDirectory) Role(ctx context.Context, memberID string) (string, error) {
	res, err := r.client.Get(ctx, r.key(memberID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return res, nil
}

func (r *RedisRoleDirectory) ClearRole(ctx context.Context, memberID string) error {
	return r.client.Del(ctx, r.key(memberID)).Err()
}
