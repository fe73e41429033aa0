package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/johnwmail/pastelite/models"
)

// incrementScript bumps view_count only when the hash exists and returns
// the whole hash, so increment and fetch happen in one server-side step.
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return false
end
redis.call('HINCRBY', KEYS[1], 'view_count', 1)
return redis.call('HGETALL', KEYS[1])
`)

// RedisStore implements PasteStore with one hash per paste under
// "<prefix><id>". Expiring pastes get PEXPIREAT so Redis drops them.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore parses a redis:// URL and verifies the connection
func NewRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisStoreFromClient(client, prefix), nil
}

// NewRedisStoreFromClient wraps an existing client. Prefix may be empty.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "paste:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) Store(ctx context.Context, paste *models.Paste) error {
	key := r.key(paste.ID)
	fields := map[string]interface{}{
		"id":         paste.ID,
		"content":    paste.Content,
		"view_count": paste.ViewCount,
		"created_at": paste.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if paste.MaxViews != nil {
		fields["max_views"] = *paste.MaxViews
	}
	if paste.ExpiresAt != nil {
		fields["expires_at"] = paste.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return ErrDuplicateID
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			if paste.ExpiresAt != nil {
				pipe.PExpireAt(ctx, key, *paste.ExpiresAt)
			}
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		// someone wrote the key between WATCH and EXEC
		return ErrDuplicateID
	}
	return err
}

func (r *RedisStore) Get(ctx context.Context, id string) (*models.Paste, error) {
	fields, err := r.client.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return hashToPaste(fields)
}

func (r *RedisStore) IncrementViewAndFetch(ctx context.Context, id string) (*models.Paste, error) {
	res, err := incrementScript.Run(ctx, r.client, []string{r.key(id)}).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(res)%2 != 0 {
		return nil, fmt.Errorf("unexpected HGETALL reply length %d", len(res))
	}
	fields := make(map[string]string, len(res)/2)
	for i := 0; i < len(res); i += 2 {
		fields[res[i]] = res[i+1]
	}
	return hashToPaste(fields)
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id)).Err()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func hashToPaste(fields map[string]string) (*models.Paste, error) {
	paste := &models.Paste{
		ID:      fields["id"],
		Content: fields["content"],
	}
	if v, ok := fields["view_count"]; ok {
		count, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid view_count %q: %w", v, err)
		}
		paste.ViewCount = count
	}
	if v, ok := fields["max_views"]; ok {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid max_views %q: %w", v, err)
		}
		paste.MaxViews = &limit
	}
	if v, ok := fields["created_at"]; ok {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", v, err)
		}
		paste.CreatedAt = ts
	}
	if v, ok := fields["expires_at"]; ok {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("invalid expires_at %q: %w", v, err)
		}
		paste.ExpiresAt = &ts
	}
	return paste, nil
}
