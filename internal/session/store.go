package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
)

// FileStore keeps the session in a JSON file readable only by the owner.
type FileStore struct {
	path string
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(_ context.Context) (Data, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Data{}, ErrNoSession
	}
	if err != nil {
		return Data{}, err
	}
	var d Data
	if err := json.Unmarshal(data, &d); err != nil {
		return Data{}, fmt.Errorf("decode %s: %w", f.path, err)
	}
	if d.Token == "" {
		return Data{}, ErrNoSession
	}
	return d, nil
}

func (f *FileStore) Save(_ context.Context, d Data) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o600)
}

func (f *FileStore) Delete(_ context.Context) error {
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// RedisStore keeps the session under a Redis key, expiring with the token.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore returns a store using key on client.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = "firmament:session"
	}
	return &RedisStore{client: client, key: key}
}

func (r *RedisStore) Load(ctx context.Context) (Data, error) {
	val, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Data{}, ErrNoSession
	}
	if err != nil {
		return Data{}, err
	}
	var d Data
	if err := json.Unmarshal(val, &d); err != nil {
		return Data{}, fmt.Errorf("decode session: %w", err)
	}
	return d, nil
}

func (r *RedisStore) Save(ctx context.Context, d Data) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if exp, ok := ExpiresAt(d.Token); ok {
		ttl = time.Until(exp)
		if ttl <= 0 {
			return r.Delete(ctx)
		}
	}
	return r.client.Set(ctx, r.key, data, ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
