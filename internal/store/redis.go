package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// maxTxAttempts bounds the optimistic retry loop in RunTransaction.
	// When exhausted the transaction reports committed=false instead of
	// spinning forever under contention.
	maxTxAttempts = 16

	changeChannelSuffix = ":changes"
)

// RedisStore is a Redis-backed implementation of Store. Records are
// plain string keys holding JSON; RunTransaction uses WATCH/MULTI/EXEC
// optimistic concurrency and Listen rides on pub/sub.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds connection details for the Redis backend.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "pasar"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}, nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(path string) string {
	return s.keyPrefix + ":" + path
}

func (s *RedisStore) path(key string) string {
	return strings.TrimPrefix(key, s.keyPrefix+":")
}

// Get reads the record at path.
func (s *RedisStore) Get(ctx context.Context, path string, out any) error {
	data, err := s.client.Get(ctx, s.key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return decode(data, out)
}

// List scans for all records one level below parent.
func (s *RedisStore) List(ctx context.Context, parent string, out any) error {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.key(parent)+"/*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if _, ok := childOf(parent, s.path(key)); ok {
			keys = append(keys, key)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan %s: %w", parent, err)
	}
	if len(keys) == 0 {
		return decodeList(nil, out)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return fmt.Errorf("failed to read children of %s: %w", parent, err)
	}
	records := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue // key expired between SCAN and MGET
		}
		records = append(records, json.RawMessage(str))
	}
	return decodeList(records, out)
}

// Set writes the record at path and publishes the change.
func (s *RedisStore) Set(ctx context.Context, path string, value any) error {
	record, err := encode(value)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(path), []byte(record), 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	s.publishChange(ctx, path, record)
	return nil
}

// UpdateFields merges fields into the record at path via an optimistic
// transaction so concurrent partial updates do not clobber each other.
func (s *RedisStore) UpdateFields(ctx context.Context, path string, fields map[string]any) error {
	committed, err := s.RunTransaction(ctx, path, func(current json.RawMessage) (json.RawMessage, error) {
		if current == nil {
			return nil, ErrNotFound
		}
		return mergeFields(current, fields)
	})
	if err != nil {
		return err
	}
	if !committed {
		return fmt.Errorf("failed to update %s: too many conflicting writers", path)
	}
	return nil
}

// Remove deletes the record at path.
func (s *RedisStore) Remove(ctx context.Context, path string) error {
	if err := s.client.Del(ctx, s.key(path)).Err(); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// GenerateID returns a new unique child id.
func (s *RedisStore) GenerateID(ctx context.Context, parent string) (string, error) {
	return uuid.New().String(), nil
}

// RunTransaction runs fn under WATCH on the record's key, retrying on
// optimistic conflicts up to maxTxAttempts.
func (s *RedisStore) RunTransaction(ctx context.Context, path string, fn TxFunc) (bool, error) {
	key := s.key(path)
	var written json.RawMessage

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				current = nil
			} else if err != nil {
				return err
			}

			next, err := fn(current)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, []byte(next), 0)
				return nil
			})
			written = next
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue // another writer got there first, retry
		}
		if err != nil {
			return false, err
		}
		s.publishChange(ctx, path, written)
		return true, nil
	}
	return false, nil
}

type changeEvent struct {
	Path   string          `json:"path"`
	Record json.RawMessage `json:"record"`
}

func (s *RedisStore) changeChannel() string {
	return s.keyPrefix + changeChannelSuffix
}

func (s *RedisStore) publishChange(ctx context.Context, path string, record json.RawMessage) {
	payload, err := json.Marshal(changeEvent{Path: path, Record: record})
	if err != nil {
		return
	}
	// Change publication is best-effort; a failed publish never fails the
	// write that triggered it.
	if err := s.client.Publish(ctx, s.changeChannel(), payload).Err(); err != nil {
		log.Printf("Warning: failed to publish change for %s: %v", path, err)
	}
}

// Listen subscribes fn to writes under parent via the store's pub/sub
// change channel. The subscription lives until cancel is called or ctx
// is done.
func (s *RedisStore) Listen(ctx context.Context, parent string, fn ChangeFunc) (func(), error) {
	sub := s.client.Subscribe(ctx, s.changeChannel())
	// Force the subscription to be established before returning.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to change channel: %w", err)
	}

	done := make(chan struct{})
	go func() {
		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev changeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				if underneath(parent, ev.Path) {
					fn(ev.Path, ev.Record)
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		close(done)
		sub.Close()
	}, nil
}
