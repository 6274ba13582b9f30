package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"moveout/pkg/errors"
	"moveout/pkg/metrics"
	"moveout/pkg/models"
)

const maxTxAttempts = 3

// RedisOptions configures the Redis-backed store
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps items in a hash and the draft slot in a single key
type RedisStore struct {
	client *redis.Client
	prefix string
}

// OpenRedisStore connects to Redis and initialises the schema marker.
func OpenRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "moveout"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     10,
		MinIdleConns: 1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	s := &RedisStore{client: client, prefix: prefix}

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, s.ioError("open", err, "")
	}
	if err := s.ensureSchema(ctx); err != nil {
		client.Close()
		return nil, err
	}

	log.Info().Str("addr", opts.Addr).Str("prefix", prefix).Msg("Connected to Redis store")
	return s, nil
}

func (s *RedisStore) itemsKey() string  { return s.prefix + ":items" }
func (s *RedisStore) draftKey() string  { return s.prefix + ":draft" }
func (s *RedisStore) schemaKey() string { return s.prefix + ":schema" }

// legacyDraftsKey is the multi-entry drafts hash some older deployments wrote
func (s *RedisStore) legacyDraftsKey() string { return s.prefix + ":drafts" }

func (s *RedisStore) ioError(op string, err error, id string) *errors.AppError {
	metrics.ObserveStoreError(op)
	appErr := errors.ErrStoreIO.WithCause(err).WithContext("op", op)
	if id != "" {
		appErr = appErr.WithContext("id", id)
	}
	return appErr
}

func (s *RedisStore) ensureSchema(ctx context.Context) error {
	if err := s.client.SetNX(ctx, s.schemaKey(), SchemaVersion, 0).Err(); err != nil {
		return s.ioError("open", err, "")
	}
	raw, err := s.client.Get(ctx, s.schemaKey()).Result()
	if err != nil {
		return s.ioError("open", err, "")
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return errors.ErrCorruptRecord.WithCause(err).WithContext("key", s.schemaKey())
	}
	if version > SchemaVersion {
		return errors.ErrSchemaTooNew.
			WithContext("found", version).
			WithContext("supported", SchemaVersion)
	}
	if version < SchemaVersion {
		if err := s.client.Set(ctx, s.schemaKey(), SchemaVersion, 0).Err(); err != nil {
			return s.ioError("open", err, "")
		}
	}
	return nil
}

func decodeItem(raw, id string) (*models.SaleItem, error) {
	var item models.SaleItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		metrics.ObserveStoreError("decode")
		return nil, errors.ErrCorruptRecord.WithCause(err).WithContext("id", id)
	}
	return &item, nil
}

// Put upserts an item
func (s *RedisStore) Put(ctx context.Context, item *models.SaleItem) error {
	if err := checkID(item.ID); err != nil {
		return err
	}
	data, err := json.Marshal(item)
	if err != nil {
		return s.ioError("put", err, item.ID)
	}
	if err := s.client.HSet(ctx, s.itemsKey(), item.ID, data).Err(); err != nil {
		return s.ioError("put", err, item.ID)
	}
	return nil
}

// Get retrieves an item by ID
func (s *RedisStore) Get(ctx context.Context, id string) (*models.SaleItem, error) {
	raw, err := s.client.HGet(ctx, s.itemsKey(), id).Result()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.ErrItemNotFound.WithContext("id", id)
	}
	if err != nil {
		return nil, s.ioError("get", err, id)
	}
	return decodeItem(raw, id)
}

// GetAll returns all items
func (s *RedisStore) GetAll(ctx context.Context) ([]*models.SaleItem, error) {
	all, err := s.client.HGetAll(ctx, s.itemsKey()).Result()
	if err != nil {
		return nil, s.ioError("get_all", err, "")
	}

	items := make([]*models.SaleItem, 0, len(all))
	for id, raw := range all {
		item, err := decodeItem(raw, id)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Update runs fn inside an optimistic WATCH/MULTI transaction
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*models.SaleItem) error) (*models.SaleItem, error) {
	var updated *models.SaleItem

	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, s.itemsKey(), id).Result()
		if stderrors.Is(err, redis.Nil) {
			return errors.ErrItemNotFound.WithContext("id", id)
		}
		if err != nil {
			return s.ioError("update", err, id)
		}
		item, err := decodeItem(raw, id)
		if err != nil {
			return err
		}
		if err := fn(item); err != nil {
			return err
		}
		item.ID = id

		data, err := json.Marshal(item)
		if err != nil {
			return s.ioError("update", err, id)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.itemsKey(), id, data)
			return nil
		})
		if err != nil {
			return err
		}
		updated = item
		return nil
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, s.itemsKey())
		if err == nil {
			return updated, nil
		}
		if stderrors.Is(err, redis.TxFailedErr) {
			// Optimistic lock lost to a concurrent writer
			continue
		}
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, s.ioError("update", err, id)
	}
	return nil, s.ioError("update", redis.TxFailedErr, id)
}

// Delete removes an item
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.HDel(ctx, s.itemsKey(), id).Err(); err != nil {
		return s.ioError("delete", err, id)
	}
	return nil
}

// PutDraft overwrites the draft slot
func (s *RedisStore) PutDraft(ctx context.Context, item *models.SaleItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return s.ioError("put_draft", err, item.ID)
	}
	if err := s.client.Set(ctx, s.draftKey(), data, 0).Err(); err != nil {
		return s.ioError("put_draft", err, item.ID)
	}
	return nil
}

// GetLatestDraft returns the draft slot or nil
func (s *RedisStore) GetLatestDraft(ctx context.Context) (*models.SaleItem, error) {
	raw, err := s.client.Get(ctx, s.draftKey()).Result()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, s.ioError("get_draft", err, "")
	}
	var item models.SaleItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		metrics.ObserveStoreError("decode")
		return nil, errors.ErrCorruptRecord.WithCause(err).WithContext("key", s.draftKey())
	}
	return &item, nil
}

// ClearDrafts deletes the draft slot and any legacy draft entries
func (s *RedisStore) ClearDrafts(ctx context.Context) error {
	if err := s.client.Del(ctx, s.draftKey(), s.legacyDraftsKey()).Err(); err != nil {
		return s.ioError("clear_drafts", err, "")
	}
	return nil
}

// Close closes the Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
