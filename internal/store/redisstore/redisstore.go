// Package redisstore keeps the session data in Redis: one hash per image,
// one list of JSON operations per image and one hash of notes per image.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/maax3v3/vorocal/internal/oplog"
	"github.com/maax3v3/vorocal/internal/store"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "vc:"

// Store is the Redis implementation of store.Store.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

// New wraps an existing client. An empty keyPrefix selects DefaultPrefix.
func New(client *redis.Client, keyPrefix string) *Store {
	if client == nil {
		panic("redis client cannot be nil for redisstore")
	}
	if keyPrefix == "" {
		keyPrefix = DefaultPrefix
	}
	return &Store{client: client, keyPrefix: keyPrefix}
}

// Options configures Open.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Open connects to Redis and checks the connection with PING.
func Open(ctx context.Context, opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis: ping %s: %w", store.ErrUnavailable, opts.Addr, err)
	}
	return New(client, opts.Prefix), nil
}

func (s *Store) imagesKey() string { return s.keyPrefix + "images" }

func (s *Store) imageKey(id string) string { return fmt.Sprintf("%simage:%s", s.keyPrefix, id) }

func (s *Store) opsKey(imageID string) string {
	return fmt.Sprintf("%simage:%s:ops", s.keyPrefix, imageID)
}

func (s *Store) notesKey(imageID string) string {
	return fmt.Sprintf("%simage:%s:notes", s.keyPrefix, imageID)
}

func (s *Store) noteIndexKey() string { return s.keyPrefix + "note-index" }

func wrap(err error, format string, args ...any) error {
	return fmt.Errorf("%w: redis: %s: %w", store.ErrUnavailable, fmt.Sprintf(format, args...), err)
}

func (s *Store) PutImage(ctx context.Context, img store.Image) error {
	ms := img.SavedAt.UnixMilli()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.imageKey(img.ID), "blob", img.Blob, "mime", img.MimeType, "saved", ms)
		pipe.ZAdd(ctx, s.imagesKey(), &redis.Z{Score: float64(ms), Member: img.ID})
		return nil
	})
	if err != nil {
		return wrap(err, "put image %s", img.ID)
	}
	return nil
}

func (s *Store) Images(ctx context.Context) ([]store.Image, error) {
	// ZREVRANGE breaks score ties by member in reverse lexical order.
	ids, err := s.client.ZRevRange(ctx, s.imagesKey(), 0, -1).Result()
	if err != nil {
		return nil, wrap(err, "list images")
	}
	out := make([]store.Image, 0, len(ids))
	for _, id := range ids {
		fields, err := s.client.HGetAll(ctx, s.imageKey(id)).Result()
		if err != nil {
			return nil, wrap(err, "read image %s", id)
		}
		if len(fields) == 0 {
			continue
		}
		ms, err := strconv.ParseInt(fields["saved"], 10, 64)
		if err != nil {
			return nil, wrap(err, "parse savedAt of image %s", id)
		}
		out = append(out, store.Image{
			ID:       id,
			Blob:     []byte(fields["blob"]),
			MimeType: fields["mime"],
			SavedAt:  time.UnixMilli(ms).UTC(),
		})
	}
	return out, nil
}

func (s *Store) ClearImages(ctx context.Context) error {
	ids, err := s.client.ZRange(ctx, s.imagesKey(), 0, -1).Result()
	if err != nil {
		return wrap(err, "list images")
	}
	keys := []string{s.imagesKey()}
	for _, id := range ids {
		keys = append(keys, s.imageKey(id))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return wrap(err, "clear images")
	}
	return nil
}

func (s *Store) AppendOperation(ctx context.Context, imageID string, op oplog.Operation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("redis: encode operation: %w", err)
	}
	if err := s.client.RPush(ctx, s.opsKey(imageID), data).Err(); err != nil {
		return wrap(err, "append operation for image %s", imageID)
	}
	return nil
}

func (s *Store) OperationsByImage(ctx context.Context, imageID string) ([]oplog.Operation, error) {
	raw, err := s.client.LRange(ctx, s.opsKey(imageID), 0, -1).Result()
	if err != nil {
		return nil, wrap(err, "operations for image %s", imageID)
	}
	out := make([]oplog.Operation, 0, len(raw))
	for i, r := range raw {
		var op oplog.Operation
		if err := json.Unmarshal([]byte(r), &op); err != nil {
			return nil, wrap(err, "decode operation %d of image %s", i, imageID)
		}
		out = append(out, op)
	}
	return out, nil
}

func (s *Store) ClearOperationsByImage(ctx context.Context, imageID string) error {
	if err := s.client.Del(ctx, s.opsKey(imageID)).Err(); err != nil {
		return wrap(err, "clear operations for image %s", imageID)
	}
	return nil
}

// ReplaceOperations rewrites the operation list inside MULTI/EXEC.
func (s *Store) ReplaceOperations(ctx context.Context, imageID string, ops []oplog.Operation) error {
	values := make([]interface{}, len(ops))
	for i, op := range ops {
		data, err := json.Marshal(op)
		if err != nil {
			return fmt.Errorf("redis: encode operation: %w", err)
		}
		values[i] = data
	}
	key := s.opsKey(imageID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
		}
		return nil
	})
	if err != nil {
		return wrap(err, "replace operations for image %s (%d ops)", imageID, len(ops))
	}
	return nil
}

func (s *Store) AppendNote(ctx context.Context, n store.Note) (string, error) {
	n.ID = uuid.NewString()
	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("redis: encode note: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.notesKey(n.ImageID), n.ID, data)
		pipe.HSet(ctx, s.noteIndexKey(), n.ID, n.ImageID)
		return nil
	})
	if err != nil {
		return "", wrap(err, "append note for image %s", n.ImageID)
	}
	return n.ID, nil
}

func (s *Store) NotesByImage(ctx context.Context, imageID string) ([]store.Note, error) {
	raw, err := s.client.HGetAll(ctx, s.notesKey(imageID)).Result()
	if err != nil {
		return nil, wrap(err, "notes for image %s", imageID)
	}
	out := make([]store.Note, 0, len(raw))
	for id, r := range raw {
		var n store.Note
		if err := json.Unmarshal([]byte(r), &n); err != nil {
			return nil, wrap(err, "decode note %s", id)
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) DeleteNote(ctx context.Context, id string) error {
	imageID, err := s.client.HGet(ctx, s.noteIndexKey(), id).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("note %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return wrap(err, "look up note %s", id)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.notesKey(imageID), id)
		pipe.HDel(ctx, s.noteIndexKey(), id)
		return nil
	})
	if err != nil {
		return wrap(err, "delete note %s", id)
	}
	return nil
}

func (s *Store) ClearNotesByImage(ctx context.Context, imageID string) error {
	key := s.notesKey(imageID)
	ids, err := s.client.HKeys(ctx, key).Result()
	if err != nil {
		return wrap(err, "list notes of image %s", imageID)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(ids) > 0 {
			pipe.HDel(ctx, s.noteIndexKey(), ids...)
		}
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return wrap(err, "clear notes of image %s", imageID)
	}
	return nil
}

// Close closes the client; later calls fail with store.ErrUnavailable.
func (s *Store) Close() error {
	return s.client.Close()
}
