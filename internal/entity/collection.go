// Package entity implements the generic persistence pattern shared by all
// record types: id-keyed CRUD, cursor pagination and idempotent seeding on
// top of a kv.Store.
package entity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"filescan-service/internal/kv"
	"filescan-service/internal/logger"
	"filescan-service/pkg/errors"
)

type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// Collection is a named set of records of type T stored under their id.
// It is the only access path to a collection's keys; Patch and Mutate
// serialize per id through an internal keyed lock, which is what makes
// their read-modify-write cycles atomic relative to each other.
type Collection[T any] struct {
	store kv.Store
	name  string
	idOf  func(T) string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	log zerolog.Logger
}

func NewCollection[T any](store kv.Store, name string, idOf func(T) string) *Collection[T] {
	return &Collection[T]{
		store: store,
		name:  name,
		idOf:  idOf,
		locks: make(map[string]*sync.Mutex),
		log:   logger.Get().With().Str("collection", name).Logger(),
	}
}

func (c *Collection[T]) Name() string {
	return c.name
}

// lock returns the mutex serializing writes for one id. Entries are kept
// for the life of the process; id cardinality here is the record count,
// not unbounded input.
func (c *Collection[T]) lock(id string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()

	mu, ok := c.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[id] = mu
	}
	return mu
}

// Create stores a new record under its id and returns it unchanged.
// Returns ErrConflict when the id is already taken.
func (c *Collection[T]) Create(ctx context.Context, record T) (T, error) {
	var zero T
	id := c.idOf(record)

	mu := c.lock(id)
	mu.Lock()
	defer mu.Unlock()

	_, exists, err := c.store.Get(ctx, c.name, id)
	if err != nil {
		return zero, errors.NewStorageError("create", err)
	}
	if exists {
		return zero, errors.ErrConflict
	}

	data, err := json.Marshal(record)
	if err != nil {
		return zero, errors.NewStorageError("create", err)
	}
	if err := c.store.Put(ctx, c.name, id, data); err != nil {
		return zero, errors.NewStorageError("create", err)
	}
	return record, nil
}

// Get returns the record or ErrNotFound.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	data, found, err := c.store.Get(ctx, c.name, id)
	if err != nil {
		return zero, errors.NewStorageError("get", err)
	}
	if !found {
		return zero, errors.ErrNotFound
	}

	var record T
	if err := json.Unmarshal(data, &record); err != nil {
		return zero, errors.NewStorageError("get", err)
	}
	return record, nil
}

// Exists never fails; store errors count as absent and are logged.
func (c *Collection[T]) Exists(ctx context.Context, id string) bool {
	_, found, err := c.store.Get(ctx, c.name, id)
	if err != nil {
		c.log.Error().Err(err).Str("id", id).Msg("Existence check failed")
		return false
	}
	return found
}

// Patch shallow-merges fields into the stored record and persists the
// result. A nil value removes the field. Returns ErrNotFound for absent
// ids.
func (c *Collection[T]) Patch(ctx context.Context, id string, fields map[string]interface{}) (T, error) {
	var zero T

	mu := c.lock(id)
	mu.Lock()
	defer mu.Unlock()

	data, found, err := c.store.Get(ctx, c.name, id)
	if err != nil {
		return zero, errors.NewStorageError("patch", err)
	}
	if !found {
		return zero, errors.ErrNotFound
	}

	merged := make(map[string]interface{})
	if err := json.Unmarshal(data, &merged); err != nil {
		return zero, errors.NewStorageError("patch", err)
	}
	for key, value := range fields {
		if value == nil {
			delete(merged, key)
			continue
		}
		merged[key] = value
	}

	next, err := json.Marshal(merged)
	if err != nil {
		return zero, errors.NewStorageError("patch", err)
	}

	var record T
	if err := json.Unmarshal(next, &record); err != nil {
		return zero, errors.NewStorageError("patch", err)
	}
	if err := c.store.Put(ctx, c.name, id, next); err != nil {
		return zero, errors.NewStorageError("patch", err)
	}
	return record, nil
}

// Mutate loads the current record, applies the pure transform and persists
// its result. This is the operation for transitions that depend on prior
// state.
func (c *Collection[T]) Mutate(ctx context.Context, id string, transform func(T) T) (T, error) {
	var zero T

	mu := c.lock(id)
	mu.Lock()
	defer mu.Unlock()

	data, found, err := c.store.Get(ctx, c.name, id)
	if err != nil {
		return zero, errors.NewStorageError("mutate", err)
	}
	if !found {
		return zero, errors.ErrNotFound
	}

	var current T
	if err := json.Unmarshal(data, &current); err != nil {
		return zero, errors.NewStorageError("mutate", err)
	}

	next := transform(current)
	nextData, err := json.Marshal(next)
	if err != nil {
		return zero, errors.NewStorageError("mutate", err)
	}
	if err := c.store.Put(ctx, c.name, id, nextData); err != nil {
		return zero, errors.NewStorageError("mutate", err)
	}
	return next, nil
}

// Delete removes the record and reports whether it existed. Absence is a
// no-op, not an error.
func (c *Collection[T]) Delete(ctx context.Context, id string) (bool, error) {
	existed, err := c.store.Delete(ctx, c.name, id)
	if err != nil {
		return false, errors.NewStorageError("delete", err)
	}
	return existed, nil
}

// DeleteMany removes the given ids and returns how many existed.
func (c *Collection[T]) DeleteMany(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	for _, id := range ids {
		existed, err := c.Delete(ctx, id)
		if err != nil {
			return deleted, err
		}
		if existed {
			deleted++
		}
	}
	return deleted, nil
}

// List returns up to limit records in insertion order starting after the
// cursor, plus an opaque cursor for the next page (empty when exhausted).
func (c *Collection[T]) List(ctx context.Context, cursor string, limit int) (Page[T], error) {
	if limit < 1 {
		limit = 1
	}

	afterSeq, err := decodeCursor(cursor)
	if err != nil {
		return Page[T]{}, err
	}

	entries, err := c.store.Keys(ctx, c.name, afterSeq, limit+1)
	if err != nil {
		return Page[T]{}, errors.NewStorageError("list", err)
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	items := make([]T, 0, len(entries))
	for _, entry := range entries {
		record, err := c.Get(ctx, entry.ID)
		if err != nil {
			if errors.IsNotFound(err) {
				continue // deleted between enumeration and load
			}
			return Page[T]{}, err
		}
		items = append(items, record)
	}

	page := Page[T]{Items: items}
	if hasMore && len(entries) > 0 {
		page.NextCursor = encodeCursor(entries[len(entries)-1].Seq)
	}
	return page, nil
}

// EnsureSeed populates an empty collection with the given records exactly
// once. Calling it on a non-empty collection is a no-op.
func (c *Collection[T]) EnsureSeed(ctx context.Context, records []T) error {
	count, err := c.store.Count(ctx, c.name)
	if err != nil {
		return errors.NewStorageError("seed", err)
	}
	if count > 0 {
		return nil
	}

	for _, record := range records {
		if _, err := c.Create(ctx, record); err != nil {
			if errors.IsConflict(err) {
				continue // concurrent seeding raced us, fine either way
			}
			return err
		}
	}
	c.log.Info().Int("records", len(records)).Msg("Seeded empty collection")
	return nil
}

func encodeCursor(seq int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(seq, 10)))
}

func decodeCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, errors.NewValidationError("cursor", "malformed cursor")
	}
	seq, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, errors.NewValidationError("cursor", "malformed cursor")
	}
	return seq, nil
}
