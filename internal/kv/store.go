// Package kv provides the keyed store the entity collections persist into:
// key→value storage with insertion-ordered key enumeration per named
// collection.
package kv

import "context"

// Entry is one enumerated key. Seq is the collection-local insertion
// sequence number; it is assigned once when the id is first written and
// survives deletes of neighbouring ids, so enumeration resumed strictly
// after a Seq never repeats or skips records that existed across both
// calls.
type Entry struct {
	Seq int64
	ID  string
}

type Store interface {
	// Get returns the stored value and whether the id exists.
	Get(ctx context.Context, collection, id string) ([]byte, bool, error)
	// Put upserts the value. First writes of an id append it to the
	// collection's enumeration order.
	Put(ctx context.Context, collection, id string, value []byte) error
	// Delete removes the id and reports whether it existed.
	Delete(ctx context.Context, collection, id string) (bool, error)
	// Keys enumerates up to limit ids with Seq > afterSeq in insertion
	// order. afterSeq 0 starts from the beginning.
	Keys(ctx context.Context, collection string, afterSeq int64, limit int) ([]Entry, error)
	// Count returns the number of ids in the collection.
	Count(ctx context.Context, collection string) (int64, error)
}
