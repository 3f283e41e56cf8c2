// Package registry holds call state behind an injectable store
// abstraction, so handlers stay oblivious to whether records live in
// process memory, Redis or Postgres.
package registry

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("registry: call not found")

// Store is the persistence contract for call records.
//
// Update applies fn to the stored record atomically per call identifier;
// fn must be quick and side-effect free (it may run more than once under
// optimistic backends). Slow work such as extraction belongs outside,
// serialized by the orchestrator's per-call critical section.
type Store interface {
	Put(ctx context.Context, rec CallRecord) error
	Get(ctx context.Context, callID string) (CallRecord, bool, error)
	Update(ctx context.Context, callID string, fn func(*CallRecord) error) (CallRecord, error)
	List(ctx context.Context) (map[string]CallRecord, error)
}
