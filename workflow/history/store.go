package history

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/agentstudio/internal/cache"
	"github.com/BaSui01/agentstudio/types"
	"go.uber.org/zap"
)

const draftKeyPrefix = "draft:"

// Store persists history stacks as JSON drafts in Redis.
type Store[T any] struct {
	cache  *cache.Manager
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore creates a draft store. A zero ttl uses the cache default.
func NewStore[T any](c *cache.Manager, ttl time.Duration, logger *zap.Logger) *Store[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store[T]{
		cache:  c,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "history_store")),
	}
}

// Save writes the stacks under key, replacing any previous draft.
func (s *Store[T]) Save(ctx context.Context, key string, state State[T]) error {
	if err := s.cache.SetJSON(ctx, draftKeyPrefix+key, state, s.ttl); err != nil {
		return types.NewError(types.ErrStoreUnavailable, "failed to save draft").WithCause(err)
	}
	s.logger.Debug("draft saved", zap.String("key", key), zap.Int("past", len(state.Past)))
	return nil
}

// Load reads the draft stored under key. A missing draft yields a NOT_FOUND
// error.
func (s *Store[T]) Load(ctx context.Context, key string) (State[T], error) {
	var state State[T]
	err := s.cache.GetJSON(ctx, draftKeyPrefix+key, &state)
	if cache.IsCacheMiss(err) {
		return State[T]{}, types.NewNotFoundError(fmt.Sprintf("draft %q not found", key))
	}
	if err != nil {
		return State[T]{}, types.NewError(types.ErrStoreUnavailable, "failed to load draft").WithCause(err)
	}
	return state, nil
}

// Delete removes the draft stored under key.
func (s *Store[T]) Delete(ctx context.Context, key string) error {
	if err := s.cache.Delete(ctx, draftKeyPrefix+key); err != nil {
		return types.NewError(types.ErrStoreUnavailable, "failed to delete draft").WithCause(err)
	}
	return nil
}

// List returns the keys of every stored draft.
func (s *Store[T]) List(ctx context.Context) ([]string, error) {
	keys, err := s.cache.Keys(ctx, draftKeyPrefix+"*")
	if err != nil {
		return nil, types.NewError(types.ErrStoreUnavailable, "failed to list drafts").WithCause(err)
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k[len(draftKeyPrefix):]
	}
	return out, nil
}
