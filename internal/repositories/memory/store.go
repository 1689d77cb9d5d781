// Package memory is a process-local repository backend. Units of work run on a
// private copy of the state that replaces the committed state only when the
// work succeeds, so rollback is simply discarding the copy.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	domain "github.com/printhouse/orders-api/internal/domain"
	"github.com/printhouse/orders-api/internal/repositories"
)

type state struct {
	orders      map[string]domain.Order
	statuses    map[int]domain.Status
	transitions []domain.TransitionRecord
	endpoints   map[string]domain.NotificationEndpoint
	counters    map[string]int64
}

func newState() *state {
	return &state{
		orders:    make(map[string]domain.Order),
		statuses:  make(map[int]domain.Status),
		endpoints: make(map[string]domain.NotificationEndpoint),
		counters:  make(map[string]int64),
	}
}

func (s *state) clone() *state {
	out := &state{
		orders:      make(map[string]domain.Order, len(s.orders)),
		statuses:    maps.Clone(s.statuses),
		transitions: slices.Clone(s.transitions),
		endpoints:   maps.Clone(s.endpoints),
		counters:    maps.Clone(s.counters),
	}
	for id, order := range s.orders {
		out.orders[id] = cloneOrder(order)
	}
	return out
}

// tx is the working copy owned by one unit of work.
type tx struct {
	mu    sync.Mutex
	state *state
}

type txKey struct{}

// Store holds the committed state. Writers are serialised by writeMu, which a
// unit of work holds from begin to commit; this doubles as the row lock that
// FindForUpdate promises.
type Store struct {
	writeMu sync.Mutex

	mu        sync.RWMutex
	committed *state

	fault func(op string) error
}

// Option customises the store.
type Option func(*Store)

// WithFaults installs a hook consulted before every write. A non-nil error
// fails that write, which lets tests exercise rollback paths.
func WithFaults(fault func(op string) error) Option {
	return func(s *Store) { s.fault = fault }
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{committed: newState()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

var _ repositories.UnitOfWork = (*Store)(nil)

// RunInTx implements repositories.UnitOfWork. Nested calls join the outer unit of work.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("memory: transaction function is nil")
	}
	if _, ok := ctx.Value(txKey{}).(*tx); ok {
		return fn(ctx)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	work := &tx{state: s.committed.clone()}
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, work)); err != nil {
		return err
	}

	s.mu.Lock()
	s.committed = work.state
	s.mu.Unlock()
	return nil
}

// read runs fn against the transaction copy when ctx carries one, else against
// the committed state.
func (s *Store) read(ctx context.Context, fn func(*state) error) error {
	if work, ok := ctx.Value(txKey{}).(*tx); ok {
		work.mu.Lock()
		defer work.mu.Unlock()
		return fn(work.state)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.committed)
}

// write runs fn inside the current unit of work, or in an implicit one.
func (s *Store) write(ctx context.Context, op string, fn func(*state) error) error {
	if s.fault != nil {
		if err := s.fault(op); err != nil {
			return repositories.NewError(op, repositories.ErrorKindUnavailable, err)
		}
	}
	return s.RunInTx(ctx, func(ctx context.Context) error {
		work := ctx.Value(txKey{}).(*tx)
		work.mu.Lock()
		defer work.mu.Unlock()
		return fn(work.state)
	})
}

func cloneOrder(order domain.Order) domain.Order {
	order.Items = slices.Clone(order.Items)
	for i := range order.Items {
		order.Items[i].Attributes = maps.Clone(order.Items[i].Attributes)
	}
	order.Metadata = maps.Clone(order.Metadata)
	return order
}
