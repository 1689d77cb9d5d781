package memory

import (
	"context"
	"maps"
	"slices"
	"strings"

	domain "github.com/printhouse/orders-api/internal/domain"
	"github.com/printhouse/orders-api/internal/repositories"
)

// StatusRepository implements repositories.StatusRepository.
type StatusRepository struct {
	store *Store
}

var _ repositories.StatusRepository = (*StatusRepository)(nil)

func (r *StatusRepository) Get(ctx context.Context, statusID int) (domain.Status, error) {
	var out domain.Status
	err := r.store.read(ctx, func(st *state) error {
		status, ok := st.statuses[statusID]
		if !ok {
			return repositories.NotFound("statuses.get", statusID)
		}
		out = status
		return nil
	})
	return out, err
}

func (r *StatusRepository) List(ctx context.Context, activeOnly bool) ([]domain.Status, error) {
	var out []domain.Status
	err := r.store.read(ctx, func(st *state) error {
		for _, status := range st.statuses {
			if activeOnly && !status.Active {
				continue
			}
			out = append(out, status)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.Status) int {
		if a.Rank != b.Rank {
			return a.Rank - b.Rank
		}
		return a.ID - b.ID
	})
	return out, err
}

func (r *StatusRepository) Upsert(ctx context.Context, status domain.Status) error {
	return r.store.write(ctx, "statuses.upsert", func(st *state) error {
		st.statuses[status.ID] = status
		return nil
	})
}

// TransitionRepository implements repositories.TransitionRepository.
type TransitionRepository struct {
	store *Store
}

var _ repositories.TransitionRepository = (*TransitionRepository)(nil)

func (r *TransitionRepository) Append(ctx context.Context, record domain.TransitionRecord) error {
	return r.store.write(ctx, "transitions.append", func(st *state) error {
		for _, existing := range st.transitions {
			if existing.ID == record.ID {
				return repositories.Conflict("transitions.append", record.ID)
			}
		}
		record.ExtraData = maps.Clone(record.ExtraData)
		st.transitions = append(st.transitions, record)
		return nil
	})
}

func (r *TransitionRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.TransitionRecord, error) {
	var out []domain.TransitionRecord
	err := r.store.read(ctx, func(st *state) error {
		for _, record := range st.transitions {
			if record.OrderID == orderID {
				record.ExtraData = maps.Clone(record.ExtraData)
				out = append(out, record)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.TransitionRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out, err
}

// EndpointRepository implements repositories.EndpointRepository.
type EndpointRepository struct {
	store *Store
}

var _ repositories.EndpointRepository = (*EndpointRepository)(nil)

func (r *EndpointRepository) List(ctx context.Context, activeOnly bool) ([]domain.NotificationEndpoint, error) {
	var out []domain.NotificationEndpoint
	err := r.store.read(ctx, func(st *state) error {
		for _, endpoint := range st.endpoints {
			if activeOnly && !endpoint.Active {
				continue
			}
			out = append(out, endpoint)
		}
		return nil
	})
	slices.SortFunc(out, func(a, b domain.NotificationEndpoint) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, err
}

func (r *EndpointRepository) FindByID(ctx context.Context, endpointID string) (domain.NotificationEndpoint, error) {
	var out domain.NotificationEndpoint
	err := r.store.read(ctx, func(st *state) error {
		endpoint, ok := st.endpoints[endpointID]
		if !ok {
			return repositories.NotFound("endpoints.get", endpointID)
		}
		out = endpoint
		return nil
	})
	return out, err
}

func (r *EndpointRepository) Insert(ctx context.Context, endpoint domain.NotificationEndpoint) error {
	return r.store.write(ctx, "endpoints.insert", func(st *state) error {
		if _, exists := st.endpoints[endpoint.ID]; exists {
			return repositories.Conflict("endpoints.insert", endpoint.ID)
		}
		st.endpoints[endpoint.ID] = endpoint
		return nil
	})
}

func (r *EndpointRepository) Update(ctx context.Context, endpoint domain.NotificationEndpoint) error {
	return r.store.write(ctx, "endpoints.update", func(st *state) error {
		if _, exists := st.endpoints[endpoint.ID]; !exists {
			return repositories.NotFound("endpoints.update", endpoint.ID)
		}
		st.endpoints[endpoint.ID] = endpoint
		return nil
	})
}

func (r *EndpointRepository) Delete(ctx context.Context, endpointID string) error {
	return r.store.write(ctx, "endpoints.delete", func(st *state) error {
		if _, exists := st.endpoints[endpointID]; !exists {
			return repositories.NotFound("endpoints.delete", endpointID)
		}
		delete(st.endpoints, endpointID)
		return nil
	})
}

// CounterRepository implements repositories.CounterRepository.
type CounterRepository struct {
	store *Store
}

var _ repositories.CounterRepository = (*CounterRepository)(nil)

func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if step <= 0 {
		step = 1
	}
	var next int64
	err := r.store.write(ctx, "counters.next", func(st *state) error {
		st.counters[counterID] += step
		next = st.counters[counterID]
		return nil
	})
	return next, err
}
