package memory

import (
	"context"

	"github.com/printhouse/orders-api/internal/repositories"
)

// Registry wires the memory repositories around one Store.
type Registry struct {
	*Store
	orders      *OrderRepository
	statuses    *StatusRepository
	transitions *TransitionRepository
	endpoints   *EndpointRepository
	counters    *CounterRepository
	health      repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds a registry over a fresh store.
func NewRegistry(opts ...Option) *Registry {
	store := NewStore(opts...)
	health, _ := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{Name: "memory", Critical: true, Check: func(context.Context) error { return nil }},
	})
	return &Registry{
		Store:       store,
		orders:      &OrderRepository{store: store},
		statuses:    &StatusRepository{store: store},
		transitions: &TransitionRepository{store: store},
		endpoints:   &EndpointRepository{store: store},
		counters:    &CounterRepository{store: store},
		health:      health,
	}
}

func (r *Registry) Close(context.Context) error { return nil }

func (r *Registry) Orders() repositories.OrderRepository           { return r.orders }
func (r *Registry) Statuses() repositories.StatusRepository        { return r.statuses }
func (r *Registry) Transitions() repositories.TransitionRepository { return r.transitions }
func (r *Registry) Endpoints() repositories.EndpointRepository     { return r.endpoints }
func (r *Registry) Counters() repositories.CounterRepository       { return r.counters }
func (r *Registry) Health() repositories.HealthRepository          { return r.health }
