package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/printhouse/orders-api/internal/platform/firestore"
	"github.com/printhouse/orders-api/internal/repositories"
)

// Registry wires the Firestore repositories around one provider.
type Registry struct {
	provider    *pfirestore.Provider
	orders      *OrderRepository
	statuses    *StatusRepository
	transitions *TransitionRepository
	endpoints   *EndpointRepository
	counters    *CounterRepository
	health      repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds every repository. extraChecks are added to the readiness
// probe next to the Firestore ping.
func NewRegistry(provider *pfirestore.Provider, extraChecks ...repositories.DependencyCheck) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	statuses, err := NewStatusRepository(provider)
	if err != nil {
		return nil, err
	}
	transitions, err := NewTransitionRepository(provider)
	if err != nil {
		return nil, err
	}
	endpoints, err := NewEndpointRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}
	checks := append([]repositories.DependencyCheck{
		{Name: "firestore", Critical: true, Check: provider.Ping},
	}, extraChecks...)
	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return &Registry{
		provider:    provider,
		orders:      orders,
		statuses:    statuses,
		transitions: transitions,
		endpoints:   endpoints,
		counters:    counters,
		health:      health,
	}, nil
}

// RunInTx makes a single attempt: the body may call webhook endpoints, which
// must not be repeated by a Firestore retry.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("firestore: transaction function is nil")
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	}, pfirestore.WithTxAttempts(1))
}

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }

func (r *Registry) Orders() repositories.OrderRepository           { return r.orders }
func (r *Registry) Statuses() repositories.StatusRepository        { return r.statuses }
func (r *Registry) Transitions() repositories.TransitionRepository { return r.transitions }
func (r *Registry) Endpoints() repositories.EndpointRepository     { return r.endpoints }
func (r *Registry) Counters() repositories.CounterRepository       { return r.counters }
func (r *Registry) Health() repositories.HealthRepository          { return r.health }
