package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/printhouse/orders-api/internal/repositories"
)

// Registry wires the Postgres repositories around one connection pool.
type Registry struct {
	db          *gorm.DB
	orders      *OrderRepository
	statuses    *StatusRepository
	transitions *TransitionRepository
	endpoints   *EndpointRepository
	counters    *CounterRepository
	health      repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds every repository on db. extraChecks join the readiness probe.
func NewRegistry(db *gorm.DB, extraChecks ...repositories.DependencyCheck) (*Registry, error) {
	if db == nil {
		return nil, errors.New("postgres registry requires db")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	checks := append([]repositories.DependencyCheck{
		{Name: "postgres", Critical: true, Check: sqlDB.PingContext},
	}, extraChecks...)
	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return &Registry{
		db:          db,
		orders:      NewOrderRepository(db),
		statuses:    NewStatusRepository(db),
		transitions: NewTransitionRepository(db),
		endpoints:   NewEndpointRepository(db),
		counters:    NewCounterRepository(db),
		health:      health,
	}, nil
}

// RunInTx runs fn in one database transaction; nested calls join it.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("postgres: transaction function is nil")
	}
	if inTx(ctx) {
		return fn(ctx)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (r *Registry) Close(context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *Registry) Orders() repositories.OrderRepository           { return r.orders }
func (r *Registry) Statuses() repositories.StatusRepository        { return r.statuses }
func (r *Registry) Transitions() repositories.TransitionRepository { return r.transitions }
func (r *Registry) Endpoints() repositories.EndpointRepository     { return r.endpoints }
func (r *Registry) Counters() repositories.CounterRepository       { return r.counters }
func (r *Registry) Health() repositories.HealthRepository          { return r.health }
