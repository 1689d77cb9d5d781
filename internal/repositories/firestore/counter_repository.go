package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/printhouse/orders-api/internal/platform/firestore"
	"github.com/printhouse/orders-api/internal/repositories"
)

const countersCollection = "counters"

// CounterRepository hands out sequence numbers from documents in "counters".
type CounterRepository struct {
	provider *pfirestore.Provider
	counters *pfirestore.Collection[counterDocument]
	now      func() time.Time
}

var _ repositories.CounterRepository = (*CounterRepository)(nil)

func NewCounterRepository(provider *pfirestore.Provider) (*CounterRepository, error) {
	if provider == nil {
		return nil, errors.New("counter repository requires firestore provider")
	}
	return &CounterRepository{
		provider: provider,
		counters: pfirestore.NewCollection[counterDocument](provider, countersCollection),
		now:      time.Now,
	}, nil
}

// Next increments counterID by step (1 when step <= 0) and returns the new
// value. Inside a unit of work the increment commits or rolls back with it.
func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, repositories.NewError("counters.next", repositories.ErrorKindUnknown, errors.New("counter id is required"))
	}
	if step <= 0 {
		step = 1
	}

	var next int64
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		doc, err := r.counters.Get(ctx, id)
		if err != nil && !isNotFound(err) {
			return err
		}
		doc.CurrentValue += step
		doc.UpdatedAt = r.now().UTC()
		next = doc.CurrentValue
		return r.counters.Set(ctx, id, doc)
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}
