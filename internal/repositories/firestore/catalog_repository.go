package firestore

import (
	"context"
	"errors"
	"slices"

	"cloud.google.com/go/firestore"

	domain "github.com/printhouse/orders-api/internal/domain"
	pfirestore "github.com/printhouse/orders-api/internal/platform/firestore"
	"github.com/printhouse/orders-api/internal/repositories"
)

const (
	statusesCollection    = "statuses"
	transitionsCollection = "order_transitions"
	endpointsCollection   = "webhook_endpoints"
)

// StatusRepository keeps one document per status keyed by its numeric id.
type StatusRepository struct {
	statuses *pfirestore.Collection[statusDocument]
}

var _ repositories.StatusRepository = (*StatusRepository)(nil)

func NewStatusRepository(provider *pfirestore.Provider) (*StatusRepository, error) {
	if provider == nil {
		return nil, errors.New("status repository requires firestore provider")
	}
	return &StatusRepository{statuses: pfirestore.NewCollection[statusDocument](provider, statusesCollection)}, nil
}

func (r *StatusRepository) Get(ctx context.Context, id int) (domain.Status, error) {
	doc, err := r.statuses.Get(ctx, statusID(id))
	if err != nil {
		return domain.Status{}, err
	}
	return domain.Status(doc), nil
}

// List reads the whole catalog; it is small enough that filtering and ordering
// locally avoids a composite index.
func (r *StatusRepository) List(ctx context.Context, activeOnly bool) ([]domain.Status, error) {
	docs, err := r.statuses.Query(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Status, 0, len(docs))
	for _, doc := range docs {
		if activeOnly && !doc.Active {
			continue
		}
		out = append(out, domain.Status(doc))
	}
	slices.SortFunc(out, func(a, b domain.Status) int {
		if a.Rank != b.Rank {
			return a.Rank - b.Rank
		}
		return a.ID - b.ID
	})
	return out, nil
}

func (r *StatusRepository) Upsert(ctx context.Context, status domain.Status) error {
	status.CreatedAt = status.CreatedAt.UTC()
	status.UpdatedAt = status.UpdatedAt.UTC()
	return r.statuses.Set(ctx, statusID(status.ID), statusDocument(status))
}

// TransitionRepository appends audit records to "order_transitions". Records
// are created with Create so an id can never be overwritten.
type TransitionRepository struct {
	transitions *pfirestore.Collection[transitionDocument]
}

var _ repositories.TransitionRepository = (*TransitionRepository)(nil)

func NewTransitionRepository(provider *pfirestore.Provider) (*TransitionRepository, error) {
	if provider == nil {
		return nil, errors.New("transition repository requires firestore provider")
	}
	return &TransitionRepository{transitions: pfirestore.NewCollection[transitionDocument](provider, transitionsCollection)}, nil
}

func (r *TransitionRepository) Append(ctx context.Context, record domain.TransitionRecord) error {
	return r.transitions.Create(ctx, record.ID, newTransitionDocument(record))
}

func (r *TransitionRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.TransitionRecord, error) {
	docs, err := r.transitions.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderId", "==", orderID)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.TransitionRecord, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	sortByCreatedDesc(out)
	return out, nil
}

// EndpointRepository stores webhook subscribers.
type EndpointRepository struct {
	endpoints *pfirestore.Collection[endpointDocument]
}

var _ repositories.EndpointRepository = (*EndpointRepository)(nil)

func NewEndpointRepository(provider *pfirestore.Provider) (*EndpointRepository, error) {
	if provider == nil {
		return nil, errors.New("endpoint repository requires firestore provider")
	}
	return &EndpointRepository{endpoints: pfirestore.NewCollection[endpointDocument](provider, endpointsCollection)}, nil
}

// List never joins the caller's transaction. Dispatch reads the subscribers
// after the order update has been staged, and Firestore forbids reads after
// writes inside a transaction.
func (r *EndpointRepository) List(ctx context.Context, activeOnly bool) ([]domain.NotificationEndpoint, error) {
	docs, err := r.endpoints.Query(pfirestore.WithoutTransaction(ctx), func(q firestore.Query) firestore.Query {
		if activeOnly {
			q = q.Where("active", "==", true)
		}
		return q.OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.NotificationEndpoint, 0, len(docs))
	for _, doc := range docs {
		out = append(out, domain.NotificationEndpoint(doc))
	}
	return out, nil
}

func (r *EndpointRepository) FindByID(ctx context.Context, endpointID string) (domain.NotificationEndpoint, error) {
	doc, err := r.endpoints.Get(ctx, endpointID)
	if err != nil {
		return domain.NotificationEndpoint{}, err
	}
	return domain.NotificationEndpoint(doc), nil
}

func (r *EndpointRepository) Insert(ctx context.Context, endpoint domain.NotificationEndpoint) error {
	return r.endpoints.Create(ctx, endpoint.ID, endpointDocument(endpoint))
}

func (r *EndpointRepository) Update(ctx context.Context, endpoint domain.NotificationEndpoint) error {
	return r.endpoints.Replace(ctx, endpoint.ID, endpointDocument(endpoint))
}

func (r *EndpointRepository) Delete(ctx context.Context, endpointID string) error {
	return r.endpoints.Delete(ctx, endpointID)
}
