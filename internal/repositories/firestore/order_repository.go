// Package firestore implements the repositories on Cloud Firestore.
package firestore

import (
	"context"
	"errors"
	"slices"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/printhouse/orders-api/internal/domain"
	pfirestore "github.com/printhouse/orders-api/internal/platform/firestore"
	"github.com/printhouse/orders-api/internal/platform/pagination"
	"github.com/printhouse/orders-api/internal/repositories"
)

const (
	ordersCollection       = "orders"
	orderNumbersCollection = "order_numbers"

	// Firestore caps "in" filters at 30 values.
	maxStatusFilterValues = 30
	// maxScanOrders bounds listings that filter on fields Firestore cannot
	// match server side (SKU and customer name substrings).
	maxScanOrders = 2000
)

// OrderRepository stores orders in "orders" and reserves order numbers in
// "order_numbers" so two orders can never share a number.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.Collection[orderDocument]
	numbers  *pfirestore.Collection[orderNumberDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewCollection[orderDocument](provider, ordersCollection),
		numbers:  pfirestore.NewCollection[orderNumberDocument](provider, orderNumbersCollection),
	}, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	return r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		if err := r.numbers.Create(ctx, orderNumberID(order.OrderNumber), orderNumberDocument{OrderID: order.ID}); err != nil {
			return err
		}
		return r.orders.Create(ctx, order.ID, newOrderDocument(order))
	})
}

func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	return r.orders.Replace(ctx, order.ID, newOrderDocument(order))
}

// Delete removes the order together with its number reservation.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	return r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		doc, err := r.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if err := r.orders.Delete(ctx, orderID); err != nil {
			return err
		}
		err = r.numbers.Delete(ctx, orderNumberID(doc.OrderNumber))
		if isNotFound(err) {
			return nil
		}
		return err
	})
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.toDomain(), nil
}

// FindForUpdate reads through the transaction carried by ctx, which makes
// Firestore hold the document until commit.
func (r *OrderRepository) FindForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r *OrderRepository) FindByNumber(ctx context.Context, number int64) (domain.Order, error) {
	ref, err := r.numbers.Get(ctx, orderNumberID(number))
	if err != nil {
		return domain.Order{}, err
	}
	return r.FindByID(ctx, ref.OrderID)
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if len(filter.StatusIDs) > maxStatusFilterValues {
		return domain.CursorPage[domain.Order]{}, repositories.NewError("orders.list", repositories.ErrorKindUnknown,
			errors.New("too many status filters"))
	}
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, repositories.NewError("orders.list", repositories.ErrorKindUnknown, err)
	}
	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	build := serverFilter(filter)

	if needsClientFilter(filter) {
		docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
			return build(q).Limit(maxScanOrders)
		})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		matched := make([]domain.Order, 0, len(docs))
		for _, doc := range docs {
			order := doc.toDomain()
			if matchesClientFilter(order, filter) {
				matched = append(matched, order)
			}
		}
		start, end, next, _ := pagination.Window(len(matched), filter.Pagination.PageToken, pageSize)
		return domain.CursorPage[domain.Order]{Items: matched[start:end], NextPageToken: next, Total: len(matched)}, nil
	}

	total, err := r.orders.Count(ctx, build)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return build(q).Offset(cursor.Offset).Limit(pageSize)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.toDomain())
	}
	next := ""
	if cursor.Offset+len(items) < int(total) {
		next = pagination.NextToken(cursor.Offset, pageSize, len(items))
	}
	return domain.CursorPage[domain.Order]{Items: items, NextPageToken: next, Total: int(total)}, nil
}

func serverFilter(filter repositories.OrderListFilter) pfirestore.QueryBuilder {
	return func(q firestore.Query) firestore.Query {
		switch len(filter.StatusIDs) {
		case 0:
		case 1:
			q = q.Where("statusId", "==", filter.StatusIDs[0])
		default:
			q = q.Where("statusId", "in", filter.StatusIDs)
		}
		if filter.OrderNumber != nil {
			q = q.Where("orderNumber", "==", *filter.OrderNumber)
		}
		if filter.OwnerID != "" {
			q = q.Where("ownerId", "==", filter.OwnerID)
		}
		if from := filter.IssuedOn.From; from != nil {
			q = q.Where("createdAt", ">=", from.UTC())
		}
		if to := filter.IssuedOn.To; to != nil {
			q = q.Where("createdAt", "<=", to.UTC())
		}
		return q.OrderBy("createdAt", firestore.Desc).OrderBy("id", firestore.Desc)
	}
}

func needsClientFilter(filter repositories.OrderListFilter) bool {
	return strings.TrimSpace(filter.SKU) != "" || strings.TrimSpace(filter.CustomerName) != ""
}

func matchesClientFilter(order domain.Order, filter repositories.OrderListFilter) bool {
	if name := strings.ToLower(strings.TrimSpace(filter.CustomerName)); name != "" &&
		!strings.Contains(strings.ToLower(order.Customer.Name), name) {
		return false
	}
	if sku := strings.ToLower(strings.TrimSpace(filter.SKU)); sku != "" {
		return slices.ContainsFunc(order.Items, func(item domain.OrderItem) bool {
			return strings.Contains(strings.ToLower(item.SKU), sku)
		})
	}
	return true
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
