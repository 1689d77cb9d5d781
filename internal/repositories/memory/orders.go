package memory

import (
	"context"
	"slices"
	"strings"

	domain "github.com/printhouse/orders-api/internal/domain"
	"github.com/printhouse/orders-api/internal/platform/pagination"
	"github.com/printhouse/orders-api/internal/repositories"
)

// OrderRepository implements repositories.OrderRepository.
type OrderRepository struct {
	store *Store
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	return r.store.write(ctx, "orders.insert", func(st *state) error {
		if _, exists := st.orders[order.ID]; exists {
			return repositories.Conflict("orders.insert", order.ID)
		}
		for _, existing := range st.orders {
			if existing.OrderNumber == order.OrderNumber {
				return repositories.Conflict("orders.insert", order.OrderNumber)
			}
		}
		st.orders[order.ID] = cloneOrder(order)
		return nil
	})
}

func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	return r.store.write(ctx, "orders.update", func(st *state) error {
		if _, exists := st.orders[order.ID]; !exists {
			return repositories.NotFound("orders.update", order.ID)
		}
		st.orders[order.ID] = cloneOrder(order)
		return nil
	})
}

func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	return r.store.write(ctx, "orders.delete", func(st *state) error {
		if _, exists := st.orders[orderID]; !exists {
			return repositories.NotFound("orders.delete", orderID)
		}
		delete(st.orders, orderID)
		return nil
	})
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	var out domain.Order
	err := r.store.read(ctx, func(st *state) error {
		order, ok := st.orders[orderID]
		if !ok {
			return repositories.NotFound("orders.get", orderID)
		}
		out = cloneOrder(order)
		return nil
	})
	return out, err
}

// FindForUpdate reads the order. Inside a unit of work the store-wide writer
// lock is already held, which is at least as strong as a row lock.
func (r *OrderRepository) FindForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r *OrderRepository) FindByNumber(ctx context.Context, number int64) (domain.Order, error) {
	var out domain.Order
	err := r.store.read(ctx, func(st *state) error {
		for _, order := range st.orders {
			if order.OrderNumber == number {
				out = cloneOrder(order)
				return nil
			}
		}
		return repositories.NotFound("orders.get_by_number", number)
	})
	return out, err
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	var matched []domain.Order
	err := r.store.read(ctx, func(st *state) error {
		for _, order := range st.orders {
			if matchesFilter(order, filter) {
				matched = append(matched, cloneOrder(order))
			}
		}
		return nil
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	slices.SortFunc(matched, func(a, b domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	start, end, next, err := pagination.Window(len(matched), filter.Pagination.PageToken, filter.Pagination.PageSize)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, repositories.NewError("orders.list", repositories.ErrorKindUnknown, err)
	}
	return domain.CursorPage[domain.Order]{
		Items:         matched[start:end],
		NextPageToken: next,
		Total:         len(matched),
	}, nil
}

func matchesFilter(order domain.Order, filter repositories.OrderListFilter) bool {
	if len(filter.StatusIDs) > 0 && !slices.Contains(filter.StatusIDs, order.StatusID) {
		return false
	}
	if filter.OrderNumber != nil && order.OrderNumber != *filter.OrderNumber {
		return false
	}
	if filter.OwnerID != "" && order.OwnerID != filter.OwnerID {
		return false
	}
	if name := strings.ToLower(strings.TrimSpace(filter.CustomerName)); name != "" &&
		!strings.Contains(strings.ToLower(order.Customer.Name), name) {
		return false
	}
	if sku := strings.ToLower(strings.TrimSpace(filter.SKU)); sku != "" {
		found := slices.ContainsFunc(order.Items, func(item domain.OrderItem) bool {
			return strings.Contains(strings.ToLower(item.SKU), sku)
		})
		if !found {
			return false
		}
	}
	if from := filter.IssuedOn.From; from != nil && order.CreatedAt.Before(*from) {
		return false
	}
	if to := filter.IssuedOn.To; to != nil && order.CreatedAt.After(*to) {
		return false
	}
	return true
}
