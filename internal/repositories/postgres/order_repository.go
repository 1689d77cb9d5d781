package postgres

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/printhouse/orders-api/internal/domain"
	"github.com/printhouse/orders-api/internal/platform/pagination"
	"github.com/printhouse/orders-api/internal/repositories"
)

// OrderRepository stores orders in the orders table. The unique index on
// order_number enforces one order per number.
type OrderRepository struct {
	db *gorm.DB
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	model := toOrderModel(order)
	return wrapError("orders.insert", conn(ctx, r.db).Create(&model).Error)
}

func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	model := toOrderModel(order)
	result := conn(ctx, r.db).Model(&OrderModel{ID: order.ID}).Select("*").Omit("ID", "CreatedAt").Updates(model)
	if result.Error != nil {
		return wrapError("orders.update", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.NotFound("orders.update", order.ID)
	}
	return nil
}

func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	result := conn(ctx, r.db).Where("id = ?", orderID).Delete(&OrderModel{})
	if result.Error != nil {
		return wrapError("orders.delete", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.NotFound("orders.delete", orderID)
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	var model OrderModel
	if err := conn(ctx, r.db).Where("id = ?", orderID).Take(&model).Error; err != nil {
		return domain.Order{}, wrapError("orders.get", err)
	}
	return model.toDomain(), nil
}

// FindForUpdate takes a row lock (SELECT ... FOR UPDATE) that lasts until the
// surrounding unit of work ends. Outside one it is a plain read.
func (r *OrderRepository) FindForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	if !inTx(ctx) {
		return r.FindByID(ctx, orderID)
	}
	var model OrderModel
	err := conn(ctx, r.db).Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", orderID).Take(&model).Error
	if err != nil {
		return domain.Order{}, wrapError("orders.get_for_update", err)
	}
	return model.toDomain(), nil
}

func (r *OrderRepository) FindByNumber(ctx context.Context, number int64) (domain.Order, error) {
	var model OrderModel
	if err := conn(ctx, r.db).Where("order_number = ?", number).Take(&model).Error; err != nil {
		return domain.Order{}, wrapError("orders.get_by_number", err)
	}
	return model.toDomain(), nil
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, repositories.NewError("orders.list", repositories.ErrorKindUnknown, err)
	}
	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}

	query := applyOrderFilter(conn(ctx, r.db).Model(&OrderModel{}), filter).Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return domain.CursorPage[domain.Order]{}, wrapError("orders.count", err)
	}

	var models []OrderModel
	err = query.Order("created_at DESC").Order("id DESC").Offset(cursor.Offset).Limit(pageSize).Find(&models).Error
	if err != nil {
		return domain.CursorPage[domain.Order]{}, wrapError("orders.list", err)
	}
	items := make([]domain.Order, 0, len(models))
	for _, model := range models {
		items = append(items, model.toDomain())
	}
	next := ""
	if cursor.Offset+len(items) < int(total) {
		next = pagination.NextToken(cursor.Offset, pageSize, len(items))
	}
	return domain.CursorPage[domain.Order]{Items: items, NextPageToken: next, Total: int(total)}, nil
}

func applyOrderFilter(query *gorm.DB, filter repositories.OrderListFilter) *gorm.DB {
	if len(filter.StatusIDs) > 0 {
		query = query.Where("status_id IN ?", filter.StatusIDs)
	}
	if filter.OrderNumber != nil {
		query = query.Where("order_number = ?", *filter.OrderNumber)
	}
	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if name := strings.TrimSpace(filter.CustomerName); name != "" {
		query = query.Where("customer->>'name' ILIKE ?", "%"+escapeLike(name)+"%")
	}
	if sku := strings.TrimSpace(filter.SKU); sku != "" {
		query = query.Where("EXISTS (SELECT 1 FROM jsonb_array_elements(items) AS item WHERE item->>'sku' ILIKE ?)", "%"+escapeLike(sku)+"%")
	}
	if from := filter.IssuedOn.From; from != nil {
		query = query.Where("created_at >= ?", from.UTC())
	}
	if to := filter.IssuedOn.To; to != nil {
		query = query.Where("created_at <= ?", to.UTC())
	}
	return query
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}
