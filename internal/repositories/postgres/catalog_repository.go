package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/printhouse/orders-api/internal/domain"
	"github.com/printhouse/orders-api/internal/repositories"
)

// StatusRepository stores the status catalog.
type StatusRepository struct {
	db *gorm.DB
}

var _ repositories.StatusRepository = (*StatusRepository)(nil)

func NewStatusRepository(db *gorm.DB) *StatusRepository { return &StatusRepository{db: db} }

func (r *StatusRepository) Get(ctx context.Context, statusID int) (domain.Status, error) {
	var model StatusModel
	if err := conn(ctx, r.db).Where("id = ?", statusID).Take(&model).Error; err != nil {
		return domain.Status{}, wrapError("statuses.get", err)
	}
	return model.toDomain(), nil
}

func (r *StatusRepository) List(ctx context.Context, activeOnly bool) ([]domain.Status, error) {
	query := conn(ctx, r.db).Order("rank ASC").Order("id ASC")
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var models []StatusModel
	if err := query.Find(&models).Error; err != nil {
		return nil, wrapError("statuses.list", err)
	}
	out := make([]domain.Status, 0, len(models))
	for _, model := range models {
		out = append(out, model.toDomain())
	}
	return out, nil
}

func (r *StatusRepository) Upsert(ctx context.Context, status domain.Status) error {
	model := StatusModel(status)
	err := conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "description", "color", "rank", "active", "updated_at"}),
	}).Create(&model).Error
	return wrapError("statuses.upsert", err)
}

// TransitionRepository is the append-only order_transitions table.
type TransitionRepository struct {
	db *gorm.DB
}

var _ repositories.TransitionRepository = (*TransitionRepository)(nil)

func NewTransitionRepository(db *gorm.DB) *TransitionRepository { return &TransitionRepository{db: db} }

func (r *TransitionRepository) Append(ctx context.Context, record domain.TransitionRecord) error {
	model := toTransitionModel(record)
	return wrapError("transitions.append", conn(ctx, r.db).Create(&model).Error)
}

func (r *TransitionRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.TransitionRecord, error) {
	var models []TransitionModel
	err := conn(ctx, r.db).Where("order_id = ?", orderID).Order("created_at DESC").Order("id DESC").Find(&models).Error
	if err != nil {
		return nil, wrapError("transitions.list", err)
	}
	out := make([]domain.TransitionRecord, 0, len(models))
	for _, model := range models {
		out = append(out, model.toDomain())
	}
	return out, nil
}

// EndpointRepository stores webhook subscribers.
type EndpointRepository struct {
	db *gorm.DB
}

var _ repositories.EndpointRepository = (*EndpointRepository)(nil)

func NewEndpointRepository(db *gorm.DB) *EndpointRepository { return &EndpointRepository{db: db} }

func (r *EndpointRepository) List(ctx context.Context, activeOnly bool) ([]domain.NotificationEndpoint, error) {
	query := conn(ctx, r.db).Order("created_at ASC").Order("id ASC")
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var models []EndpointModel
	if err := query.Find(&models).Error; err != nil {
		return nil, wrapError("endpoints.list", err)
	}
	out := make([]domain.NotificationEndpoint, 0, len(models))
	for _, model := range models {
		out = append(out, model.toDomain())
	}
	return out, nil
}

func (r *EndpointRepository) FindByID(ctx context.Context, endpointID string) (domain.NotificationEndpoint, error) {
	var model EndpointModel
	if err := conn(ctx, r.db).Where("id = ?", endpointID).Take(&model).Error; err != nil {
		return domain.NotificationEndpoint{}, wrapError("endpoints.get", err)
	}
	return model.toDomain(), nil
}

func (r *EndpointRepository) Insert(ctx context.Context, endpoint domain.NotificationEndpoint) error {
	model := EndpointModel(endpoint)
	return wrapError("endpoints.insert", conn(ctx, r.db).Create(&model).Error)
}

func (r *EndpointRepository) Update(ctx context.Context, endpoint domain.NotificationEndpoint) error {
	model := EndpointModel(endpoint)
	result := conn(ctx, r.db).Model(&EndpointModel{ID: endpoint.ID}).Select("*").Omit("ID", "CreatedAt").Updates(model)
	if result.Error != nil {
		return wrapError("endpoints.update", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.NotFound("endpoints.update", endpoint.ID)
	}
	return nil
}

func (r *EndpointRepository) Delete(ctx context.Context, endpointID string) error {
	result := conn(ctx, r.db).Where("id = ?", endpointID).Delete(&EndpointModel{})
	if result.Error != nil {
		return wrapError("endpoints.delete", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.NotFound("endpoints.delete", endpointID)
	}
	return nil
}

// CounterRepository hands out sequence numbers with an atomic upsert.
type CounterRepository struct {
	db *gorm.DB
}

var _ repositories.CounterRepository = (*CounterRepository)(nil)

func NewCounterRepository(db *gorm.DB) *CounterRepository { return &CounterRepository{db: db} }

func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if step <= 0 {
		step = 1
	}
	var next int64
	err := conn(ctx, r.db).Raw(`INSERT INTO counters (id, value, updated_at) VALUES (?, ?, now())
ON CONFLICT (id) DO UPDATE SET value = counters.value + EXCLUDED.value, updated_at = now()
RETURNING value`, counterID, step).Scan(&next).Error
	if err != nil {
		return 0, wrapError("counters.next", err)
	}
	return next, nil
}
