package postgres

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	domain "github.com/printhouse/orders-api/internal/domain"
)

// jsonColumn stores V as JSONB.
type jsonColumn[T any] struct {
	V T
}

func (c jsonColumn[T]) Value() (driver.Value, error) {
	data, err := json.Marshal(c.V)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (c *jsonColumn[T]) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		var zero T
		c.V = zero
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("postgres: unsupported json column type")
	}
	return json.Unmarshal(data, &c.V)
}

type customerJSON struct {
	Name     string `json:"name"`
	Document string `json:"document,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type addressJSON struct {
	Recipient  string `json:"recipient,omitempty"`
	Street     string `json:"street,omitempty"`
	Number     string `json:"number,omitempty"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type itemJSON struct {
	Name       string            `json:"name"`
	SKU        string            `json:"sku,omitempty"`
	SKUID      string            `json:"sku_id,omitempty"`
	Quantity   int               `json:"quantity"`
	PDFURL     string            `json:"pdf_url,omitempty"`
	DesignURL  string            `json:"design_url,omitempty"`
	MockupURL  string            `json:"mockup_url,omitempty"`
	UnitCents  int64             `json:"unit_cents"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// OrderModel is the orders table row.
type OrderModel struct {
	ID             string `gorm:"primaryKey"`
	OrderNumber    int64
	Title          string
	Description    string
	ValueCents     int64
	ShippingCents  int64
	ShippingLabel  string
	ShippingMethod string
	Customer       jsonColumn[customerJSON] `gorm:"type:jsonb"`
	Shipping       jsonColumn[addressJSON]  `gorm:"type:jsonb"`
	Items          jsonColumn[[]itemJSON]   `gorm:"type:jsonb"`
	StatusID       int
	OwnerID        string
	Source         string
	Metadata       jsonColumn[map[string]any] `gorm:"type:jsonb"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (OrderModel) TableName() string { return "orders" }

func toOrderModel(order domain.Order) OrderModel {
	items := make([]itemJSON, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, itemJSON(item))
	}
	return OrderModel{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		Title:          order.Title,
		Description:    order.Description,
		ValueCents:     order.ValueCents,
		ShippingCents:  order.ShippingCents,
		ShippingLabel:  order.ShippingLabel,
		ShippingMethod: order.ShippingMethod,
		Customer:       jsonColumn[customerJSON]{V: customerJSON(order.Customer)},
		Shipping:       jsonColumn[addressJSON]{V: addressJSON(order.Shipping)},
		Items:          jsonColumn[[]itemJSON]{V: items},
		StatusID:       order.StatusID,
		OwnerID:        order.OwnerID,
		Source:         order.Source,
		Metadata:       jsonColumn[map[string]any]{V: order.Metadata},
		CreatedAt:      order.CreatedAt.UTC(),
		UpdatedAt:      order.UpdatedAt.UTC(),
	}
}

func (m OrderModel) toDomain() domain.Order {
	items := make([]domain.OrderItem, 0, len(m.Items.V))
	for _, item := range m.Items.V {
		items = append(items, domain.OrderItem(item))
	}
	return domain.Order{
		ID:             m.ID,
		OrderNumber:    m.OrderNumber,
		Title:          m.Title,
		Description:    m.Description,
		ValueCents:     m.ValueCents,
		ShippingCents:  m.ShippingCents,
		ShippingLabel:  m.ShippingLabel,
		ShippingMethod: m.ShippingMethod,
		Customer:       domain.OrderCustomer(m.Customer.V),
		Shipping:       domain.ShippingAddress(m.Shipping.V),
		Items:          items,
		StatusID:       m.StatusID,
		OwnerID:        m.OwnerID,
		Source:         m.Source,
		Metadata:       m.Metadata.V,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

// StatusModel is the statuses table row.
type StatusModel struct {
	ID          int `gorm:"primaryKey;autoIncrement:false"`
	Name        string
	Description string
	Color       string
	Rank        int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (StatusModel) TableName() string { return "statuses" }

func (m StatusModel) toDomain() domain.Status {
	status := domain.Status(m)
	status.CreatedAt = m.CreatedAt.UTC()
	status.UpdatedAt = m.UpdatedAt.UTC()
	return status
}

// TransitionModel is the order_transitions table row.
type TransitionModel struct {
	ID               string `gorm:"primaryKey"`
	OrderID          string
	PreviousStatusID *int
	NewStatusID      int
	Action           string
	Notes            string
	ExtraData        jsonColumn[map[string]any] `gorm:"type:jsonb"`
	ActorID          *string
	CreatedAt        time.Time
}

func (TransitionModel) TableName() string { return "order_transitions" }

func toTransitionModel(record domain.TransitionRecord) TransitionModel {
	return TransitionModel{
		ID:               record.ID,
		OrderID:          record.OrderID,
		PreviousStatusID: record.PreviousStatusID,
		NewStatusID:      record.NewStatusID,
		Action:           string(record.Action),
		Notes:            record.Notes,
		ExtraData:        jsonColumn[map[string]any]{V: record.ExtraData},
		ActorID:          record.ActorID,
		CreatedAt:        record.CreatedAt.UTC(),
	}
}

func (m TransitionModel) toDomain() domain.TransitionRecord {
	return domain.TransitionRecord{
		ID:               m.ID,
		OrderID:          m.OrderID,
		PreviousStatusID: m.PreviousStatusID,
		NewStatusID:      m.NewStatusID,
		Action:           domain.ActionKind(m.Action),
		Notes:            m.Notes,
		ExtraData:        m.ExtraData.V,
		ActorID:          m.ActorID,
		CreatedAt:        m.CreatedAt.UTC(),
	}
}

// EndpointModel is the webhook_endpoints table row.
type EndpointModel struct {
	ID            string `gorm:"primaryKey"`
	URL           string `gorm:"column:url"`
	Description   string
	Active        bool
	SigningSecret string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (EndpointModel) TableName() string { return "webhook_endpoints" }

func (m EndpointModel) toDomain() domain.NotificationEndpoint {
	endpoint := domain.NotificationEndpoint(m)
	endpoint.CreatedAt = m.CreatedAt.UTC()
	endpoint.UpdatedAt = m.UpdatedAt.UTC()
	return endpoint
}
