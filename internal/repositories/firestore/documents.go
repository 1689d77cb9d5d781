package firestore

import (
	"maps"
	"slices"
	"strconv"
	"time"

	domain "github.com/printhouse/orders-api/internal/domain"
)

type orderDocument struct {
	ID             string              `firestore:"id"`
	OrderNumber    int64               `firestore:"orderNumber"`
	Title          string              `firestore:"title"`
	Description    string              `firestore:"description,omitempty"`
	ValueCents     int64               `firestore:"valueCents"`
	ShippingCents  int64               `firestore:"shippingCents"`
	ShippingLabel  string              `firestore:"shippingLabel,omitempty"`
	ShippingMethod string              `firestore:"shippingMethod,omitempty"`
	Customer       customerDocument    `firestore:"customer"`
	Shipping       addressDocument     `firestore:"shipping"`
	Items          []orderItemDocument `firestore:"items"`
	StatusID       int                 `firestore:"statusId"`
	OwnerID        string              `firestore:"ownerId,omitempty"`
	Source         string              `firestore:"source"`
	Metadata       map[string]any      `firestore:"metadata,omitempty"`
	CreatedAt      time.Time           `firestore:"createdAt"`
	UpdatedAt      time.Time           `firestore:"updatedAt"`
}

type customerDocument struct {
	Name     string `firestore:"name"`
	Document string `firestore:"document,omitempty"`
	Email    string `firestore:"email,omitempty"`
	Phone    string `firestore:"phone,omitempty"`
}

type addressDocument struct {
	Recipient  string `firestore:"recipient,omitempty"`
	Street     string `firestore:"street,omitempty"`
	Number     string `firestore:"number,omitempty"`
	Complement string `firestore:"complement,omitempty"`
	District   string `firestore:"district,omitempty"`
	City       string `firestore:"city,omitempty"`
	State      string `firestore:"state,omitempty"`
	PostalCode string `firestore:"postalCode,omitempty"`
	Country    string `firestore:"country,omitempty"`
	Phone      string `firestore:"phone,omitempty"`
}

type orderItemDocument struct {
	Name       string            `firestore:"name"`
	SKU        string            `firestore:"sku,omitempty"`
	SKUID      string            `firestore:"skuId,omitempty"`
	Quantity   int               `firestore:"quantity"`
	PDFURL     string            `firestore:"pdfUrl,omitempty"`
	DesignURL  string            `firestore:"designUrl,omitempty"`
	MockupURL  string            `firestore:"mockupUrl,omitempty"`
	UnitCents  int64             `firestore:"unitCents"`
	Attributes map[string]string `firestore:"attributes,omitempty"`
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			Name:       item.Name,
			SKU:        item.SKU,
			SKUID:      item.SKUID,
			Quantity:   item.Quantity,
			PDFURL:     item.PDFURL,
			DesignURL:  item.DesignURL,
			MockupURL:  item.MockupURL,
			UnitCents:  item.UnitCents,
			Attributes: maps.Clone(item.Attributes),
		})
	}
	return orderDocument{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		Title:          order.Title,
		Description:    order.Description,
		ValueCents:     order.ValueCents,
		ShippingCents:  order.ShippingCents,
		ShippingLabel:  order.ShippingLabel,
		ShippingMethod: order.ShippingMethod,
		Customer:       customerDocument(order.Customer),
		Shipping:       addressDocument(order.Shipping),
		Items:          items,
		StatusID:       order.StatusID,
		OwnerID:        order.OwnerID,
		Source:         order.Source,
		Metadata:       maps.Clone(order.Metadata),
		CreatedAt:      order.CreatedAt.UTC(),
		UpdatedAt:      order.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain() domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderItem{
			Name:       item.Name,
			SKU:        item.SKU,
			SKUID:      item.SKUID,
			Quantity:   item.Quantity,
			PDFURL:     item.PDFURL,
			DesignURL:  item.DesignURL,
			MockupURL:  item.MockupURL,
			UnitCents:  item.UnitCents,
			Attributes: maps.Clone(item.Attributes),
		})
	}
	return domain.Order{
		ID:             d.ID,
		OrderNumber:    d.OrderNumber,
		Title:          d.Title,
		Description:    d.Description,
		ValueCents:     d.ValueCents,
		ShippingCents:  d.ShippingCents,
		ShippingLabel:  d.ShippingLabel,
		ShippingMethod: d.ShippingMethod,
		Customer:       domain.OrderCustomer(d.Customer),
		Shipping:       domain.ShippingAddress(d.Shipping),
		Items:          items,
		StatusID:       d.StatusID,
		OwnerID:        d.OwnerID,
		Source:         d.Source,
		Metadata:       maps.Clone(d.Metadata),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

// orderNumberDocument reserves an order number; its id is the number itself.
type orderNumberDocument struct {
	OrderID string `firestore:"orderId"`
}

func orderNumberID(number int64) string {
	return strconv.FormatInt(number, 10)
}

type statusDocument struct {
	ID          int       `firestore:"id"`
	Name        string    `firestore:"name"`
	Description string    `firestore:"description,omitempty"`
	Color       string    `firestore:"color,omitempty"`
	Rank        int       `firestore:"rank"`
	Active      bool      `firestore:"active"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func statusID(id int) string { return strconv.Itoa(id) }

type transitionDocument struct {
	ID               string         `firestore:"id"`
	OrderID          string         `firestore:"orderId"`
	PreviousStatusID *int           `firestore:"previousStatusId"`
	NewStatusID      int            `firestore:"newStatusId"`
	Action           string         `firestore:"action"`
	Notes            string         `firestore:"notes,omitempty"`
	ExtraData        map[string]any `firestore:"extraData,omitempty"`
	ActorID          *string        `firestore:"actorId"`
	CreatedAt        time.Time      `firestore:"createdAt"`
}

func newTransitionDocument(record domain.TransitionRecord) transitionDocument {
	return transitionDocument{
		ID:               record.ID,
		OrderID:          record.OrderID,
		PreviousStatusID: record.PreviousStatusID,
		NewStatusID:      record.NewStatusID,
		Action:           string(record.Action),
		Notes:            record.Notes,
		ExtraData:        maps.Clone(record.ExtraData),
		ActorID:          record.ActorID,
		CreatedAt:        record.CreatedAt.UTC(),
	}
}

func (d transitionDocument) toDomain() domain.TransitionRecord {
	return domain.TransitionRecord{
		ID:               d.ID,
		OrderID:          d.OrderID,
		PreviousStatusID: d.PreviousStatusID,
		NewStatusID:      d.NewStatusID,
		Action:           domain.ActionKind(d.Action),
		Notes:            d.Notes,
		ExtraData:        d.ExtraData,
		ActorID:          d.ActorID,
		CreatedAt:        d.CreatedAt,
	}
}

type endpointDocument struct {
	ID            string    `firestore:"id"`
	URL           string    `firestore:"url"`
	Description   string    `firestore:"description,omitempty"`
	Active        bool      `firestore:"active"`
	SigningSecret string    `firestore:"signingSecret,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

type counterDocument struct {
	CurrentValue int64     `firestore:"currentValue"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

func sortByCreatedDesc(records []domain.TransitionRecord) {
	slices.SortFunc(records, func(a, b domain.TransitionRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID > b.ID {
			return -1
		}
		if a.ID < b.ID {
			return 1
		}
		return 0
	})
}
