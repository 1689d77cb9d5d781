package handlers

import (
	"maps"
	"strings"

	"github.com/printhouse/orders-api/internal/services"
)

type customerPayload struct {
	Name     string `json:"name"`
	Document string `json:"document,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type shippingPayload struct {
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

type orderItemPayload struct {
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

type orderPayload struct {
	ID             string             `json:"id"`
	OrderNumber    int64              `json:"order_number"`
	Title          string             `json:"title,omitempty"`
	Description    string             `json:"description,omitempty"`
	ValueCents     int64              `json:"value_cents"`
	ShippingCents  int64              `json:"shipping_cents"`
	ShippingMethod string             `json:"shipping_method,omitempty"`
	ShippingLabel  string             `json:"shipping_label,omitempty"`
	Customer       customerPayload    `json:"customer"`
	Shipping       shippingPayload    `json:"shipping"`
	Items          []orderItemPayload `json:"items"`
	StatusID       int                `json:"status_id"`
	OwnerID        string             `json:"owner_id,omitempty"`
	Source         string             `json:"source,omitempty"`
	Metadata       map[string]any     `json:"metadata,omitempty"`
	CreatedAt      string             `json:"created_at"`
	UpdatedAt      string             `json:"updated_at,omitempty"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	Total         int            `json:"total"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type transitionRecordPayload struct {
	ID               string         `json:"id"`
	OrderID          string         `json:"order_id"`
	PreviousStatusID *int           `json:"previous_status_id"`
	NewStatusID      int            `json:"new_status_id"`
	Action           string         `json:"action"`
	Notes            string         `json:"notes,omitempty"`
	ExtraData        map[string]any `json:"extra_data,omitempty"`
	ActorID          *string        `json:"actor_id"`
	CreatedAt        string         `json:"created_at"`
}

type notificationPayload struct {
	EndpointID string `json:"endpoint_id"`
	URL        string `json:"url"`
	Success    bool   `json:"success"`
	HTTPStatus int    `json:"http_status,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type transitionResponse struct {
	Order         orderPayload             `json:"order"`
	Changed       bool                     `json:"changed"`
	Record        *transitionRecordPayload `json:"record,omitempty"`
	Notifications []notificationPayload    `json:"notifications"`
	DispatchedAt  string                   `json:"dispatched_at,omitempty"`
}

type historyResponse struct {
	Items []transitionRecordPayload `json:"items"`
}

type bulkReportResponse struct {
	services.BatchReport
	Outcome string `json:"outcome"`
}

func buildOrderPayload(order services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
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
	return orderPayload{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		Title:          order.Title,
		Description:    order.Description,
		ValueCents:     order.ValueCents,
		ShippingCents:  order.ShippingCents,
		ShippingMethod: order.ShippingMethod,
		ShippingLabel:  order.ShippingLabel,
		Customer:       customerPayload(order.Customer),
		Shipping:       shippingPayload(order.Shipping),
		Items:          items,
		StatusID:       order.StatusID,
		OwnerID:        order.OwnerID,
		Source:         order.Source,
		Metadata:       cloneMap(order.Metadata),
		CreatedAt:      formatTime(order.CreatedAt),
		UpdatedAt:      formatTime(order.UpdatedAt),
	}
}

func buildTransitionRecordPayload(record services.TransitionRecord) transitionRecordPayload {
	return transitionRecordPayload{
		ID:               record.ID,
		OrderID:          record.OrderID,
		PreviousStatusID: record.PreviousStatusID,
		NewStatusID:      record.NewStatusID,
		Action:           string(record.Action),
		Notes:            record.Notes,
		ExtraData:        cloneMap(record.ExtraData),
		ActorID:          record.ActorID,
		CreatedAt:        formatTime(record.CreatedAt),
	}
}

func buildNotificationPayloads(results []services.NotificationAttemptResult) []notificationPayload {
	out := make([]notificationPayload, 0, len(results))
	for _, result := range results {
		out = append(out, notificationPayload{
			EndpointID: result.EndpointID,
			URL:        result.URL,
			Success:    result.Success,
			HTTPStatus: result.HTTPStatus,
			Error:      result.Error,
			DurationMS: result.Duration.Milliseconds(),
		})
	}
	return out
}

func buildTransitionResponse(result services.TransitionResult) transitionResponse {
	resp := transitionResponse{
		Order:         buildOrderPayload(result.Order),
		Changed:       result.Changed,
		Notifications: buildNotificationPayloads(result.Dispatch.Results),
		DispatchedAt:  formatTime(result.Dispatch.DispatchedAt),
	}
	if result.Record != nil {
		record := buildTransitionRecordPayload(*result.Record)
		resp.Record = &record
	}
	return resp
}

func (p orderItemPayload) toDomain() services.OrderItem {
	return services.OrderItem{
		Name:       strings.TrimSpace(p.Name),
		SKU:        strings.TrimSpace(p.SKU),
		SKUID:      strings.TrimSpace(p.SKUID),
		Quantity:   p.Quantity,
		PDFURL:     strings.TrimSpace(p.PDFURL),
		DesignURL:  strings.TrimSpace(p.DesignURL),
		MockupURL:  strings.TrimSpace(p.MockupURL),
		UnitCents:  p.UnitCents,
		Attributes: maps.Clone(p.Attributes),
	}
}

func itemsToDomain(items []orderItemPayload) []services.OrderItem {
	if items == nil {
		return nil
	}
	out := make([]services.OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, item.toDomain())
	}
	return out
}
