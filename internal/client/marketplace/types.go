package marketplace

import (
	"encoding/json"
	"fmt"
	"time"
)

// Resource is a synced remote collection.
type Resource string

const (
	ResourceProducts Resource = "products"
	ResourceOrders   Resource = "orders"
	ResourceReturns  Resource = "returns"
	ResourceInvoices Resource = "invoices"
)

func ParseResource(s string) (Resource, error) {
	switch Resource(s) {
	case ResourceProducts, ResourceOrders, ResourceReturns, ResourceInvoices:
		return Resource(s), nil
	}
	return "", fmt.Errorf("unsupported resource type: %q", s)
}

// Record is one remote entity as fetched: the decoded body plus the raw
// payload snapshot.
type Record struct {
	RemoteID  string
	UpdatedAt *time.Time
	Body      map[string]any
	Raw       json.RawMessage
}

// Page is one page of a listing response.
type Page struct {
	Items      []Record
	Page       int
	TotalPages int
}

type pageEnvelope struct {
	Items      []json.RawMessage `json:"items"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
}

func decodeRecord(raw json.RawMessage) (Record, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	rec := Record{Body: body, Raw: raw}
	switch id := body["id"].(type) {
	case string:
		rec.RemoteID = id
	case float64:
		rec.RemoteID = fmt.Sprintf("%.0f", id)
	default:
		return Record{}, fmt.Errorf("record has no usable id")
	}
	if ts, ok := body["updated_at"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			utc := parsed.UTC()
			rec.UpdatedAt = &utc
		}
	}
	return rec, nil
}

// OfferUpdate is the write payload for price/stock changes.
type OfferUpdate struct {
	Price    string `json:"price"`
	StockQty int    `json:"stock_qty"`
}

// ReturnRequest creates a return on the marketplace.
type ReturnRequest struct {
	OrderRemoteID string `json:"order_id"`
	Reason        string `json:"reason"`
}

// InvoiceRequest attaches an invoice to an order.
type InvoiceRequest struct {
	OrderRemoteID string `json:"order_id"`
	Number        string `json:"number"`
	TotalGross    string `json:"total_gross"`
}
