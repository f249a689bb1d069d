package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"finitefield.org/retail-pos/internal/pos/backend"
)

// HTTPService implements Service against the backend inventory endpoints.
type HTTPService struct {
	client *backend.Client
}

// NewHTTPService constructs a Service backed by client.
func NewHTTPService(client *backend.Client) *HTTPService {
	if client == nil {
		panic("inventory: backend client is required")
	}
	return &HTTPService{client: client}
}

// ListStock calls GET /inventory/stocks?store_id=.
func (s *HTTPService) ListStock(ctx context.Context, token string, storeID int64) ([]StockSnapshot, error) {
	return s.list(ctx, token, "/inventory/stocks", storeID)
}

// LowStock calls GET /inventory/low-stock?store_id=.
func (s *HTTPService) LowStock(ctx context.Context, token string, storeID int64) ([]StockSnapshot, error) {
	return s.list(ctx, token, "/inventory/low-stock", storeID)
}

// ManageStock calls PUT /inventory/manage-stock/{storeProductId}.
func (s *HTTPService) ManageStock(ctx context.Context, token string, adj Adjustment) error {
	endpoint := "/inventory/manage-stock/" + backend.PathInt(adj.StoreProductID)
	return s.client.Send(ctx, http.MethodPut, token, endpoint, adj, nil)
}

func (s *HTTPService) list(ctx context.Context, token, endpoint string, storeID int64) ([]StockSnapshot, error) {
	var raw json.RawMessage
	query := url.Values{"store_id": {strconv.FormatInt(storeID, 10)}}
	if err := s.client.Get(ctx, token, endpoint, query, &raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("inventory: decode %s: %w", endpoint, err)
		}
		raw = envelope.Data
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var items []StockSnapshot
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("inventory: decode %s: %w", endpoint, err)
	}
	return items, nil
}
