package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"finitefield.org/retail-pos/internal/pos/backend"
)

// HTTPService implements Service against GET /products/{storeId}/lookup.
type HTTPService struct {
	client *backend.Client
}

// NewHTTPService constructs a Service backed by client.
func NewHTTPService(client *backend.Client) *HTTPService {
	if client == nil {
		panic("catalog: backend client is required")
	}
	return &HTTPService{client: client}
}

// Lookup searches by name, SKU or barcode.
func (s *HTTPService) Lookup(ctx context.Context, token string, storeID int64, query string) ([]Product, error) {
	q, err := NormalizeQuery(query)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	endpoint := "/products/" + backend.PathInt(storeID) + "/lookup"
	if err := s.client.Get(ctx, token, endpoint, url.Values{"query": {q}}, &raw); err != nil {
		return nil, err
	}
	products, err := decodeProducts(raw)
	if err != nil {
		return nil, fmt.Errorf("catalog: decode lookup: %w", err)
	}
	return products, nil
}

// decodeProducts accepts a bare array, a single product, or either wrapped in "data".
func decodeProducts(raw json.RawMessage) ([]Product, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var list []Product
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(envelope.Data)) > 0 {
		return decodeProducts(envelope.Data)
	}
	var single Product
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	if single.ID == 0 && single.Name == "" {
		return nil, nil
	}
	return []Product{single}, nil
}
