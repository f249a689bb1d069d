package transaction

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"finitefield.org/retail-pos/internal/pos/backend"
)

const completeEndpoint = "/transaction/complete"

// HTTPGateway completes sales through POST /transaction/complete.
type HTTPGateway struct {
	client *backend.Client
}

// NewHTTPGateway constructs a Gateway backed by client.
func NewHTTPGateway(client *backend.Client) *HTTPGateway {
	if client == nil {
		panic("transaction: backend client is required")
	}
	return &HTTPGateway{client: client}
}

type completeResponse struct {
	Success  *bool            `json:"success"`
	SaleID   int64            `json:"sale_id"`
	Change   *decimal.Decimal `json:"change"`
	Total    *decimal.Decimal `json:"total"`
	Discount *decimal.Decimal `json:"discount"`
	Message  string           `json:"message"`
}

// Complete posts req. A structured failure, whether sent with an error status or
// as success=false, becomes a Rejected outcome.
func (g *HTTPGateway) Complete(ctx context.Context, token, idempotencyKey string, req Request) (Outcome, error) {
	var resp completeResponse
	err := g.client.Send(ctx, http.MethodPost, token, completeEndpoint, req, &resp,
		backend.WithHeader("Idempotency-Key", idempotencyKey),
	)
	if err != nil {
		var se *backend.StatusError
		if errors.As(err, &se) && se.Message != "" {
			return Rejected{Message: se.Message}, nil
		}
		return nil, err
	}
	if resp.Success != nil && !*resp.Success {
		return Rejected{Message: resp.Message}, nil
	}
	return Accepted{
		SaleID:   resp.SaleID,
		Change:   resp.Change,
		Total:    resp.Total,
		Discount: resp.Discount,
		Message:  resp.Message,
	}, nil
}
