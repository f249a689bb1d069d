package transaction

import (
	"context"
	"sync"
)

// StaticGateway accepts every sale and numbers them sequentially. It backs local
// development when no backend is configured.
type StaticGateway struct {
	mu       sync.Mutex
	nextID   int64
	requests []Request
}

// NewStaticGateway returns a gateway whose first sale id is firstID.
func NewStaticGateway(firstID int64) *StaticGateway {
	if firstID <= 0 {
		firstID = 1
	}
	return &StaticGateway{nextID: firstID}
}

// Complete records req and accepts it.
func (g *StaticGateway) Complete(_ context.Context, _, _ string, req Request) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	id := g.nextID
	g.nextID++
	return Accepted{SaleID: id, Message: "Transaction completed"}, nil
}

// Requests returns the requests received so far.
func (g *StaticGateway) Requests() []Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Request(nil), g.requests...)
}
