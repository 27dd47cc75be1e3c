package alerts

import (
	"context"

	"github.com/bissquit/soc-relay/internal/domain"
	"github.com/bissquit/soc-relay/internal/registry"
)

// Gate decides which recipients an inbound alert may be delivered to.
//
// Policy: per-recipient gating. A recipient is eligible exactly when its
// subscribed flag is set; there is no global on/off switch. An empty
// result is a normal outcome, not an error.
type Gate struct {
	store registry.Store
}

// NewGate creates a subscription gate backed by the given registry.
func NewGate(store registry.Store) *Gate {
	return &Gate{store: store}
}

// EligibleRecipients returns the recipients currently opted in to alert
// forwarding, in registration order.
func (g *Gate) EligibleRecipients(ctx context.Context) ([]domain.Recipient, error) {
	return g.store.Subscribed(ctx)
}
