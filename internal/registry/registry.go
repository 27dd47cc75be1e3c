// Package registry provides durable tracking of alert recipients and
// their subscription state.
package registry

import (
	"context"

	"github.com/bissquit/soc-relay/internal/domain"
)

// Store defines the interface for recipient registry access.
//
// Mutations follow read-modify-write semantics against a shared snapshot
// with last-writer-wins on concurrent mutation. Implementations serialize
// in-process callers but offer no cross-process locking; see the file
// store for the accepted trade-off.
type Store interface {
	// List returns all registered recipients in stable registration order.
	List(ctx context.Context) ([]domain.Recipient, error)

	// Subscribed returns the recipients currently opted in to
	// alert forwarding, in registration order.
	Subscribed(ctx context.Context) ([]domain.Recipient, error)

	// Add registers a recipient. Returns true if the recipient was newly
	// created, false if the chat id was already registered (no mutation).
	Add(ctx context.Context, chatID int64, displayName string) (bool, error)

	// Remove unregisters a recipient. Returns true if a record existed
	// and was deleted.
	Remove(ctx context.Context, chatID int64) (bool, error)

	// SetSubscribed updates a recipient's subscription flag. Returns true
	// if a matching record was found and updated.
	SetSubscribed(ctx context.Context, chatID int64, enabled bool) (bool, error)
}
