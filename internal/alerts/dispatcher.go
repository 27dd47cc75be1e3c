package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Sender delivers one rendered message to one chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// DeliveryStatus is the per-recipient outcome of one delivery attempt.
type DeliveryStatus string

// Delivery statuses.
const (
	DeliverySent  DeliveryStatus = "sent"
	DeliveryError DeliveryStatus = "error"
)

// DeliveryResult records the outcome of one delivery attempt. Produced
// fresh per dispatch, never persisted.
type DeliveryResult struct {
	RecipientID int64          `json:"recipient_id"`
	Status      DeliveryStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
}

const defaultAttemptTimeout = 10 * time.Second

// Dispatcher fans a rendered message out to a set of recipients
// concurrently. Per-recipient failures are isolated: they become error
// outcomes and never abort delivery to the others or escape the call.
// There are no retries; a failed delivery is reported once.
type Dispatcher struct {
	sender         Sender
	attemptTimeout time.Duration
}

// NewDispatcher creates a dispatcher. attemptTimeout bounds each
// individual delivery so one unreachable recipient cannot stall the
// whole call; zero means the default of 10s.
func NewDispatcher(sender Sender, attemptTimeout time.Duration) *Dispatcher {
	if attemptTimeout <= 0 {
		attemptTimeout = defaultAttemptTimeout
	}
	return &Dispatcher{sender: sender, attemptTimeout: attemptTimeout}
}

// Dispatch delivers text to every recipient and returns one result per
// input id, in input order. The call blocks until all attempts settle
// or their individual timeouts expire.
func (d *Dispatcher) Dispatch(ctx context.Context, text string, recipientIDs []int64) []DeliveryResult {
	results := make([]DeliveryResult, len(recipientIDs))

	var wg sync.WaitGroup
	for i, id := range recipientIDs {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			results[i] = d.attempt(ctx, id, text)
		}(i, id)
	}
	wg.Wait()

	sent := 0
	for _, r := range results {
		if r.Status == DeliverySent {
			sent++
		}
	}
	slog.Info("alert dispatched",
		"recipients", len(recipientIDs),
		"sent", sent,
		"failed", len(recipientIDs)-sent,
	)

	return results
}

func (d *Dispatcher) attempt(ctx context.Context, chatID int64, text string) (result DeliveryResult) {
	result = DeliveryResult{RecipientID: chatID, Status: DeliverySent}

	defer func() {
		if r := recover(); r != nil {
			result.Status = DeliveryError
			result.Error = fmt.Sprintf("panic during delivery: %v", r)
			recordDelivery(string(DeliveryError))
		}
	}()

	attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
	defer cancel()

	start := time.Now()
	err := d.sender.SendMessage(attemptCtx, chatID, text)
	recordDeliveryDuration(time.Since(start))

	if err != nil {
		slog.Warn("delivery failed", "recipient_id", chatID, "error", err)
		result.Status = DeliveryError
		result.Error = err.Error()
	}
	recordDelivery(string(result.Status))
	return result
}
