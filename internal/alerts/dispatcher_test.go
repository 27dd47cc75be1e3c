package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender records calls and fails or blocks per chat id.
type fakeSender struct {
	mu       sync.Mutex
	sent     []int64
	failFor  map[int64]error
	blockFor map[int64]bool
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, _ string) error {
	f.mu.Lock()
	block := f.blockFor[chatID]
	err := f.failFor[chatID]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.sent = append(f.sent, chatID)
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) sentIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.sent...)
}

func TestDispatcher_FailureIsolation(t *testing.T) {
	sender := &fakeSender{
		failFor: map[int64]error{200: errors.New("bot was blocked by the user")},
	}
	d := NewDispatcher(sender, time.Second)

	results := d.Dispatch(context.Background(), "msg", []int64{100, 200, 300})
	require.Len(t, results, 3)

	// Input order is preserved.
	assert.Equal(t, int64(100), results[0].RecipientID)
	assert.Equal(t, int64(200), results[1].RecipientID)
	assert.Equal(t, int64(300), results[2].RecipientID)

	assert.Equal(t, DeliverySent, results[0].Status)
	assert.Equal(t, DeliveryError, results[1].Status)
	assert.Contains(t, results[1].Error, "blocked")
	assert.Equal(t, DeliverySent, results[2].Status)

	assert.ElementsMatch(t, []int64{100, 300}, sender.sentIDs())
}

func TestDispatcher_EmptyRecipientSet(t *testing.T) {
	sender := &fakeSender{}
	d := NewDispatcher(sender, time.Second)

	results := d.Dispatch(context.Background(), "msg", nil)
	assert.Empty(t, results)
	assert.Empty(t, sender.sentIDs())
}

func TestDispatcher_AttemptTimeoutDoesNotStallOthers(t *testing.T) {
	sender := &fakeSender{blockFor: map[int64]bool{200: true}}
	d := NewDispatcher(sender, 50*time.Millisecond)

	start := time.Now()
	results := d.Dispatch(context.Background(), "msg", []int64{100, 200})
	elapsed := time.Since(start)

	require.Len(t, results, 2)
	assert.Equal(t, DeliverySent, results[0].Status)
	assert.Equal(t, DeliveryError, results[1].Status)
	assert.Contains(t, results[1].Error, "context deadline exceeded")

	// Bounded by the slowest individual attempt, not by their sum.
	assert.Less(t, elapsed, time.Second)
}

type panickySender struct{}

func (panickySender) SendMessage(context.Context, int64, string) error {
	panic("sender bug")
}

func TestDispatcher_PanicBecomesErrorOutcome(t *testing.T) {
	d := NewDispatcher(panickySender{}, time.Second)

	results := d.Dispatch(context.Background(), "msg", []int64{100})
	require.Len(t, results, 1)
	assert.Equal(t, DeliveryError, results[0].Status)
	assert.Contains(t, results[0].Error, "panic during delivery")
}
