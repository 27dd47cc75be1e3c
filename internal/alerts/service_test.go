package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bissquit/soc-relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenStore fails every read, simulating an unreadable registry.
type brokenStore struct {
	err error
}

func (s brokenStore) List(context.Context) ([]domain.Recipient, error)       { return nil, s.err }
func (s brokenStore) Subscribed(context.Context) ([]domain.Recipient, error) { return nil, s.err }
func (s brokenStore) Add(context.Context, int64, string) (bool, error)       { return false, s.err }
func (s brokenStore) Remove(context.Context, int64) (bool, error)            { return false, s.err }
func (s brokenStore) SetSubscribed(context.Context, int64, bool) (bool, error) {
	return false, s.err
}

// staticStore serves a fixed recipient set.
type staticStore struct {
	recipients []domain.Recipient
}

func (s staticStore) List(context.Context) ([]domain.Recipient, error) {
	return s.recipients, nil
}

func (s staticStore) Subscribed(context.Context) ([]domain.Recipient, error) {
	var out []domain.Recipient
	for _, r := range s.recipients {
		if r.Subscribed {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s staticStore) Add(context.Context, int64, string) (bool, error)         { return false, nil }
func (s staticStore) Remove(context.Context, int64) (bool, error)              { return false, nil }
func (s staticStore) SetSubscribed(context.Context, int64, bool) (bool, error) { return false, nil }

func TestService_StoreErrorPropagates(t *testing.T) {
	storeErr := errors.New("disk gone")
	sender := &fakeSender{}
	svc := NewService(NewGate(brokenStore{err: storeErr}), NewDispatcher(sender, time.Second))

	_, err := svc.Ingest(context.Background(), domain.NewAlert("x", nil, nil, nil))
	require.ErrorIs(t, err, storeErr)
	assert.Empty(t, sender.sentIDs())
}

func TestService_DispatchesOnlyToSubscribed(t *testing.T) {
	store := staticStore{recipients: []domain.Recipient{
		{ChatID: 100, Subscribed: true},
		{ChatID: 200, Subscribed: false},
		{ChatID: 300, Subscribed: true},
	}}
	sender := &fakeSender{}
	svc := NewService(NewGate(store), NewDispatcher(sender, time.Second))

	result, err := svc.Ingest(context.Background(), domain.NewAlert("phishing wave", nil, nil, nil))
	require.NoError(t, err)

	assert.True(t, result.Forwarded)
	assert.Empty(t, result.Reason)
	require.Len(t, result.Results, 2)
	assert.ElementsMatch(t, []int64{100, 300}, sender.sentIDs())
}
