package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	r "github.com/fjod/go_storefront/internal/repository"
)

type mockOutboxRepo struct {
	events    []*r.OutboxEvent
	fetchErr  error
	markErr   error
	processed []int64
}

func (m *mockOutboxRepo) GetUnprocessedEvents(_ context.Context, limit int) ([]*r.OutboxEvent, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if len(m.events) > limit {
		return m.events[:limit], nil
	}
	return m.events, nil
}

func (m *mockOutboxRepo) MarkEventAsProcessed(_ context.Context, id int64) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.processed = append(m.processed, id)
	return nil
}

type mockWriter struct {
	messages []kafka.Message
	err      error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func testEvent(id int64, userRef string) *r.OutboxEvent {
	return &r.OutboxEvent{
		ID:          id,
		AggregateID: userRef,
		EventType:   "cart_updated",
		Payload:     []byte(`{"items":[],"subtotal":"0"}`),
	}
}

func TestProcessUnpublishedEvents_PublishesAndMarks(t *testing.T) {
	repo := &mockOutboxRepo{events: []*r.OutboxEvent{
		testEvent(1, "alice"),
		testEvent(2, "bob"),
	}}
	writer := &mockWriter{}
	poller := NewOutboxPollerWithWriter(repo, writer)

	poller.processUnpublishedEvents(context.Background())

	require.Len(t, writer.messages, 2)
	assert.Equal(t, []int64{1, 2}, repo.processed)

	// keyed by caller reference so one cart's events stay ordered
	assert.Equal(t, []byte("alice"), writer.messages[0].Key)
	assert.Equal(t, []byte(`{"items":[],"subtotal":"0"}`), writer.messages[0].Value)

	require.Len(t, writer.messages[0].Headers, 1)
	assert.Equal(t, "event_type", writer.messages[0].Headers[0].Key)
	assert.Equal(t, []byte("cart_updated"), writer.messages[0].Headers[0].Value)
}

func TestProcessUnpublishedEvents_PublishFailureLeavesEventUnmarked(t *testing.T) {
	repo := &mockOutboxRepo{events: []*r.OutboxEvent{testEvent(1, "alice")}}
	writer := &mockWriter{err: errors.New("broker unreachable")}
	poller := NewOutboxPollerWithWriter(repo, writer)

	poller.processUnpublishedEvents(context.Background())

	// event stays unprocessed, the next tick will retry it
	assert.Empty(t, repo.processed)
}

func TestProcessUnpublishedEvents_FetchFailureIsSilentlyRetried(t *testing.T) {
	repo := &mockOutboxRepo{fetchErr: errors.New("db down")}
	writer := &mockWriter{}
	poller := NewOutboxPollerWithWriter(repo, writer)

	poller.processUnpublishedEvents(context.Background())

	assert.Empty(t, writer.messages)
}

func TestProcessUnpublishedEvents_MarkFailureDoesNotStopBatch(t *testing.T) {
	repo := &mockOutboxRepo{
		events:  []*r.OutboxEvent{testEvent(1, "alice"), testEvent(2, "bob")},
		markErr: errors.New("db down"),
	}
	writer := &mockWriter{}
	poller := NewOutboxPollerWithWriter(repo, writer)

	poller.processUnpublishedEvents(context.Background())

	// both got published even though marking failed
	assert.Len(t, writer.messages, 2)
	assert.Empty(t, repo.processed)
}
