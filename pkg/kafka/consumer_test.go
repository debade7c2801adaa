package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcHandler struct {
	topic string
	calls int
	fn    func(call int, data []byte) error
}

func (h *funcHandler) Topic() string { return h.topic }

func (h *funcHandler) Handle(_ context.Context, data []byte) error {
	h.calls++
	return h.fn(h.calls, data)
}

type fakeCommitter struct {
	committed []kafka.Message
	err       error
}

func (c *fakeCommitter) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	c.committed = append(c.committed, msgs...)
	return nil
}

func testConsumer(retry int) *Consumer {
	return newConsumer(&ConsumerConfig{
		GroupID:     "test",
		WorkerCount: 1,
		BufferSize:  1,
		RetryMax:    retry,
		BackoffMin:  time.Millisecond,
		BackoffMax:  2 * time.Millisecond,
	})
}

func TestNewConsumer_RequiresBrokers(t *testing.T) {
	_, err := NewConsumer()
	assert.Error(t, err)
}

func TestConsumer_StartWithoutHandlers(t *testing.T) {
	c := testConsumer(0)
	assert.Error(t, c.Start())
}

func TestConsumer_ProcessCommitsOnSuccess(t *testing.T) {
	c := testConsumer(2)
	h := &funcHandler{topic: "outcomes", fn: func(int, []byte) error { return nil }}
	c.RegisterHandler(h)

	cm := &fakeCommitter{}
	ok := c.process(&message{topic: "outcomes", km: kafka.Message{Value: []byte("{}"), Offset: 7}}, cm)

	assert.True(t, ok)
	assert.Equal(t, 1, h.calls)
	require.Len(t, cm.committed, 1)
	assert.Equal(t, int64(7), cm.committed[0].Offset)
}

func TestConsumer_ProcessRetriesThenSucceeds(t *testing.T) {
	c := testConsumer(3)
	h := &funcHandler{topic: "outcomes", fn: func(call int, _ []byte) error {
		if call < 3 {
			return errors.New("transient")
		}
		return nil
	}}
	c.RegisterHandler(h)

	cm := &fakeCommitter{}
	assert.True(t, c.process(&message{topic: "outcomes"}, cm))
	assert.Equal(t, 3, h.calls)
	assert.Len(t, cm.committed, 1)
}

func TestConsumer_ProcessFailureWithoutDLQDoesNotCommit(t *testing.T) {
	c := testConsumer(1)
	h := &funcHandler{topic: "outcomes", fn: func(int, []byte) error { return errors.New("bad") }}
	c.RegisterHandler(h)

	cm := &fakeCommitter{}
	assert.False(t, c.process(&message{topic: "outcomes"}, cm))
	assert.Equal(t, 2, h.calls)
	assert.Empty(t, cm.committed)
}

func TestConsumer_ProcessFailureRoutesToDLQ(t *testing.T) {
	c := testConsumer(0)
	c.cfg.DLQTopic = "outcomes.dlq"
	dlq := &fakeWriter{}
	c.dlq = dlq
	c.RegisterHandler(&funcHandler{topic: "outcomes", fn: func(int, []byte) error { return errors.New("bad") }})

	cm := &fakeCommitter{}
	ok := c.process(&message{topic: "outcomes", km: kafka.Message{Key: []byte("k"), Value: []byte("v")}}, cm)

	assert.True(t, ok)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "outcomes.dlq", dlq.msgs[0].Topic)
	assert.Equal(t, "v", string(dlq.msgs[0].Value))
	assert.Equal(t, "source_topic", dlq.msgs[0].Headers[0].Key)
	assert.Len(t, cm.committed, 1)
}

func TestConsumer_ProcessRecoversPanics(t *testing.T) {
	c := testConsumer(0)
	c.RegisterHandler(&funcHandler{topic: "t", fn: func(int, []byte) error { panic("boom") }})
	assert.False(t, c.process(&message{topic: "t"}, &fakeCommitter{}))
}

func TestConsumer_UnknownTopicIgnored(t *testing.T) {
	c := testConsumer(0)
	assert.False(t, c.process(&message{topic: "missing"}, &fakeCommitter{}))
}

func TestConsumer_DuplicateHandlerKeepsFirst(t *testing.T) {
	c := testConsumer(0)
	first := &funcHandler{topic: "t", fn: func(int, []byte) error { return nil }}
	second := &funcHandler{topic: "t", fn: func(int, []byte) error { return nil }}
	c.RegisterHandler(first)
	c.RegisterHandler(second)

	c.process(&message{topic: "t"}, nil)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt <= 8; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 100*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 100*time.Millisecond)
	}
}

type recordingHook struct {
	NoopHook
	name  string
	trail *[]string
	fail  bool
}

func (h recordingHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	*h.trail = append(*h.trail, "before:"+h.name)
	if h.fail {
		return ctx, km, data, errors.New("rejected")
	}
	return ctx, km, data, nil
}

func (h recordingHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {
	*h.trail = append(*h.trail, "after:"+h.name)
}

func TestHookChain_Order(t *testing.T) {
	var trail []string
	chain := NewHookChain(recordingHook{name: "a", trail: &trail}, nil, recordingHook{name: "b", trail: &trail})

	c := testConsumer(0)
	c.WithConsumerHook(chain)
	c.RegisterHandler(&funcHandler{topic: "t", fn: func(int, []byte) error { return nil }})
	require.True(t, c.process(&message{topic: "t"}, nil))

	assert.Equal(t, []string{"before:a", "before:b", "after:b", "after:a"}, trail)
}

func TestHookChain_BeforeErrorSkipsHandler(t *testing.T) {
	var trail []string
	c := testConsumer(0)
	c.WithConsumerHook(NewHookChain(recordingHook{name: "a", trail: &trail, fail: true}))
	h := &funcHandler{topic: "t", fn: func(int, []byte) error { return nil }}
	c.RegisterHandler(h)

	assert.False(t, c.process(&message{topic: "t"}, &fakeCommitter{}))
	assert.Equal(t, 0, h.calls)
}

func TestLoggingHook_TraceID(t *testing.T) {
	h := NewLoggingHook(nil)
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	ctx, _, _, err := h.BeforeHandle(context.Background(), "t", km, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", TraceID(ctx))
	h.AfterHandle(ctx, "t", km, nil, nil)
}
