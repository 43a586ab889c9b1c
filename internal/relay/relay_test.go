package relay

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/flowline-core/internal/infrastructure/config"
	"github.com/nerrad567/flowline-core/internal/infrastructure/logging"
	"github.com/nerrad567/flowline-core/internal/infrastructure/mqtt"
)

// ============================================================================
// Fakes
// ============================================================================

type fakeSink struct {
	mu      sync.Mutex
	inserts map[string][][]map[string]interface{}
	flushes int
}

func newFakeSink() *fakeSink {
	return &fakeSink{inserts: map[string][][]map[string]interface{}{}}
}

func (s *fakeSink) InsertRows(table string, rows []map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts[table] = append(s.inserts[table], rows)
	return nil
}

func (s *fakeSink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
}

func (s *fakeSink) flushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

type fakeBroker struct {
	mu      sync.Mutex
	topic   string
	qos     byte
	handler mqtt.MessageHandler
}

func (b *fakeBroker) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topic = topic
	b.qos = qos
	b.handler = handler
	return nil
}

func (b *fakeBroker) subscribed() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.topic, b.handler != nil
}

func testRelay(sink *fakeSink, broker *fakeBroker) *Relay {
	cfg := config.RelayConfig{FlushInterval: 1, TopicPrefix: "flowline/ingest"}
	return New(cfg, 1, broker, sink, logging.Default())
}

// ============================================================================
// Message Handling Tests
// ============================================================================

func TestHandleMessageSingleRow(t *testing.T) {
	sink := newFakeSink()
	r := testRelay(sink, &fakeBroker{})

	payload := []byte(`{"host":"node1","usage":0.42,"time":1700000000}`)
	if err := r.handleMessage("flowline/ingest/cpu", payload); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	batches := sink.inserts["cpu"]
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("inserts = %+v, want one batch of one row", batches)
	}
	if got := batches[0][0]["time"]; got != json.Number("1700000000") {
		t.Errorf("time decoded as %T %v, want json.Number", got, got)
	}
}

func TestHandleMessageRowArray(t *testing.T) {
	sink := newFakeSink()
	r := testRelay(sink, &fakeBroker{})

	payload := []byte(`[{"usage":1},{"usage":2},{"usage":3}]`)
	if err := r.handleMessage("flowline/ingest/cpu", payload); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	batches := sink.inserts["cpu"]
	if len(batches) != 1 || len(batches[0]) != 3 {
		t.Errorf("inserts = %+v, want one batch of three rows", batches)
	}
}

func TestHandleMessageRejectsForeignTopic(t *testing.T) {
	sink := newFakeSink()
	r := testRelay(sink, &fakeBroker{})

	if err := r.handleMessage("other/topic", []byte(`{}`)); err == nil {
		t.Errorf("expected error for topic outside the ingest namespace")
	}
	if len(sink.inserts) != 0 {
		t.Errorf("foreign topic reached the sink: %+v", sink.inserts)
	}
}

func TestHandleMessageRejectsMalformedPayload(t *testing.T) {
	sink := newFakeSink()
	r := testRelay(sink, &fakeBroker{})

	for _, payload := range []string{"", "   ", "not json", `["mixed", 1]`} {
		if err := r.handleMessage("flowline/ingest/cpu", []byte(payload)); err == nil {
			t.Errorf("payload %q: expected decode error", payload)
		}
	}
}

// ============================================================================
// Run Loop Tests
// ============================================================================

func TestRunSubscribesAndFlushesOnShutdown(t *testing.T) {
	sink := newFakeSink()
	broker := &fakeBroker{}
	r := testRelay(sink, broker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// Give Run a moment to subscribe before cancelling.
	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := broker.subscribed(); ok || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not return after cancel")
	}

	if topic, _ := broker.subscribed(); topic != "flowline/ingest/+" {
		t.Errorf("subscribed to %q, want flowline/ingest/+", topic)
	}
	if sink.flushCount() < 1 {
		t.Errorf("no final flush on shutdown")
	}
}
