package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/flowline-core/internal/infrastructure/config"
	"github.com/nerrad567/flowline-core/internal/infrastructure/logging"
	"github.com/nerrad567/flowline-core/internal/infrastructure/mqtt"
)

// Ingestor is the buffering sink rows are handed to. *influx.Client
// satisfies it.
type Ingestor interface {
	InsertRows(tableName string, rows []map[string]interface{}) error
	Flush()
}

// Broker is the subset of the MQTT client the relay needs.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Relay subscribes to the ingest topic namespace and feeds arriving
// rows into the buffering sink, flushing on a fixed interval so data
// from quiet producers still reaches the server.
type Relay struct {
	cfg    config.RelayConfig
	qos    byte
	broker Broker
	sink   Ingestor
	topics mqtt.Topics
	log    *logging.Logger
}

// New creates a relay. Run must be called to start it.
func New(cfg config.RelayConfig, qos byte, broker Broker, sink Ingestor, log *logging.Logger) *Relay {
	if log == nil {
		log = logging.Default()
	}
	return &Relay{
		cfg:    cfg,
		qos:    qos,
		broker: broker,
		sink:   sink,
		topics: mqtt.Topics{Prefix: cfg.TopicPrefix},
		log:    log.With("component", "relay"),
	}
}

// Run subscribes to the ingest namespace and blocks, flushing the sink
// on the configured interval, until the context is cancelled. A final
// flush runs on the way out; the caller still owns disconnecting the
// sink.
func (r *Relay) Run(ctx context.Context) error {
	pattern := r.topics.IngestWildcard()
	if err := r.broker.Subscribe(pattern, r.qos, r.handleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", pattern, err)
	}
	r.log.Info("ingest relay running",
		"pattern", pattern, "flush_interval", r.cfg.GetFlushInterval())

	ticker := time.NewTicker(r.cfg.GetFlushInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("ingest relay stopping")
			r.sink.Flush()
			return nil
		case <-ticker.C:
			r.sink.Flush()
		}
	}
}

// handleMessage routes one broker message into the sink. The topic's
// last segment names the table; the payload is one JSON row object or
// an array of them.
func (r *Relay) handleMessage(topic string, payload []byte) error {
	table, ok := r.topics.TableFromIngest(topic)
	if !ok {
		return fmt.Errorf("topic %q is outside the ingest namespace", topic)
	}

	rows, err := decodeRows(payload)
	if err != nil {
		return fmt.Errorf("decoding payload on %q: %w", topic, err)
	}
	return r.sink.InsertRows(table, rows)
}

// decodeRows parses a payload as a row object or an array of row
// objects. Numbers decode as json.Number so large epoch timestamps and
// integer counters survive without float rounding.
func decodeRows(payload []byte) ([]map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	if trimmed[0] == '[' {
		var rows []map[string]interface{}
		if err := dec.Decode(&rows); err != nil {
			return nil, err
		}
		return rows, nil
	}

	var row map[string]interface{}
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	return []map[string]interface{}{row}, nil
}
