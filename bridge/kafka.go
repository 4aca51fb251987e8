// Package bridge publishes persisted message events to Kafka for
// downstream consumers (archival, analytics). Publishing is best-effort:
// the durable log is the source of truth and a bridge failure never
// fails the send that triggered it.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/glog"
	kafka "github.com/segmentio/kafka-go"

	"github.com/ktao/dmhub/convo"
	"github.com/ktao/dmhub/metrics"
	"github.com/ktao/dmhub/store"
)

const writeTimeout = 3 * time.Second

type IKafkaWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// MessageEvent is the published record for one persisted message.
type MessageEvent struct {
	Conversation string         `json:"conversation"`
	Message      *store.Message `json:"message"`
}

// Publisher writes message events to a topic. A nil *Publisher is a
// valid no-op, so callers never branch on whether the bridge is enabled.
type Publisher struct {
	writer   IKafkaWriter
	maxBytes int
}

func NewPublisher(brokers []string, topic string, maxBytes int) *Publisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.Hash{},
		Dialer: &kafka.Dialer{
			Timeout:   writeTimeout,
			DualStack: true,
		},
	})
	return &Publisher{writer: w, maxBytes: maxBytes}
}

// newTestPublisher injects a writer; used by tests.
func newTestPublisher(w IKafkaWriter, maxBytes int) *Publisher {
	return &Publisher{writer: w, maxBytes: maxBytes}
}

// Publish sends one message event, keyed by conversation so one
// conversation stays on one partition.
func (p *Publisher) Publish(msg *store.Message) {
	if p == nil {
		return
	}
	if err := p.publish(msg); err != nil {
		metrics.BridgeErrors.Inc()
		glog.Errorf("bridge: publish message %d: %v", msg.ID, err)
	}
}

func (p *Publisher) publish(msg *store.Message) error {
	key := convo.KeyOf(msg.SenderID, msg.ReceiverID)
	value, err := json.Marshal(&MessageEvent{
		Conversation: key.String(),
		Message:      msg,
	})
	if err != nil {
		return fmt.Errorf("error marshal event: %v", err)
	}
	if p.maxBytes > 0 && len(value) > p.maxBytes {
		return fmt.Errorf("event exceeds max limit: %d bytes", p.maxBytes)
	}

	km := kafka.Message{
		Key:   []byte(key.String()),
		Value: value,
		Time:  msg.SentAt,
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("error write to kafka: %v", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
