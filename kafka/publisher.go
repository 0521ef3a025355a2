package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/KOMKZ/go-yogan-quota/logger"
	"github.com/KOMKZ/go-yogan-quota/quota"
)

// ViolationPublisher forwards quota violations to the security review topic
//
// Records are JSON encoded and keyed by bucket key, so every violation of one
// principal and category lands on the same partition in order.
type ViolationPublisher struct {
	producer Producer
	topic    string
}

var _ quota.ViolationSink = (*ViolationPublisher)(nil)

func NewViolationPublisher(producer Producer, topic string) *ViolationPublisher {
	return &ViolationPublisher{producer: producer, topic: topic}
}

// Publish implements quota.ViolationSink
func (p *ViolationPublisher) Publish(ctx context.Context, v quota.Violation) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal violation failed: %w", err)
	}

	headers := map[string]string{
		"content-type": "application/json",
		"category":     string(v.Category),
	}
	if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
		headers["trace_id"] = traceID
	}

	_, err = p.producer.Send(ctx, &Message{
		Topic:     p.topic,
		Key:       []byte(v.Key),
		Value:     data,
		Headers:   headers,
		Timestamp: v.Timestamp,
	})
	return err
}

// Topic destination topic
func (p *ViolationPublisher) Topic() string {
	return p.topic
}
