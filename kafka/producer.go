package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-yogan-quota/logger"
)

// ErrProducerClosed Send after Close
var ErrProducerClosed = errors.New("producer is closed")

// Message outbound message
type Message struct {
	Topic string

	// Key partitioning key
	Key   []byte
	Value []byte

	Headers   map[string]string
	Timestamp time.Time
}

// ProducerResult broker acknowledgment
type ProducerResult struct {
	Topic     string
	Partition int32
	Offset    int64
}

// Producer synchronous message producer
type Producer interface {
	Send(ctx context.Context, msg *Message) (*ProducerResult, error)
	Close() error
}

// SyncProducer Producer on top of sarama.SyncProducer
type SyncProducer struct {
	producer sarama.SyncProducer
	logger   logger.CtxLogger

	mu     sync.RWMutex
	closed bool
}

// NewSyncProducer creates a producer connected to brokers
func NewSyncProducer(brokers []string, saramaCfg *sarama.Config, log logger.CtxLogger) (*SyncProducer, error) {
	producer, err := sarama.NewSyncProducer(brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("create sync producer failed: %w", err)
	}
	return NewSyncProducerFrom(producer, log), nil
}

// NewSyncProducerFrom wraps an existing sarama producer (shared client or mocks)
func NewSyncProducerFrom(producer sarama.SyncProducer, log logger.CtxLogger) *SyncProducer {
	if log == nil {
		log = logger.GetLogger("kafka")
	}
	return &SyncProducer{producer: producer, logger: log}
}

// Send blocks until the broker acknowledges msg
func (p *SyncProducer) Send(ctx context.Context, msg *Message) (*ProducerResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrProducerClosed
	}

	if msg == nil {
		return nil, fmt.Errorf("message cannot be nil")
	}
	if msg.Topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	saramaMsg := &sarama.ProducerMessage{
		Topic:     msg.Topic,
		Value:     sarama.ByteEncoder(msg.Value),
		Timestamp: msg.Timestamp,
	}
	if len(msg.Key) > 0 {
		saramaMsg.Key = sarama.ByteEncoder(msg.Key)
	}
	for k, v := range msg.Headers {
		saramaMsg.Headers = append(saramaMsg.Headers, sarama.RecordHeader{
			Key:   []byte(k),
			Value: []byte(v),
		})
	}

	partition, offset, err := p.producer.SendMessage(saramaMsg)
	if err != nil {
		p.logger.ErrorCtx(ctx, "Send message failed",
			zap.String("topic", msg.Topic),
			zap.Error(err))
		return nil, fmt.Errorf("send message failed: %w", err)
	}

	p.logger.DebugCtx(ctx, "Message sent",
		zap.String("topic", msg.Topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))

	return &ProducerResult{Topic: msg.Topic, Partition: partition, Offset: offset}, nil
}

// Close is idempotent
func (p *SyncProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.producer.Close()
}
