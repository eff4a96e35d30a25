package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is a simplified wrapper around Kafka records
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Partition int32
	Offset    int64
	Timestamp time.Time
	Headers   map[string]string
}

// Handler processes a single message. Return error to trigger retry.
type Handler func(ctx context.Context, msg *Message) error

// DeadLetter receives messages whose handler failed after all retries.
type DeadLetter interface {
	PublishWithHeaders(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

type Consumer struct {
	client *kgo.Client
	cfg    *Config
	topic  string
	group  string
	log    *zerolog.Logger
	dlq    DeadLetter
}

func NewConsumer(cfg *Config, group, topic string, log *zerolog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.SessionTimeout(cfg.SessionTimeout),
		kgo.HeartbeatInterval(cfg.HeartbeatInterval),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()), // Start from earliest if no offset
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &Consumer{
		client: client,
		cfg:    cfg,
		topic:  topic,
		group:  group,
		log:    log,
	}, nil
}

// WithDeadLetter routes exhausted messages to TopicDLQ.
func (c *Consumer) WithDeadLetter(dlq DeadLetter) *Consumer {
	c.dlq = dlq
	return c
}

// Run starts consuming messages and calls handler for each.
// Blocks until context is cancelled.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fetches := c.client.PollRecords(ctx, c.cfg.MaxPollRecords)
		if fetches.IsClientClosed() {
			return nil
		}
		for _, fe := range fetches.Errors() {
			// transient errors are common, keep polling
			c.log.Warn().Err(fe.Err).Str("topic", fe.Topic).Int32("partition", fe.Partition).Msg("kafka fetch error")
		}

		fetches.EachRecord(func(record *kgo.Record) {
			msg := &Message{
				Topic:     record.Topic,
				Key:       record.Key,
				Value:     record.Value,
				Partition: record.Partition,
				Offset:    record.Offset,
				Timestamp: record.Timestamp,
				Headers:   headersToMap(record.Headers),
			}

			if err := c.processWithRetry(ctx, handler, msg); err != nil {
				c.deadLetter(ctx, msg, err)
			}
		})

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.log.Error().Err(err).Str("group", c.group).Msg("failed to commit offsets")
		}
	}
}

func (c *Consumer) processWithRetry(ctx context.Context, handler Handler, msg *Message) error {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.RetryBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := handler(ctx, msg); err != nil {
			lastErr = err
			c.log.Warn().Err(err).Int("attempt", attempt+1).Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("message handler failed")
			continue
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Consumer) deadLetter(ctx context.Context, msg *Message, cause error) {
	c.log.Error().Err(cause).Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("message processing failed after retries")
	if c.dlq == nil {
		return
	}
	headers := map[string]string{
		"source_topic": msg.Topic,
		"error":        cause.Error(),
	}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	if err := c.dlq.PublishWithHeaders(ctx, TopicDLQ, msg.Key, msg.Value, headers); err != nil {
		c.log.Error().Err(err).Msg("failed to publish to dead letter topic")
	}
}

func (c *Consumer) Close() {
	c.client.Close()
}

func headersToMap(headers []kgo.RecordHeader) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Key] = string(h.Value)
	}
	return m
}
