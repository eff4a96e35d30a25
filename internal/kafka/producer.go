package kafka

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"
)

func (m Message) record() *kgo.Record {
	return &kgo.Record{
		Topic:   m.Topic,
		Key:     m.Key,
		Value:   m.Value,
		Headers: mapToHeaders(m.Headers),
	}
}

type Producer struct {
	client *kgo.Client
	logger *zerolog.Logger
}

func NewProducer(cfg *Config, logger *zerolog.Logger) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequiredAcks(cfg.RequiredAcks),
		kgo.ProduceRequestTimeout(cfg.ProducerTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return &Producer{client: client, logger: logger}, nil
}

// PublishWithHeaders produces a single record and waits for the ack.
func (p *Producer) PublishWithHeaders(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	return p.client.ProduceSync(ctx, Message{Topic: topic, Key: key, Value: value, Headers: headers}.record()).FirstErr()
}

// PublishBatch produces msgs together and waits for every ack. errs[i] is the
// outcome of msgs[i].
func (p *Producer) PublishBatch(ctx context.Context, msgs []Message) []error {
	records := make([]*kgo.Record, len(msgs))
	index := make(map[*kgo.Record]int, len(msgs))
	for i, m := range msgs {
		records[i] = m.record()
		index[records[i]] = i
	}

	errs := make([]error, len(msgs))
	for _, res := range p.client.ProduceSync(ctx, records...) {
		errs[index[res.Record]] = res.Err
	}
	return errs
}

func mapToHeaders(m map[string]string) []kgo.RecordHeader {
	if len(m) == 0 {
		return nil
	}
	headers := make([]kgo.RecordHeader, 0, len(m))
	for k, v := range m {
		headers = append(headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	return headers
}

func (p *Producer) Close() {
	p.logger.Info().Msg("closing Kafka producer")
	p.client.Close()
}
