package kafka

import (
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Topics used by the ledger services.
const (
	TopicPaymentReceived = "ledger.payment.received"
	TopicBalanceUpdate   = "ledger.balance.update"
	TopicDLQ             = "ledger.dlq"
)

// Event types for outbox
const (
	EventPaymentReceived = "ledger.payment.received"
	EventBalanceUpdated  = "ledger.balance.updated"
)

// Consumer groups
const (
	GroupPaymentWorker = "ledger.payment.worker"
	GroupBalanceWorker = "ledger.balance.worker"
)

// TopicForEvent maps an outbox event type to its topic. Unknown events go to the DLQ.
func TopicForEvent(eventType string) string {
	switch eventType {
	case EventPaymentReceived:
		return TopicPaymentReceived
	case EventBalanceUpdated:
		return TopicBalanceUpdate
	default:
		return TopicDLQ
	}
}

type Config struct {
	Brokers           []string
	ClientID          string
	ProducerTimeout   time.Duration
	RequiredAcks      kgo.Acks
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	MaxPollRecords    int
	MaxRetries        int
	RetryBackoff      time.Duration
}

func DefaultConfig(brokers []string) *Config {
	return &Config{
		Brokers:           brokers,
		ClientID:          "affiliate-ledger",
		ProducerTimeout:   10 * time.Second,
		RequiredAcks:      kgo.AllISRAcks(),
		SessionTimeout:    10 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		MaxPollRecords:    100,
		MaxRetries:        5,
		RetryBackoff:      1 * time.Second,
	}
}
