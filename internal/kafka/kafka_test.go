package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicForEvent(t *testing.T) {
	assert.Equal(t, TopicPaymentReceived, TopicForEvent(EventPaymentReceived))
	assert.Equal(t, TopicBalanceUpdate, TopicForEvent(EventBalanceUpdated))
	assert.Equal(t, TopicDLQ, TopicForEvent("something.else"))
}

func TestHeadersRoundTrip(t *testing.T) {
	in := map[string]string{"correlation_id": "abc", "source_topic": "ledger.payment.received"}
	assert.Equal(t, in, headersToMap(mapToHeaders(in)))
	assert.Nil(t, mapToHeaders(nil))
}

func TestMessageRecord(t *testing.T) {
	rec := Message{
		Topic:   TopicBalanceUpdate,
		Key:     []byte("user-1"),
		Value:   []byte(`{"kind":"revenue.credited"}`),
		Headers: map[string]string{"event_type": EventBalanceUpdated},
	}.record()

	assert.Equal(t, TopicBalanceUpdate, rec.Topic)
	assert.Equal(t, []byte("user-1"), rec.Key)
	assert.Equal(t, map[string]string{"event_type": EventBalanceUpdated}, headersToMap(rec.Headers))
	assert.Equal(t, "affiliate-ledger", DefaultConfig(nil).ClientID)
}
