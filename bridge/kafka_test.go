package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridge_mock "github.com/ktao/dmhub/bridge/mock"
	"github.com/ktao/dmhub/store"
)

func testMessage() *store.Message {
	return &store.Message{
		ID:         42,
		SenderID:   9,
		ReceiverID: 4,
		Body:       "hi",
		SentAt:     time.Now(),
		Status:     store.StatusDelivered,
	}
}

func TestPublishKeyedByConversation(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	writer := bridge_mock.NewMockIKafkaWriter(mockCtrl)
	p := newTestPublisher(writer, 4096)

	writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msgs ...kafka.Message) error {
			require.Len(t, msgs, 1)
			assert.Equal(t, "4-9", string(msgs[0].Key))

			var ev MessageEvent
			require.NoError(t, json.Unmarshal(msgs[0].Value, &ev))
			assert.Equal(t, "4-9", ev.Conversation)
			assert.Equal(t, int64(42), ev.Message.ID)
			assert.Equal(t, store.StatusDelivered, ev.Message.Status)
			return nil
		}).Times(1)

	p.Publish(testMessage())
}

func TestPublishOversizeDropped(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	writer := bridge_mock.NewMockIKafkaWriter(mockCtrl)
	p := newTestPublisher(writer, 8)

	// No write expected: the event is dropped before reaching kafka.
	p.Publish(testMessage())
}

func TestPublishWriteErrorSwallowed(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	writer := bridge_mock.NewMockIKafkaWriter(mockCtrl)
	p := newTestPublisher(writer, 4096)

	writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Return(errors.New("broker down")).Times(1)

	// Must not panic or propagate; the send path ignores bridge errors.
	p.Publish(testMessage())
}

func TestNilPublisherNoop(t *testing.T) {
	var p *Publisher
	p.Publish(testMessage())
	assert.NoError(t, p.Close())
}
