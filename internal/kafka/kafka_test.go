package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"opspulse/internal/logger"
	"opspulse/internal/models"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducer_PublishesFlatFrame(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"event":"order_status","order_id":5,"new_status":"approved","assigned_agent_id":9}` {
			return errors.New("unexpected payload: " + string(val))
		}
		return nil
	})

	p := NewProducerWith(sp, "journal", logger.NewDiscard())
	err := p.Publish(&models.Event{
		ID:        uuid.New(),
		Type:      models.EventTypeOrderStatus,
		Timestamp: time.Now(),
		Data:      models.OrderStatusEvent{OrderID: 5, NewStatus: models.OrderStatusApproved, AssignedAgentID: models.Int64(9)},
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestProducer_SendFailure(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducerWith(sp, "journal", logger.NewDiscard())
	err := p.Publish(&models.Event{
		Type: models.EventTypeVehicleApproved,
		Data: models.VehicleEvent{VehicleID: models.Int64(3)},
	})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	_ = p.Close()
}

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked int
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(*sarama.ConsumerMessage, string) { s.marked++ }

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestConsumer_ConsumeClaimEmitsValues(t *testing.T) {
	var got []string
	c := &Consumer{log: logger.NewDiscard(), emit: func(b []byte) { got = append(got, string(b)) }}

	claim := fakeClaim{messages: make(chan *sarama.ConsumerMessage, 2)}
	claim.messages <- &sarama.ConsumerMessage{Topic: "ops_events", Value: []byte(`{"event":"user_signup"}`)}
	claim.messages <- &sarama.ConsumerMessage{Topic: "ops_events", Value: []byte(`{"event":"vehicle_approved"}`)}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, c.ConsumeClaim(session, claim))

	assert.Equal(t, []string{`{"event":"user_signup"}`, `{"event":"vehicle_approved"}`}, got)
	assert.Equal(t, 2, session.marked)
}
