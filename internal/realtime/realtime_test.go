package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"opspulse/internal/logger"
	"opspulse/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_OrderStatus(t *testing.T) {
	ev, err := Decode([]byte(`{"event":"order_status","order_id":5,"new_status":"approved","assigned_agent_id":9,"owner_id":2}`))
	require.NoError(t, err)

	assert.Equal(t, models.EventTypeOrderStatus, ev.Type)
	data, ok := ev.Data.(models.OrderStatusEvent)
	require.True(t, ok)
	assert.Equal(t, int64(5), data.OrderID)
	assert.Equal(t, models.OrderStatusApproved, data.NewStatus)
	assert.Equal(t, int64(9), *data.AssignedAgentID)
	assert.Equal(t, int64(2), *data.OwnerID)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte(`{"event":"order_cancelled","order_id":1}`))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Decode([]byte(`{"event":"order_status","order_id":1,"new_status":"shipped"}`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte(`{"event":"location_update","agent_id":1}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncodeDecode_Location(t *testing.T) {
	data, err := Encode(&models.Event{
		Type: models.EventTypeLocationUpdate,
		Data: models.LocationUpdateEvent{AgentID: 9, Latitude: 9.01, Longitude: 38.76},
	})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"location_update"`)

	ev, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, models.LocationUpdateEvent{AgentID: 9, Latitude: 9.01, Longitude: 38.76}, ev.Data)
}

type fakeSource struct {
	frames []string
}

func (f fakeSource) Run(ctx context.Context, emit func([]byte)) error {
	for _, fr := range f.frames {
		emit([]byte(fr))
	}
	return nil
}

func TestChannel_PreservesOrderAndGoesOffline(t *testing.T) {
	ch := NewChannel(fakeSource{frames: []string{
		`{"event":"order_created","order_id":1,"customer_name":"A"}`,
		`garbage`,
		`{"event":"order_status","order_id":1,"new_status":"approved"}`,
	}}, 8, logger.NewDiscard())

	require.NoError(t, ch.Run(context.Background()))

	var kinds []models.EventType
	for ev := range ch.Events() {
		kinds = append(kinds, ev.Type)
	}
	assert.Equal(t, []models.EventType{models.EventTypeOrderCreated, models.EventTypeOrderStatus}, kinds)
	assert.Equal(t, StatusOffline, ch.Status())
}

func TestWebSocketSource_ReadsFramesUntilClose(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws/orders", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"order_created","order_id":7,"customer_name":"Tigist"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("{\"event\":\"user_signup\",\"user_id\":3}\n{\"event\":\"vehicle_registered\",\"vehicle_id\":4}"))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/orders"
	ch := NewChannel(NewWebSocketSource(url, "", logger.NewDiscard()), 8, logger.NewDiscard())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ch.Run(ctx))

	var events []*models.Event
	for ev := range ch.Events() {
		events = append(events, ev)
	}
	require.Len(t, events, 3)
	assert.Equal(t, int64(7), events[0].Data.(models.OrderCreatedEvent).OrderID)
	assert.Equal(t, models.EventTypeVehicleRegistered, events[2].Type)
	assert.Equal(t, StatusOffline, ch.Status())
}

func TestWebSocketSource_DialFailure(t *testing.T) {
	src := NewWebSocketSource("ws://127.0.0.1:1/ws/orders", "", logger.NewDiscard())
	ch := NewChannel(src, 1, logger.NewDiscard())

	err := ch.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StatusOffline, ch.Status())
}
