package realtime

import (
	"context"
	"errors"
	"sync/atomic"

	"opspulse/internal/logger"
	"opspulse/internal/metrics"
	"opspulse/internal/models"

	"github.com/sirupsen/logrus"
)

// Status представляет состояние канала
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusOnline     Status = "online"
	StatusOffline    Status = "offline"
)

// Channel разбирает кадры источника и складывает события в ограниченную очередь.
// После закрытия источника очередь закрывается, а статус становится offline.
type Channel struct {
	source Source
	queue  chan *models.Event
	status atomic.Value
	log    *logrus.Entry
}

// NewChannel создает канал поверх источника
func NewChannel(source Source, queueSize int, log *logger.Logger) *Channel {
	if queueSize <= 0 {
		queueSize = 1
	}
	c := &Channel{
		source: source,
		queue:  make(chan *models.Event, queueSize),
		log:    log.Component("realtime"),
	}
	c.status.Store(StatusConnecting)
	if n, ok := source.(connectNotifier); ok {
		n.OnConnect(c.markOnline)
	}
	return c
}

// Events возвращает очередь входящих событий в порядке поступления
func (c *Channel) Events() <-chan *models.Event {
	return c.queue
}

// Status возвращает текущее состояние канала
func (c *Channel) Status() Status {
	return c.status.Load().(Status)
}

// Run запускает источник и блокируется до его завершения
func (c *Channel) Run(ctx context.Context) error {
	defer func() {
		c.status.Store(StatusOffline)
		metrics.RealtimeOnline.Set(0)
		close(c.queue)
	}()

	err := c.source.Run(ctx, func(data []byte) {
		if c.Status() != StatusOnline {
			c.markOnline()
		}
		c.push(ctx, data)
	})
	if err != nil {
		c.log.WithError(err).Warn("Realtime channel closed with error, live updates paused")
		return err
	}
	c.log.Info("Realtime channel closed")
	return nil
}

func (c *Channel) markOnline() {
	c.status.Store(StatusOnline)
	metrics.RealtimeOnline.Set(1)
}

func (c *Channel) push(ctx context.Context, data []byte) {
	ev, err := Decode(data)
	if err != nil {
		result := "malformed"
		if errors.Is(err, ErrUnknownKind) {
			result = "unknown"
		}
		metrics.EventsReceived.WithLabelValues(result).Inc()
		c.log.WithError(err).Warn("Dropping realtime frame")
		return
	}
	metrics.EventsReceived.WithLabelValues("ok").Inc()

	select {
	case c.queue <- ev:
	case <-ctx.Done():
	}
}
