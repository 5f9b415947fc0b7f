package dashboard

import (
	"context"
	"sync"
	"time"

	"opspulse/internal/logger"
	"opspulse/internal/metrics"
	"opspulse/internal/models"

	"github.com/sirupsen/logrus"
)

// LocationPusher отправляет местоположение агента на сервер
type LocationPusher interface {
	PushLocation(ctx context.Context, req models.PushLocationRequest) error
}

// PositionSource отдает текущую позицию устройства по таймеру
type PositionSource interface {
	Position(ctx context.Context) (models.Coordinate, error)
}

// Tracker передает позицию агента по таймеру и по событиям watch.
// Оба источника пишут в одну ячейку последней позиции, побеждает последняя запись.
type Tracker struct {
	agentID  int64
	pusher   LocationPusher
	source   PositionSource
	interval time.Duration
	log      *logrus.Entry

	mu      sync.Mutex
	last    *models.AgentLocation
	onWrite func(models.AgentLocation)

	watch chan models.Coordinate
}

// NewTracker создает трекер агента
func NewTracker(agentID int64, pusher LocationPusher, source PositionSource, interval time.Duration, log *logger.Logger) *Tracker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Tracker{
		agentID:  agentID,
		pusher:   pusher,
		source:   source,
		interval: interval,
		log:      log.Component("tracker").WithField("agent_id", agentID),
		watch:    make(chan models.Coordinate, 1),
	}
}

// OnWrite задает обработчик каждой записи позиции
func (t *Tracker) OnWrite(fn func(models.AgentLocation)) {
	t.mu.Lock()
	t.onWrite = fn
	t.mu.Unlock()
}

// Watch передает позицию из ленты наблюдения; непрочитанная позиция заменяется новой
func (t *Tracker) Watch(c models.Coordinate) {
	for {
		select {
		case t.watch <- c:
			return
		default:
		}
		select {
		case <-t.watch:
		default:
		}
	}
}

// Last возвращает последнюю записанную позицию
func (t *Tracker) Last() (models.AgentLocation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return models.AgentLocation{}, false
	}
	return *t.last, true
}

// Run работает до отмены контекста; таймер и лента останавливаются вместе
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.log.WithField("interval", t.interval).Info("Location tracking started")
	defer t.log.Info("Location tracking stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-t.watch:
			t.write(ctx, c)
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Tracker) tick(ctx context.Context) {
	if t.source != nil {
		c, err := t.source.Position(ctx)
		if err != nil {
			t.log.WithError(err).Debug("Position unavailable")
			return
		}
		t.write(ctx, c)
		return
	}
	if last, ok := t.Last(); ok {
		t.write(ctx, last.Coordinate())
	}
}

// write обновляет ячейку и отправляет позицию; ошибка отправки логируется и не прерывает трекинг
func (t *Tracker) write(ctx context.Context, c models.Coordinate) {
	loc := models.NewAgentLocation(t.agentID, c)

	t.mu.Lock()
	t.last = &loc
	onWrite := t.onWrite
	t.mu.Unlock()

	if onWrite != nil {
		onWrite(loc)
	}

	err := t.pusher.PushLocation(ctx, models.PushLocationRequest{
		AgentID:   loc.AgentID,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
	})
	metrics.LocationPushes.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		t.log.WithError(err).Warn("Failed to push location")
	}
}
