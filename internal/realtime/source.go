package realtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"opspulse/internal/logger"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
)

// Source доставляет сырые кадры событий.
// Run блокируется до закрытия соединения или отмены ctx и не переподключается.
type Source interface {
	Run(ctx context.Context, emit func([]byte)) error
}

// connectNotifier реализуют источники, которые сообщают об установленном соединении
type connectNotifier interface {
	OnConnect(fn func())
}

// WebSocketSource читает кадры из WebSocket канала бэкенда
type WebSocketSource struct {
	URL    string
	Token  string
	Dialer *websocket.Dialer
	log    *logger.Logger

	onConnect func()
}

// NewWebSocketSource создает источник WebSocket
func NewWebSocketSource(url, token string, log *logger.Logger) *WebSocketSource {
	return &WebSocketSource{URL: url, Token: token, Dialer: websocket.DefaultDialer, log: log}
}

// OnConnect задает функцию, вызываемую после подключения
func (s *WebSocketSource) OnConnect(fn func()) { s.onConnect = fn }

// Run подключается и читает кадры до закрытия соединения
func (s *WebSocketSource) Run(ctx context.Context, emit func([]byte)) error {
	header := http.Header{}
	if s.Token != "" {
		header.Set("Authorization", "Bearer "+s.Token)
	}

	conn, _, err := s.Dialer.DialContext(ctx, s.URL, header)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", s.URL, err)
	}
	defer conn.Close()

	s.log.WithField("url", s.URL).Info("Realtime WebSocket connected")
	if s.onConnect != nil {
		s.onConnect()
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("realtime read failed: %w", err)
		}
		// Кадр может содержать несколько событий, по одному на строку
		for _, line := range bytes.Split(data, []byte("\n")) {
			if line = bytes.TrimSpace(line); len(line) > 0 {
				emit(line)
			}
		}
	}
}

// Subscriber открывает подписку pub/sub
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) *goredis.PubSub
}

// RedisSource читает события из канала pub/sub, в который их публикует бэкенд
type RedisSource struct {
	client  Subscriber
	channel string
	log     *logger.Logger

	onConnect func()
}

// NewRedisSource создает источник Redis pub/sub
func NewRedisSource(client Subscriber, channel string, log *logger.Logger) *RedisSource {
	return &RedisSource{client: client, channel: channel, log: log}
}

// OnConnect задает функцию, вызываемую после подписки
func (s *RedisSource) OnConnect(fn func()) { s.onConnect = fn }

// Run подписывается на канал и передает сообщения до отмены ctx
func (s *RedisSource) Run(ctx context.Context, emit func([]byte)) error {
	ps := s.client.Subscribe(ctx, s.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}

	s.log.WithField("channel", s.channel).Info("Realtime Redis subscription active")
	if s.onConnect != nil {
		s.onConnect()
	}

	messages := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			emit([]byte(msg.Payload))
		}
	}
}
