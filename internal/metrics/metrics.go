// Package metrics объявляет метрики Prometheus дашборда.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsReceived считает кадры канала реального времени по результату разбора
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opspulse_realtime_frames_total",
		Help: "Realtime frames received, by decode result",
	}, []string{"result"})

	// EventsApplied считает события, обработанные сверкой
	EventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opspulse_events_applied_total",
		Help: "Realtime events processed by the reconciler, by kind and outcome",
	}, []string{"kind", "outcome"})

	// RouteResolutions считает результаты построения маршрутов по провайдеру
	RouteResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opspulse_route_resolutions_total",
		Help: "Route resolutions by provider and result",
	}, []string{"provider", "result"})

	// RouteDuration измеряет время обращения к провайдеру маршрутов
	RouteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opspulse_route_provider_duration_seconds",
		Help:    "Time spent calling a routing provider",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"provider"})

	// GeocodeResults считает результаты геокодинга
	GeocodeResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opspulse_geocode_results_total",
		Help: "Geocoding lookups by result",
	}, []string{"result"})

	// CommandResults считает команды дашборда
	CommandResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opspulse_commands_total",
		Help: "Dashboard commands by name and result",
	}, []string{"command", "result"})

	// LocationPushes считает отправки местоположения агента
	LocationPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opspulse_location_pushes_total",
		Help: "Agent location pushes by result",
	}, []string{"result"})

	// RealtimeOnline показывает, подключен ли канал событий
	RealtimeOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "opspulse_realtime_online",
		Help: "1 while the realtime channel is connected",
	})
)

// Result возвращает метку результата по ошибке
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
