package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"opspulse/internal/config"
	"opspulse/internal/geo"
	"opspulse/internal/logger"
	"opspulse/internal/metrics"
	"opspulse/internal/models"
	"opspulse/internal/redis"

	"golang.org/x/sync/errgroup"
)

// Провайдеры маршрутов в порядке обращения
const (
	ProviderORS       = "ors"
	ProviderOSRM      = "osrm"
	ProviderSynthetic = "synthetic"
)

const (
	// minRoutePoints - маршрут с меньшим числом точек считается прямой линией
	minRoutePoints = 3
	// minSyntheticSegments - минимальное число отрезков синтетического маршрута
	minSyntheticSegments = 5
)

var (
	// ErrProviderSkipped возвращается, если провайдер не настроен
	ErrProviderSkipped = errors.New("routing provider not configured")
	// ErrDegenerateRoute возвращается, если провайдер вернул меньше трех точек
	ErrDegenerateRoute = errors.New("degenerate route")
)

// RouteService строит маршруты по цепочке ORS, OSRM и синтетической прямой
type RouteService struct {
	cfg    *config.RoutingConfig
	client *http.Client
	cache  *CacheService
	log    *logger.Logger
}

// NewRouteService создает сервис маршрутов
func NewRouteService(cfg *config.RoutingConfig, cache *CacheService, log *logger.Logger) *RouteService {
	return &RouteService{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  cache,
		log:    log,
	}
}

// Resolve всегда возвращает пригодный для отрисовки маршрут.
// Ошибки провайдеров логируются, цепочка продолжается.
func (s *RouteService) Resolve(ctx context.Context, origin, destination models.Coordinate) models.Route {
	key := routeKey(origin, destination)

	var cached models.Route
	if found, _ := s.cache.Get(ctx, key, &cached); found {
		if len(cached.Points) >= minRoutePoints {
			metrics.RouteResolutions.WithLabelValues(cached.Provider, "cached").Inc()
			return cached
		}
		// Вырожденная запись не должна перекрывать ответ провайдера
		_ = s.cache.Delete(ctx, key)
	}

	providers := []struct {
		name  string
		fetch func(context.Context, models.Coordinate, models.Coordinate) (*models.Route, error)
	}{
		{ProviderORS, s.fetchORS},
		{ProviderOSRM, s.fetchOSRM},
	}

	for _, p := range providers {
		start := time.Now()
		route, err := p.fetch(ctx, origin, destination)
		if errors.Is(err, ErrProviderSkipped) {
			continue
		}
		metrics.RouteDuration.WithLabelValues(p.name).Observe(time.Since(start).Seconds())
		if err == nil && len(route.Points) < minRoutePoints {
			err = fmt.Errorf("%w: %d points", ErrDegenerateRoute, len(route.Points))
		}
		if err != nil {
			metrics.RouteResolutions.WithLabelValues(p.name, "error").Inc()
			s.log.WithError(err).WithField("provider", p.name).Warn("Routing provider failed, falling back")
			continue
		}

		metrics.RouteResolutions.WithLabelValues(p.name, "ok").Inc()
		route.Provider = p.name
		_ = s.cache.Set(ctx, key, route, s.cache.RouteTTL())
		return *route
	}

	metrics.RouteResolutions.WithLabelValues(ProviderSynthetic, "ok").Inc()
	return SyntheticRoute(origin, destination)
}

// ResolveBatch строит маршруты для всех пар параллельно и возвращается, когда завершатся все
func (s *RouteService) ResolveBatch(ctx context.Context, pairs []models.RoutePair) map[int64]models.Route {
	routes := make([]models.Route, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.Concurrency > 0 {
		g.SetLimit(s.cfg.Concurrency)
	}
	for i, pair := range pairs {
		g.Go(func() error {
			// Resolve не возвращает ошибок, поэтому неудача одной пары не отменяет остальные
			routes[i] = s.Resolve(gctx, pair.Origin, pair.Destination)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[int64]models.Route, len(pairs))
	for i, pair := range pairs {
		out[pair.OrderID] = routes[i]
	}
	return out
}

// SyntheticRoute строит прямую между точками; число отрезков растет с расстоянием
func SyntheticRoute(origin, destination models.Coordinate) models.Route {
	segments := int(math.Floor(geo.EuclideanDegrees(origin, destination) * 100))
	if segments < minSyntheticSegments {
		segments = minSyntheticSegments
	}
	return models.Route{
		Points:   geo.Interpolate(origin, destination, segments),
		Provider: ProviderSynthetic,
	}
}

func routeKey(origin, destination models.Coordinate) string {
	return redis.GenerateKey(redis.KeyPrefixRoute, fmt.Sprintf("%.5f,%.5f:%.5f,%.5f",
		origin.Latitude, origin.Longitude, destination.Latitude, destination.Longitude))
}

type orsResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Summary struct {
				Distance *float64 `json:"distance"`
				Duration *float64 `json:"duration"`
			} `json:"summary"`
		} `json:"properties"`
	} `json:"features"`
}

func (s *RouteService) fetchORS(ctx context.Context, origin, destination models.Coordinate) (*models.Route, error) {
	if s.cfg.ORSKey == "" || s.cfg.ORSURL == "" {
		return nil, ErrProviderSkipped
	}

	q := url.Values{}
	q.Set("api_key", s.cfg.ORSKey)
	q.Set("start", lonLat(origin))
	q.Set("end", lonLat(destination))

	var resp orsResponse
	if err := s.getJSON(ctx, s.cfg.ORSURL+"/v2/directions/driving-car?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if len(resp.Features) == 0 {
		return nil, fmt.Errorf("%w: no features", ErrDegenerateRoute)
	}

	f := resp.Features[0]
	return &models.Route{
		Points:          fromLonLat(f.Geometry.Coordinates),
		DistanceMeters:  f.Properties.Summary.Distance,
		DurationSeconds: f.Properties.Summary.Duration,
	}, nil
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Distance *float64 `json:"distance"`
		Duration *float64 `json:"duration"`
	} `json:"routes"`
}

func (s *RouteService) fetchOSRM(ctx context.Context, origin, destination models.Coordinate) (*models.Route, error) {
	if s.cfg.OSRMURL == "" {
		return nil, ErrProviderSkipped
	}

	endpoint := fmt.Sprintf("%s/route/v1/driving/%s;%s?overview=full&geometries=geojson&steps=false",
		s.cfg.OSRMURL, lonLat(origin), lonLat(destination))

	var resp osrmResponse
	if err := s.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "Ok" || len(resp.Routes) == 0 {
		return nil, fmt.Errorf("%w: osrm code %q", ErrDegenerateRoute, resp.Code)
	}

	r := resp.Routes[0]
	return &models.Route{
		Points:          fromLonLat(r.Geometry.Coordinates),
		DistanceMeters:  r.Distance,
		DurationSeconds: r.Duration,
	}, nil
}

func (s *RouteService) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func lonLat(c models.Coordinate) string {
	return fmt.Sprintf("%f,%f", c.Longitude, c.Latitude)
}

// fromLonLat переводит пары GeoJSON [lon, lat] в координаты
func fromLonLat(coords [][]float64) []models.Coordinate {
	points := make([]models.Coordinate, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		points = append(points, models.Coordinate{Latitude: c[1], Longitude: c[0]})
	}
	return points
}
