package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"opspulse/internal/config"
	"opspulse/internal/logger"
	"opspulse/internal/metrics"
	"opspulse/internal/models"
	"opspulse/internal/redis"

	"golang.org/x/time/rate"
)

// GeocodeResult представляет найденную точку адреса
type GeocodeResult struct {
	Coordinate  models.Coordinate `json:"coordinate"`
	DisplayName string            `json:"display_name"`
}

// GeocodingService переводит адреса в координаты через Nominatim
type GeocodingService struct {
	cfg     *config.GeocodingConfig
	client  *http.Client
	limiter *rate.Limiter
	cache   *CacheService
	log     *logger.Logger
}

// NewGeocodingService создает сервис геокодинга
func NewGeocodingService(cfg *config.GeocodingConfig, client *http.Client, cache *CacheService, log *logger.Logger) *GeocodingService {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &GeocodingService{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		cache:   cache,
		log:     log,
	}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode ищет адрес. Промах и любая ошибка возвращают nil: заказ создается без координат.
func (s *GeocodingService) Geocode(ctx context.Context, address string) *GeocodeResult {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil
	}

	key := redis.GenerateKey(redis.KeyPrefixGeocode, strings.ToLower(address))
	var cached GeocodeResult
	if found, _ := s.cache.Get(ctx, key, &cached); found {
		metrics.GeocodeResults.WithLabelValues("cached").Inc()
		return &cached
	}

	result, err := s.lookup(ctx, address)
	if err != nil {
		metrics.GeocodeResults.WithLabelValues("error").Inc()
		s.log.WithError(err).WithField("address", address).Warn("Geocoding failed")
		return nil
	}
	if result == nil {
		metrics.GeocodeResults.WithLabelValues("miss").Inc()
		s.log.WithField("address", address).Info("Address not found by geocoder")
		return nil
	}

	metrics.GeocodeResults.WithLabelValues("ok").Inc()
	_ = s.cache.Set(ctx, key, result, s.cache.GeocodeTTL())
	return result
}

func (s *GeocodingService) lookup(ctx context.Context, address string) (*GeocodeResult, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := address
	if s.cfg.Context != "" {
		query = address + ", " + s.cfg.Context
	}
	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", query)
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	// Nominatim отклоняет запросы без User-Agent
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding failed: %d", resp.StatusCode)
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(places) == 0 {
		return nil, nil
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", places[0].Lon, err)
	}

	return &GeocodeResult{
		Coordinate:  models.Coordinate{Latitude: lat, Longitude: lon},
		DisplayName: places[0].DisplayName,
	}, nil
}
