package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server    ServerConfig    `json:"server"`
	API       APIConfig       `json:"api"`
	Realtime  RealtimeConfig  `json:"realtime"`
	Routing   RoutingConfig   `json:"routing"`
	Geocoding GeocodingConfig `json:"geocoding"`
	Tracking  TrackingConfig  `json:"tracking"`
	Session   SessionConfig   `json:"session"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Kafka     KafkaConfig     `json:"kafka"`
	Logger    LoggerConfig    `json:"logger"`
	Cache     CacheConfig     `json:"cache"`
}

// CacheConfig представляет конфигурацию кеширования маршрутов и геокодинга
type CacheConfig struct {
	Enabled    bool `json:"enabled"`
	RouteTTL   int  `json:"route_ttl"`   // TTL маршрутов (секунды)
	GeocodeTTL int  `json:"geocode_ttl"` // TTL результатов геокодинга (секунды)
}

// ServerConfig представляет конфигурацию локального HTTP сервера
type ServerConfig struct {
	Port         string  `json:"port"`
	Host         string  `json:"host"`
	ReadTimeout  int     `json:"read_timeout"`
	WriteTimeout int     `json:"write_timeout"`
	CommandRate  float64 `json:"command_rate"` // команд в секунду на клиента
	CommandBurst int     `json:"command_burst"`
}

// APIConfig представляет конфигурацию REST бэкенда OpsPulse
type APIConfig struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

// RealtimeConfig представляет конфигурацию канала событий
type RealtimeConfig struct {
	Source       string `json:"source"` // websocket | redis | kafka
	Path         string `json:"path"`
	RedisChannel string `json:"redis_channel"`
	QueueSize    int    `json:"queue_size"`
}

// RoutingConfig представляет конфигурацию провайдеров маршрутов
type RoutingConfig struct {
	ORSURL      string        `json:"ors_url"`
	ORSKey      string        `json:"ors_key"`
	OSRMURL     string        `json:"osrm_url"`
	Timeout     time.Duration `json:"timeout"`
	Concurrency int           `json:"concurrency"`
}

// GeocodingConfig представляет конфигурацию геокодера
type GeocodingConfig struct {
	URL       string  `json:"url"`
	UserAgent string  `json:"user_agent"`
	Context   string  `json:"context"`
	RateLimit float64 `json:"rate_limit"` // запросов в секунду
}

// TrackingConfig представляет конфигурацию трекинга агента
type TrackingConfig struct {
	Enabled  bool          `json:"enabled"`
	Interval time.Duration `json:"interval"`
}

// SessionConfig представляет параметры сессии дашборда
type SessionConfig struct {
	Profile  string `json:"profile"`
	Email    string `json:"email"`
	Password string `json:"-"`
	Token    string `json:"-"`
}

// DatabaseConfig представляет конфигурацию базы данных сессий
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig представляет конфигурацию Redis
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// KafkaConfig представляет конфигурацию Kafka
type KafkaConfig struct {
	Brokers        []string `json:"brokers"`
	GroupID        string   `json:"group_id"`
	Topics         Topics   `json:"topics"`
	JournalEnabled bool     `json:"journal_enabled"`
}

// Topics представляет список топиков Kafka
type Topics struct {
	Events  string `json:"events"`
	Journal string `json:"journal"`
}

// LoggerConfig представляет конфигурацию логгера
type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// Load загружает конфигурацию из .env файла и переменных окружения
func Load() *Config {
	// .env необязателен
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8090"),
			Host:         getEnv("SERVER_HOST", "127.0.0.1"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 30),
			CommandRate:  getEnvAsFloat("SERVER_COMMAND_RATE", 5),
			CommandBurst: getEnvAsInt("SERVER_COMMAND_BURST", 10),
		},
		API: APIConfig{
			BaseURL: strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8000/api"), "/"),
			Timeout: getEnvAsDuration("API_TIMEOUT", 15*time.Second),
		},
		Realtime: RealtimeConfig{
			Source:       getEnv("REALTIME_SOURCE", "websocket"),
			Path:         getEnv("REALTIME_PATH", "/ws/orders"),
			RedisChannel: getEnv("REALTIME_REDIS_CHANNEL", "ops_events"),
			QueueSize:    getEnvAsInt("REALTIME_QUEUE_SIZE", 256),
		},
		Routing: RoutingConfig{
			ORSURL:      getEnv("ROUTING_ORS_URL", "https://api.openrouteservice.org"),
			ORSKey:      getEnv("ROUTING_ORS_KEY", ""),
			OSRMURL:     getEnv("ROUTING_OSRM_URL", "https://router.project-osrm.org"),
			Timeout:     getEnvAsDuration("ROUTING_TIMEOUT", 10*time.Second),
			Concurrency: getEnvAsInt("ROUTING_CONCURRENCY", 4),
		},
		Geocoding: GeocodingConfig{
			URL:       getEnv("GEOCODING_URL", "https://nominatim.openstreetmap.org"),
			UserAgent: getEnv("GEOCODING_USER_AGENT", "OpsPulse/1.0"),
			Context:   getEnv("GEOCODING_CONTEXT", "Addis Ababa, Ethiopia"),
			RateLimit: getEnvAsFloat("GEOCODING_RATE_LIMIT", 1),
		},
		Tracking: TrackingConfig{
			Enabled:  getEnv("TRACKING_ENABLED", "true") == "true",
			Interval: getEnvAsDuration("TRACKING_INTERVAL", 30*time.Second),
		},
		Session: SessionConfig{
			Profile:  getEnv("SESSION_PROFILE", "default"),
			Email:    getEnv("SESSION_EMAIL", ""),
			Password: getEnv("SESSION_PASSWORD", ""),
			Token:    getEnv("SESSION_TOKEN", ""),
		},
		Database: DatabaseConfig{
			Enabled:  getEnv("DB_ENABLED", "false") == "true",
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "opspulse"),
			Password: getEnv("DB_PASSWORD", "opspulse"),
			DBName:   getEnv("DB_NAME", "opspulse_dashboard"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "false") == "true",
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv("KAFKA_GROUP_ID", sessionGroupID()),
			Topics: Topics{
				Events:  getEnv("KAFKA_TOPIC_EVENTS", "ops_events"),
				Journal: getEnv("KAFKA_TOPIC_JOURNAL", "ops_events_journal"),
			},
			JournalEnabled: getEnv("KAFKA_JOURNAL_ENABLED", "false") == "true",
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		Cache: CacheConfig{
			Enabled:    getEnv("CACHE_ENABLED", "true") == "true",
			RouteTTL:   getEnvAsInt("CACHE_ROUTE_TTL", 3600),     // 1 час
			GeocodeTTL: getEnvAsInt("CACHE_GEOCODE_TTL", 86400), // 1 сутки
		},
	}
}

// sessionGroupID возвращает отдельную группу потребителей для каждой сессии
func sessionGroupID() string {
	return "opspulse-dashboard-" + uuid.NewString()
}

// WebSocketURL возвращает адрес канала событий, полученный из REST адреса
func (c *APIConfig) WebSocketURL(path string) string {
	base := c.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + path
}

// getEnv получает значение переменной окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int с значением по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration понимает как "15s", так и число секунд
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
