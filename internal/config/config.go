package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Loader    LoaderConfig    `yaml:"loader"`
	Events    EventsConfig    `yaml:"events"`
	Auth      AuthConfig      `yaml:"auth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	RESTPort int    `yaml:"rest_port"`
	NodeID   string `yaml:"node_id"`
}

// Backend хранилища наборов чанков
const (
	BackendBadger = "badger"
	BackendFile   = "file"
	BackendMaria  = "maria"
	BackendMemory = "memory"
)

type StorageConfig struct {
	Backend      string `yaml:"backend"`
	DataPath     string `yaml:"data_path"`
	FileName     string `yaml:"file_name"`
	MariaDSN     string `yaml:"maria_dsn"`
	Uncompressed bool   `yaml:"uncompressed"`
	LittleEndian bool   `yaml:"little_endian"`
}

type CacheConfig struct {
	Enabled       bool   `yaml:"enabled"`
	RedisURL      string `yaml:"redis_url"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`
	TTLSeconds    int    `yaml:"ttl_seconds"`
	NATSURL       string `yaml:"nats_url"`
	Subject       string `yaml:"subject"`
}

// TTL возвращает время жизни записей кеша
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// PinnedChunk чанк, который закрепляется при старте
type PinnedChunk struct {
	X int32 `yaml:"x"`
	Z int32 `yaml:"z"`
}

type LoaderConfig struct {
	AutosaveSeconds int                      `yaml:"autosave_seconds"`
	Pinned          map[string][]PinnedChunk `yaml:"pinned"`
}

// AutosaveInterval возвращает интервал автосохранения; 0 — выключено
func (l *LoaderConfig) AutosaveInterval() time.Duration {
	if l.AutosaveSeconds <= 0 {
		return 0
	}
	return time.Duration(l.AutosaveSeconds) * time.Second
}

// EventsConfig шина событий чанков; без NATSURL используется шина в памяти
type EventsConfig struct {
	Enabled          bool   `yaml:"enabled"`
	NATSURL          string `yaml:"nats_url"`
	Stream           string `yaml:"stream"`
	RetentionMinutes int    `yaml:"retention_minutes"`
	BufferSize       int    `yaml:"buffer_size"`
}

// Retention время хранения событий в стриме JetStream
func (e *EventsConfig) Retention() time.Duration {
	return time.Duration(e.RetentionMinutes) * time.Minute
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// GetJWTSecret возвращает секрет с fallback на переменную окружения
func (a *AuthConfig) GetJWTSecret() string {
	if a.JWTSecret != "" {
		return a.JWTSecret
	}
	return os.Getenv("CHUNKLOADER_JWT_SECRET")
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	Dir          string `yaml:"dir"`
	ConsoleLevel string `yaml:"console_level"`
	FileLevel    string `yaml:"file_level"`
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "CHUNKLOADER_REST_PORT", 8088)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendBadger
	}
	if c.Storage.DataPath == "" {
		c.Storage.DataPath = "data"
	}
	if c.Storage.FileName == "" {
		c.Storage.FileName = "chunks.dat"
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "chunkloader:set:"
	}
	if c.Cache.Subject == "" {
		c.Cache.Subject = "chunkloader.invalidate"
	}
	if c.Cache.RedisURL == "" {
		c.Cache.RedisURL = "localhost:6379"
	}
	if c.Events.Stream == "" {
		c.Events.Stream = "CHUNK_EVENTS"
	}
	if c.Events.RetentionMinutes == 0 {
		c.Events.RetentionMinutes = 24 * 60
	}
	if c.Events.BufferSize == 0 {
		c.Events.BufferSize = 1024
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "chunkloader"
	}
	if c.Server.NodeID == "" {
		if host, err := os.Hostname(); err == nil {
			c.Server.NodeID = host
		} else {
			c.Server.NodeID = "chunkloader"
		}
	}
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendBadger, BackendFile, BackendMemory:
	case BackendMaria:
		if c.Storage.MariaDSN == "" {
			return fmt.Errorf("storage.maria_dsn обязателен для backend %q", BackendMaria)
		}
	default:
		return fmt.Errorf("неизвестный storage.backend %q", c.Storage.Backend)
	}
	if c.Loader.AutosaveSeconds < 0 {
		return fmt.Errorf("loader.autosave_seconds не может быть отрицательным")
	}
	if c.Events.BufferSize < 0 || c.Events.RetentionMinutes < 0 {
		return fmt.Errorf("events.buffer_size и events.retention_minutes не могут быть отрицательными")
	}
	return nil
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV CHUNKLOADER_CONFIG или возвращает nil, nil.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CHUNKLOADER_CONFIG")
		if path == "" {
			return nil, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse разбирает YAML и дополняет его значениями по умолчанию
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
