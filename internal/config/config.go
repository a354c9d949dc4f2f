// Package config loads service configuration from defaults, an optional
// YAML file and the environment.
//
// Every key maps onto an upper-case environment variable with dots replaced
// by underscores, so index.ttl is read from INDEX_TTL and db.host from DB_HOST.
// Corridors and the events dataset can only be supplied through the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/trafficpulse/trafficpulse/internal/database"
	"github.com/trafficpulse/trafficpulse/internal/events"
	"github.com/trafficpulse/trafficpulse/internal/traffic"
)

// FileEnv names the environment variable holding the config file path.
const FileEnv = "CONFIG_FILE"

// Events sources.
const (
	EventsSourceMemory   = "memory"
	EventsSourcePostgres = "postgres"
)

// Config is the complete service configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Log        LogConfig        `mapstructure:"log"`
	GoogleMaps GoogleMapsConfig `mapstructure:"google_maps"`
	Directions DirectionsConfig `mapstructure:"directions"`
	Routing    RoutingConfig    `mapstructure:"routing"`
	Index      IndexConfig      `mapstructure:"index"`
	Commute    CommuteConfig    `mapstructure:"commute"`
	Weather    WeatherConfig    `mapstructure:"weather"`
	CORS       CORSConfig       `mapstructure:"cors"`
	DB         database.Config  `mapstructure:"db"`
	Events     EventsConfig     `mapstructure:"events"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	OTel       OTelConfig       `mapstructure:"otel"`

	// Corridors overrides the built-in corridor set when non-empty.
	Corridors []traffic.Corridor `mapstructure:"corridors"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type GoogleMapsConfig struct {
	ServerKey string `mapstructure:"server_key"`
}

type DirectionsConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type RoutingConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type IndexConfig struct {
	TTL            time.Duration `mapstructure:"ttl"`
	RefreshPolicy  string        `mapstructure:"refresh_policy"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	RequireTraffic bool          `mapstructure:"require_traffic"`
}

type CommuteConfig struct {
	MaxModes int `mapstructure:"max_modes"`
}

type WeatherConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// EventsConfig selects the events repository. Items seeds the in-memory
// repository and replaces the built-in dataset when non-empty.
type EventsConfig struct {
	Source string         `mapstructure:"source"`
	Items  []events.Event `mapstructure:"items"`
}

type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	IndexTopic string   `mapstructure:"index_topic"`
}

// Enabled reports whether index updates should be published.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.IndexTopic != ""
}

type PubSubConfig struct {
	ProjectID    string `mapstructure:"project_id"`
	Subscription string `mapstructure:"subscription"`
}

// Enabled reports whether the worker should listen for Pub/Sub triggers.
func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.Subscription != ""
}

type WorkerConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	HealthPort  string        `mapstructure:"health_port"`
	WarmWeather bool          `mapstructure:"warm_weather"`
}

type OTelConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	ExporterOTLPEndpoint string `mapstructure:"exporter_otlp_endpoint"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "5050")
	v.SetDefault("app.env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("google_maps.server_key", "")
	v.SetDefault("directions.base_url", "")
	v.SetDefault("routing.timeout", 10*time.Second)
	v.SetDefault("index.ttl", 30*time.Second)
	v.SetDefault("index.refresh_policy", string(traffic.RefreshCoalesced))
	v.SetDefault("index.max_concurrency", 0)
	v.SetDefault("index.require_traffic", false)
	v.SetDefault("commute.max_modes", 6)
	v.SetDefault("weather.base_url", "")
	v.SetDefault("weather.cache_ttl", 5*time.Minute)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "trafficpulse")
	v.SetDefault("db.password", "localdev")
	v.SetDefault("db.name", "trafficpulse")
	v.SetDefault("db.ssl_mode", "disable")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 2)
	v.SetDefault("db.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("events.source", EventsSourceMemory)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.index_topic", "traffic.index.updated")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.subscription", "")
	v.SetDefault("worker.interval", 30*time.Second)
	v.SetDefault("worker.health_port", "8081")
	v.SetDefault("worker.warm_weather", true)
	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.exporter_otlp_endpoint", "localhost:4317")
}

// Load reads configuration. When path is empty the CONFIG_FILE environment
// variable is consulted; without either, only defaults and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(FileEnv)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	decoderConfigOption := viper.DecoderConfigOption(func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			dc.DecodeHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		)
	})
	if err := v.Unmarshal(&cfg, decoderConfigOption); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that cannot be expressed as defaults.
func (c *Config) Validate() error {
	var errs []error

	if _, err := traffic.ParseRefreshPolicy(c.Index.RefreshPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.Index.TTL <= 0 {
		errs = append(errs, errors.New("index.ttl must be positive"))
	}
	if c.Index.MaxConcurrency < 0 {
		errs = append(errs, errors.New("index.max_concurrency must not be negative"))
	}
	if c.Commute.MaxModes <= 0 {
		errs = append(errs, errors.New("commute.max_modes must be positive"))
	}
	if c.Routing.Timeout <= 0 {
		errs = append(errs, errors.New("routing.timeout must be positive"))
	}
	if c.Worker.Interval <= 0 {
		errs = append(errs, errors.New("worker.interval must be positive"))
	}
	if len(c.Corridors) > 0 {
		if err := traffic.ValidateCorridors(c.Corridors); err != nil {
			errs = append(errs, err)
		}
	}

	switch c.Events.Source {
	case EventsSourceMemory, EventsSourcePostgres:
	default:
		errs = append(errs, fmt.Errorf("events.source must be %q or %q, got %q",
			EventsSourceMemory, EventsSourcePostgres, c.Events.Source))
	}
	for i, e := range c.Events.Items {
		if err := e.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("events.items[%d]: %w", i, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RefreshPolicy returns the parsed index refresh policy.
func (c *Config) RefreshPolicy() traffic.RefreshPolicy {
	p, _ := traffic.ParseRefreshPolicy(c.Index.RefreshPolicy)
	return p
}
