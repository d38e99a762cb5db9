// Package config loads the fetch job configuration from a file, EXORDE_*
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/exorde-client/pkg/client"
	"github.com/Sternrassler/exorde-client/pkg/logging"
	"github.com/Sternrassler/exorde-client/pkg/output"
	"github.com/Sternrassler/exorde-client/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. EXORDE_API_KEY.
const EnvPrefix = "EXORDE"

// Config represents the complete configuration of a fetch job.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Output  OutputConfig  `mapstructure:"output"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// APIConfig contains the analytics API connection settings.
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Key               string        `mapstructure:"key"`
	Version           string        `mapstructure:"version"`
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// RedisConfig enables the page cache and shared quota state when Address is set.
type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	Database int           `mapstructure:"database"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// FetchConfig describes what to fetch.
type FetchConfig struct {
	// Endpoint is used by single-metric fetches. Paths resolve against the base URL.
	Endpoint string `mapstructure:"endpoint"`

	// Endpoints are fanned out by keyword-group fetches.
	Endpoints []string `mapstructure:"endpoints"`

	StartDate string               `mapstructure:"start_date"`
	EndDate   string               `mapstructure:"end_date"`
	Interval  int                  `mapstructure:"interval"`
	Limit     int                  `mapstructure:"limit"`
	Keywords  string               `mapstructure:"keywords"`
	Condition pagination.Condition `mapstructure:"condition"`
	Extra     map[string]string    `mapstructure:"extra"`
	MaxPages  int                  `mapstructure:"max_pages"`

	KeywordGroups []pagination.KeywordGroup `mapstructure:"keyword_groups"`
	Format        pagination.Format         `mapstructure:"format"`
}

// OutputConfig contains output file settings.
type OutputConfig struct {
	Path string `mapstructure:"path"`
	Gzip bool   `mapstructure:"gzip"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// MetricsConfig contains the optional metrics listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// New returns a viper instance with defaults and environment bindings.
// Callers may bind flags on it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", client.DefaultBaseURL)
	v.SetDefault("api.key", "")
	v.SetDefault("api.version", "v1")
	v.SetDefault("api.user_agent", "exorde-client/0.1.0")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.requests_per_second", 5)
	v.SetDefault("api.burst", 1)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.cache_ttl", "10m")

	v.SetDefault("fetch.endpoint", "/volume/history")
	v.SetDefault("fetch.endpoints", []string{})
	v.SetDefault("fetch.start_date", "")
	v.SetDefault("fetch.end_date", "")
	v.SetDefault("fetch.interval", 60)
	v.SetDefault("fetch.limit", 100)
	v.SetDefault("fetch.keywords", "")
	v.SetDefault("fetch.condition", string(pagination.ConditionOr))
	v.SetDefault("fetch.max_pages", 0)
	v.SetDefault("fetch.format", string(pagination.FormatStructured))

	v.SetDefault("output.path", "response.json")
	v.SetDefault("output.gzip", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("metrics.addr", "")
}

// Load reads file (optional; YAML, TOML or JSON by extension) into v and
// returns the validated configuration.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings shared by all commands.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.API.Key) == "" {
		errs = append(errs, fmt.Errorf("api.key is required (set %s_API_KEY)", EnvPrefix))
	}
	if c.API.Version == "" {
		errs = append(errs, errors.New("api.version is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout must be positive (got %s)", c.API.Timeout))
	}
	if c.API.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("api.requests_per_second must not be negative (got %v)", c.API.RequestsPerSecond))
	}
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL))
	}

	if c.Fetch.Interval <= 0 {
		errs = append(errs, fmt.Errorf("fetch.interval must be positive (got %d)", c.Fetch.Interval))
	}
	if c.Fetch.Limit <= 0 {
		errs = append(errs, fmt.Errorf("fetch.limit must be positive (got %d)", c.Fetch.Limit))
	}
	if c.Fetch.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("fetch.max_pages must not be negative (got %d)", c.Fetch.MaxPages))
	}
	if err := c.Fetch.Condition.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Fetch.Format.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Fetch.KeywordGroups) > 0 {
		if err := pagination.ValidateGroups(c.Fetch.KeywordGroups); err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		errs = append(errs, errors.New("output.path is required"))
	}

	return errors.Join(errs...)
}

// ResolveEndpoint turns an endpoint path into an absolute URL on the base URL.
// Absolute endpoints are returned unchanged.
func (c *Config) ResolveEndpoint(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return strings.TrimRight(c.API.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// ClientConfig returns the transport configuration. rdb may be nil.
func (c *Config) ClientConfig(rdb *redis.Client) client.Config {
	return client.Config{
		APIKey:            c.API.Key,
		APIVersion:        c.API.Version,
		UserAgent:         c.API.UserAgent,
		Timeout:           c.API.Timeout,
		Redis:             rdb,
		CacheTTL:          c.Redis.CacheTTL,
		RequestsPerSecond: c.API.RequestsPerSecond,
		Burst:             c.API.Burst,
	}
}

// RedisOptions returns the go-redis options, nil when Redis is disabled.
func (c *Config) RedisOptions() *redis.Options {
	if c.Redis.Address == "" {
		return nil
	}
	return &redis.Options{
		Addr:     c.Redis.Address,
		Password: c.Redis.Password,
		DB:       c.Redis.Database,
	}
}

// FetcherConfig returns the pagination configuration.
func (c *Config) FetcherConfig() pagination.Config {
	cfg := pagination.DefaultConfig()
	cfg.MaxPages = c.Fetch.MaxPages
	return cfg
}

// RequestSpec returns the single-metric request with the flat keywords.
func (c *Config) RequestSpec() pagination.RequestSpec {
	filters := pagination.Filters{
		StartDate: c.Fetch.StartDate,
		EndDate:   c.Fetch.EndDate,
		Interval:  c.Fetch.Interval,
		Limit:     c.Fetch.Limit,
		Keywords:  c.Fetch.Keywords,
		Extra:     c.Fetch.Extra,
	}
	if filters.Keywords != "" {
		filters.Condition = c.Fetch.Condition
	}
	return pagination.RequestSpec{
		Endpoint: c.ResolveEndpoint(c.Fetch.Endpoint),
		Filters:  filters,
	}
}

// GroupRequest returns the keyword-group request. Without fetch.endpoints it
// targets fetch.endpoint alone.
func (c *Config) GroupRequest() pagination.GroupRequest {
	spec := c.RequestSpec()
	spec.Filters.Keywords = ""
	spec.Filters.Condition = ""

	var endpoints []string
	for _, e := range c.Fetch.Endpoints {
		endpoints = append(endpoints, c.ResolveEndpoint(e))
	}

	return pagination.GroupRequest{
		Endpoints: endpoints,
		Spec:      spec,
		Groups:    c.Fetch.KeywordGroups,
		Condition: c.Fetch.Condition,
		Format:    c.Fetch.Format,
	}
}

// OutputOptions returns the output writer options.
func (c *Config) OutputOptions() output.Options {
	return output.Options{Gzip: c.Output.Gzip}
}

// LoggingConfig returns the logger configuration.
func (c *Config) LoggingConfig() logging.Config {
	level, _ := logging.ParseLevel(c.Log.Level)
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Pretty = c.Log.Pretty
	return cfg
}
