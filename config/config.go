package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server         ServerConfig         `toml:"server"`         // HTTP server settings
	Logging        LoggingConfig        `toml:"logging"`        // Application logging settings
	Dashboard      DashboardConfig      `toml:"dashboard"`      // Forecast selection and session settings
	WeatherAPI     WeatherAPIConfig     `toml:"weatherapi"`     // WeatherAPI.com provider
	OpenWeatherMap OpenWeatherMapConfig `toml:"openweathermap"` // OpenWeatherMap provider
	Prediction     PredictionConfig     `toml:"prediction"`     // Local ML prediction backend
	Fallback       FallbackConfig       `toml:"fallback"`       // Behaviour when live sources fail
	Cache          CacheConfig          `toml:"cache"`          // Forecast response cache
	Collector      CollectorConfig      `toml:"collector"`      // Background prefetch of popular locations
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (empty for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // Origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
	StaticFilesDir     string   `toml:"static_files_dir"`      // Directory with the browser front end (empty disables static serving)
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn or error
	Format string `toml:"format"` // console or json
}

// DashboardConfig controls the view synchronizer and session handling
type DashboardConfig struct {
	LookAheadDays       int    `toml:"look_ahead_days"`        // Number of mini-cards after the selected day
	ReverseLookAhead    bool   `toml:"reverse_look_ahead"`     // Ask views to render mini-cards latest first
	HorizonDays         int    `toml:"horizon_days"`           // Days requested from sources
	Locale              string `toml:"locale"`                 // BCP 47 tag for day and month labels
	FetchTimeoutSecs    int    `toml:"fetch_timeout_seconds"`  // Timeout for a location fetch
	DefaultLocation     string `toml:"default_location"`       // Fetched when no location is given
	SessionIdleMinutes  int    `toml:"session_idle_minutes"`   // Sessions idle this long are pruned
	PruneIntervalMins   int    `toml:"prune_interval_minutes"` // How often idle sessions are pruned
	WebSocketBufferSize int    `toml:"websocket_buffer_size"`  // Outgoing messages buffered per websocket client
}

// WeatherAPIConfig configures WeatherAPI.com
type WeatherAPIConfig struct {
	Enabled     bool    `toml:"enabled"`
	APIKey      string  `toml:"api_key"`         // Overridden by WEATHERAPI_KEY
	BaseURL     string  `toml:"base_url"`        // Defaults to the public v1 endpoint
	Lang        string  `toml:"lang"`            // Condition text language, e.g. "es"
	TimeoutSecs int     `toml:"timeout_seconds"` // HTTP client timeout
	RateLimit   float64 `toml:"rate_limit_rps"`  // Requests per second (0 disables limiting)
	RateBurst   int     `toml:"rate_burst"`      // Burst size for the rate limiter
}

// OpenWeatherMapConfig configures OpenWeatherMap
type OpenWeatherMapConfig struct {
	Enabled     bool    `toml:"enabled"`
	APIKey      string  `toml:"api_key"` // Overridden by OPENWEATHERMAP_API_KEY
	BaseURL     string  `toml:"base_url"`
	Lang        string  `toml:"lang"`
	TimeoutSecs int     `toml:"timeout_seconds"`
	RateLimit   float64 `toml:"rate_limit_rps"`
	RateBurst   int     `toml:"rate_burst"`
}

// PredictionConfig configures the local prediction backend
type PredictionConfig struct {
	Enabled     bool   `toml:"enabled"`
	BaseURL     string `toml:"base_url"`        // Overridden by PREDICTION_BASE_URL
	TimeoutSecs int    `toml:"timeout_seconds"` // Per request; predictions can be slow
	Concurrency int    `toml:"concurrency"`     // Parallel /predict calls per forecast
}

// FallbackConfig controls degraded operation
type FallbackConfig struct {
	DemoEnabled bool `toml:"demo_enabled"` // Serve demo data when no live source is reachable
}

// CacheConfig configures the forecast cache
type CacheConfig struct {
	Enabled       bool   `toml:"enabled"`
	Backend       string `toml:"backend"`     // "memory" or "redis"
	TTLMinutes    int    `toml:"ttl_minutes"` // Lifetime of cached forecasts
	RedisAddr     string `toml:"redis_addr"`  // Overridden by REDIS_ADDR
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// CollectorConfig configures background prefetching
type CollectorConfig struct {
	Enabled         bool     `toml:"enabled"`
	Locations       []string `toml:"locations"`        // Locations kept warm
	IntervalMinutes int      `toml:"interval_minutes"` // Refresh interval per location
	MaxAgeMinutes   int      `toml:"max_age_minutes"`  // Stored forecasts older than this are pruned
}

// Default returns the configuration used when no file is found
func Default() *Config {
	c := &Config{}
	c.Dashboard.LookAheadDays = 2
	c.Fallback.DemoEnabled = true
	c.Prediction.Enabled = true
	c.Prediction.BaseURL = "http://localhost:8004"
	c.Cache.Enabled = true
	return c
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,
		"configs/config.toml",
		"config.toml",
	}

	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// ApplyEnv overrides secrets and endpoints from the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv("WEATHERAPI_KEY"); v != "" {
		c.WeatherAPI.APIKey = v
		c.WeatherAPI.Enabled = true
	}
	if v := os.Getenv("OPENWEATHERMAP_API_KEY"); v != "" {
		c.OpenWeatherMap.APIKey = v
		c.OpenWeatherMap.Enabled = true
	}
	if v := os.Getenv("PREDICTION_BASE_URL"); v != "" {
		c.Prediction.BaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
}

// Validate fills defaults and validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = 15
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 60
	}
	if len(c.Server.CORSAllowedOrigins) == 0 {
		c.Server.CORSAllowedOrigins = []string{"*"}
	}
	if c.Server.StaticFilesDir != "" {
		if _, err := os.Stat(c.Server.StaticFilesDir); os.IsNotExist(err) {
			return fmt.Errorf("static files directory does not exist: %s", c.Server.StaticFilesDir)
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	if err := c.validateDashboard(); err != nil {
		return err
	}

	if c.WeatherAPI.Enabled && c.WeatherAPI.APIKey == "" {
		return fmt.Errorf("weatherapi is enabled but no api_key or WEATHERAPI_KEY is set")
	}
	if c.OpenWeatherMap.Enabled && c.OpenWeatherMap.APIKey == "" {
		return fmt.Errorf("openweathermap is enabled but no api_key or OPENWEATHERMAP_API_KEY is set")
	}
	if c.Prediction.Enabled && c.Prediction.BaseURL == "" {
		return fmt.Errorf("prediction is enabled but base_url is empty")
	}
	for _, rl := range []float64{c.WeatherAPI.RateLimit, c.OpenWeatherMap.RateLimit} {
		if rl < 0 {
			return fmt.Errorf("invalid rate_limit_rps: %v (must be >= 0)", rl)
		}
	}
	if c.Prediction.Concurrency <= 0 {
		c.Prediction.Concurrency = 4
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.Enabled && c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache backend is redis but redis_addr is empty")
		}
	default:
		return fmt.Errorf("unknown cache backend: %q (want memory or redis)", c.Cache.Backend)
	}
	if c.Cache.TTLMinutes <= 0 {
		c.Cache.TTLMinutes = 10
	}

	if c.Collector.IntervalMinutes <= 0 {
		c.Collector.IntervalMinutes = 15
	}
	if c.Collector.MaxAgeMinutes <= 0 {
		c.Collector.MaxAgeMinutes = 60
	}

	return nil
}

func (c *Config) validateDashboard() error {
	d := &c.Dashboard
	if d.LookAheadDays < 0 {
		return fmt.Errorf("invalid look_ahead_days: %d (must be >= 0)", d.LookAheadDays)
	}
	if d.HorizonDays == 0 {
		d.HorizonDays = 14
	}
	if d.HorizonDays < 1 {
		return fmt.Errorf("invalid horizon_days: %d (must be >= 1)", d.HorizonDays)
	}
	if d.Locale == "" {
		d.Locale = "es-ES"
	}
	if _, err := language.Parse(d.Locale); err != nil {
		return fmt.Errorf("invalid locale %q: %w", d.Locale, err)
	}
	if d.FetchTimeoutSecs <= 0 {
		d.FetchTimeoutSecs = 10
	}
	if d.DefaultLocation == "" {
		d.DefaultLocation = "Huajuapan de León"
	}
	if d.SessionIdleMinutes <= 0 {
		d.SessionIdleMinutes = 60
	}
	if d.PruneIntervalMins <= 0 {
		d.PruneIntervalMins = 5
	}
	if d.WebSocketBufferSize <= 0 {
		d.WebSocketBufferSize = 16
	}
	return nil
}

// FetchTimeout returns the location fetch timeout
func (d DashboardConfig) FetchTimeout() time.Duration {
	return time.Duration(d.FetchTimeoutSecs) * time.Second
}

// SessionIdle returns how long a session may stay idle
func (d DashboardConfig) SessionIdle() time.Duration {
	return time.Duration(d.SessionIdleMinutes) * time.Minute
}

// PruneInterval returns the session pruning period
func (d DashboardConfig) PruneInterval() time.Duration {
	return time.Duration(d.PruneIntervalMins) * time.Minute
}

// TTL returns the cache entry lifetime
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// Interval returns the collector refresh period
func (c CollectorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// MaxAge returns the forecast store retention
func (c CollectorConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeMinutes) * time.Minute
}

// Timeout converts a seconds setting, zero meaning the client default
func Timeout(secs int) time.Duration {
	return time.Duration(secs) * time.Second
}
