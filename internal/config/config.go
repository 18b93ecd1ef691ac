package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/emberwatch/burnsight/internal/sensor"
)

// Config holds the full application configuration.
type Config struct {
	Imagery      ImageryConfig      `yaml:"imagery" mapstructure:"imagery"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Analysis     AnalysisConfig     `yaml:"analysis" mapstructure:"analysis"`
	Render       RenderConfig       `yaml:"render" mapstructure:"render"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Notification NotificationConfig `yaml:"notification" mapstructure:"notification"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`

	// Sensors extends or overrides the built-in sensor catalog by id.
	Sensors map[string]sensor.Spec `yaml:"sensors" mapstructure:"sensors"`
}

// ImageryConfig holds Copernicus Data Space credentials and fetch behavior.
type ImageryConfig struct {
	ClientID      string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret  string `yaml:"client_secret" mapstructure:"client_secret"`
	TokenURL      string `yaml:"token_url" mapstructure:"token_url"`
	ProcessURL    string `yaml:"process_url" mapstructure:"process_url"`
	Retries       int    `yaml:"retries" mapstructure:"retries"`
	RetryWaitSecs int    `yaml:"retry_wait_secs" mapstructure:"retry_wait_secs"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// CacheConfig configures the on-disk imagery cache.
type CacheConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// AnalysisConfig carries the defaults applied to analysis requests that
// leave a field empty. The shipped values describe the Palisades Fire:
// the bounding box around Pacific Palisades and the January 2025 ignition
// date, with a 180-day pre-fire lookback and a 30-day post-fire window.
type AnalysisConfig struct {
	Sensor             string     `yaml:"sensor" mapstructure:"sensor"`
	Index              string     `yaml:"index" mapstructure:"index"`
	BBox               [4]float64 `yaml:"bbox" mapstructure:"bbox"`
	FireStart          string     `yaml:"fire_start" mapstructure:"fire_start"`
	BeforeLookbackDays int        `yaml:"before_lookback_days" mapstructure:"before_lookback_days"`
	AfterSpanDays      int        `yaml:"after_span_days" mapstructure:"after_span_days"`
	BeforeCloudCeiling float64    `yaml:"before_cloud_ceiling" mapstructure:"before_cloud_ceiling"`
	AfterCloudCeiling  float64    `yaml:"after_cloud_ceiling" mapstructure:"after_cloud_ceiling"`
	FoldGreening       bool       `yaml:"fold_greening" mapstructure:"fold_greening"`
	BatchWorkers       int        `yaml:"batch_workers" mapstructure:"batch_workers"`

	// Thresholds replaces the default severity table when non-empty.
	// Classes are snake_case names; the outermost bounds may be omitted and
	// default to ±Inf.
	Thresholds []ThresholdBin `yaml:"thresholds" mapstructure:"thresholds"`
}

// ThresholdBin is one configured severity interval [low, high).
type ThresholdBin struct {
	Class string  `yaml:"class" mapstructure:"class"`
	Low   float64 `yaml:"low" mapstructure:"low"`
	High  float64 `yaml:"high" mapstructure:"high"`
}

// FireStartDate parses the configured ignition date.
func (c AnalysisConfig) FireStartDate() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.FireStart)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "config: parse fire_start %q", c.FireStart)
	}
	return t, nil
}

// RenderConfig configures artifact output.
type RenderConfig struct {
	OutDir string `yaml:"out_dir" mapstructure:"out_dir"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// NotificationConfig configures the Discord webhook for batch summaries.
type NotificationConfig struct {
	DiscordWebhookURL string `yaml:"discord_webhook_url" mapstructure:"discord_webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; real deployments use environment variables.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BURNSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to empty so their environment variables bind.
	v.SetDefault("imagery.client_id", "")
	v.SetDefault("imagery.client_secret", "")
	v.SetDefault("notification.discord_webhook_url", "")
	v.SetDefault("analysis.fold_greening", false)
	v.SetDefault("imagery.token_url", "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token")
	v.SetDefault("imagery.process_url", "https://sh.dataspace.copernicus.eu/api/v1/process")
	v.SetDefault("imagery.retries", 5)
	v.SetDefault("imagery.retry_wait_secs", 5)
	v.SetDefault("imagery.timeout_secs", 120)
	v.SetDefault("cache.dir", ".cache/imagery")
	v.SetDefault("cache.ttl_hours", 24*7)
	v.SetDefault("analysis.sensor", "sentinel-2-l2a")
	v.SetDefault("analysis.index", "nbr")
	v.SetDefault("analysis.bbox", []float64{-118.65, 34.0, -118.45, 34.15})
	v.SetDefault("analysis.fire_start", "2025-01-07")
	v.SetDefault("analysis.before_lookback_days", 180)
	v.SetDefault("analysis.after_span_days", 30)
	v.SetDefault("analysis.before_cloud_ceiling", 20)
	v.SetDefault("analysis.after_cloud_ceiling", 30)
	v.SetDefault("analysis.batch_workers", 4)
	v.SetDefault("render.out_dir", "output")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
