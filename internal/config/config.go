// Package config defines all configuration for the ticker/book ingester.
// Config is loaded from a YAML file (default: config.yaml) with every scalar
// field overridable via TICKERBOOK_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Feed    FeedConfig    `mapstructure:"feed"`
	Sink    SinkConfig    `mapstructure:"sink"`
	Sampler SamplerConfig `mapstructure:"sampler"`
	Diag    DiagConfig    `mapstructure:"diag"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

// FeedConfig controls the upstream exchange WebSocket connection.
type FeedConfig struct {
	URL            string        `mapstructure:"url"`
	Products       []Product     `mapstructure:"products"`
	Channels       []string      `mapstructure:"channels"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	ReconnectMin   time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax   time.Duration `mapstructure:"reconnect_max"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
}

// Product names one tracked trading pair and the price cap (in whole
// currency units) its order book is built over.
type Product struct {
	ID       string  `mapstructure:"id"`
	PriceCap float64 `mapstructure:"price_cap"`
}

// SinkConfig controls the durable ticker/book-snapshot sink.
type SinkConfig struct {
	MongoURI      string        `mapstructure:"mongo_uri"`
	RetentionDays int           `mapstructure:"retention_days"`
	RetentionScan time.Duration `mapstructure:"retention_scan_interval"`
}

// SamplerConfig controls the periodic banded-volume sampler.
type SamplerConfig struct {
	Period time.Duration `mapstructure:"period"`
	Bands  []float64     `mapstructure:"bands"`
}

// DiagConfig controls the diagnostics HTTP endpoint.
type DiagConfig struct {
	Addr string `mapstructure:"addr"`
}

// NotifyConfig controls the rate-limited operator notification channel.
type NotifyConfig struct {
	WebhookURL  string        `mapstructure:"webhook_url"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

// ArchiveConfig controls the opt-in S3 archiver for aged-out sink rows.
type ArchiveConfig struct {
	S3Bucket     string        `mapstructure:"s3_bucket"`
	S3Region     string        `mapstructure:"s3_region"`
	S3Prefix     string        `mapstructure:"s3_prefix"`
	Interval     time.Duration `mapstructure:"interval"`
	AfterAge     time.Duration `mapstructure:"after_age"`
}

// defaultBands is the nine percent-distance bands from spec §6, lifted
// verbatim from the original logger's percent_ranges.
var defaultBands = []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 25}

// defaultProducts mirrors the four GDAX products and price caps hardcoded in
// the original LoggerHandler: BTC-USD 50000, ETH-USD 10000, LTC-USD 5000,
// BCH-USD 20000.
var defaultProducts = []Product{
	{ID: "BTC-USD", PriceCap: 50000},
	{ID: "ETH-USD", PriceCap: 10000},
	{ID: "LTC-USD", PriceCap: 5000},
	{ID: "BCH-USD", PriceCap: 20000},
}

// Load reads configuration from the given path (if non-empty) or
// "config.yaml" in the working directory, falling back to built-in
// defaults for anything unset. Every key that setDefaults registers is
// overridable via TICKERBOOK_<SECTION>_<FIELD> environment variables; the
// feed.products and sampler.bands lists are read from the file only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TICKERBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.Feed.Products) == 0 {
		cfg.Feed.Products = defaultProducts
	}
	if len(cfg.Sampler.Bands) == 0 {
		cfg.Sampler.Bands = defaultBands
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("feed.url", "wss://ws-feed.exchange.example/")
	v.SetDefault("feed.channels", []string{"ticker", "matches", "level2"})
	v.SetDefault("feed.dial_timeout", 10*time.Second)
	v.SetDefault("feed.reconnect_min", 500*time.Millisecond)
	v.SetDefault("feed.reconnect_max", 30*time.Second)
	v.SetDefault("feed.ping_interval", 15*time.Second)
	v.SetDefault("feed.read_timeout", 60*time.Second)

	v.SetDefault("sink.mongo_uri", "mongodb://localhost:27017/tickerbook")
	v.SetDefault("sink.retention_days", 30)
	v.SetDefault("sink.retention_scan_interval", time.Hour)

	v.SetDefault("sampler.period", time.Second)

	v.SetDefault("diag.addr", "127.0.0.1:8090")

	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.min_interval", 5*time.Minute)

	v.SetDefault("archive.s3_bucket", "")
	v.SetDefault("archive.s3_region", "")
	v.SetDefault("archive.s3_prefix", "tickerbook")
	v.SetDefault("archive.interval", 6*time.Hour)
	v.SetDefault("archive.after_age", 24*time.Hour)
}
