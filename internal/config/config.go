// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// maxBindParams is the Postgres limit on bind parameters per statement.
const maxBindParams = 65535

// widestTable is the column count of dim_vehicles.
const widestTable = 20

// Config captures all pipeline knobs loaded via Viper.
type Config struct {
	DBConfigPath string        `mapstructure:"db_config"`
	API          APIConfig     `mapstructure:"api"`
	Extract      ExtractConfig `mapstructure:"extract"`
	Files        FilesConfig   `mapstructure:"files"`
	Loader       LoaderConfig  `mapstructure:"loader"`
	Export       ExportConfig  `mapstructure:"export"`
	Storage      StorageConfig `mapstructure:"storage"`
	PubSub       PubSubConfig  `mapstructure:"pubsub"`
	Metrics      MetricsConfig `mapstructure:"metrics"`
	Logging      LoggingConfig `mapstructure:"logging"`
}

// APIConfig describes the catalog endpoints and the static headers they need.
type APIConfig struct {
	SearchURL      string `mapstructure:"search_url"`
	DetailURL      string `mapstructure:"detail_url"`
	ClientID       string `mapstructure:"client_id"`
	APIKey         string `mapstructure:"api_key"`
	UserAgent      string `mapstructure:"user_agent"`
	Origin         string `mapstructure:"origin"`
	Referer        string `mapstructure:"referer"`
	PageSize       int    `mapstructure:"page_size"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
}

// ExtractConfig controls the per-identifier pacing of the extractor.
type ExtractConfig struct {
	MinDelaySeconds float64 `mapstructure:"min_delay_seconds"`
	MaxDelaySeconds float64 `mapstructure:"max_delay_seconds"`
	// MaxRequestsPerMinute caps detail calls on top of the random delay;
	// zero leaves only the delay.
	MaxRequestsPerMinute float64 `mapstructure:"max_requests_per_minute"`
	PreviewRows          int     `mapstructure:"preview_rows"`
}

// FilesConfig names the flat files exchanged between extractor and loader.
type FilesConfig struct {
	Dir   string `mapstructure:"dir"`
	Specs string `mapstructure:"specs"`
	Price string `mapstructure:"price"`
	Color string `mapstructure:"color"`
}

// LoaderConfig controls batching and referential filtering.
type LoaderConfig struct {
	ChunkSize    int  `mapstructure:"chunk_size"`
	FilterColors bool `mapstructure:"filter_colors"`
}

// ExportConfig names the exporter output.
type ExportConfig struct {
	Output string `mapstructure:"output"`
}

// StorageConfig selects where artifacts are read from and written to.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for stage-completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls the optional metrics endpoint and push gateway.
type MetricsConfig struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	JobName        string `mapstructure:"job_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. An empty path means defaults
// plus LEASECAR_* environment overrides only.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEASECAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_config", "config.json")
	v.SetDefault("api.search_url", "https://api.anwb.nl/v2/privatelease")
	v.SetDefault("api.detail_url", "https://api.anwb.nl/privatelease/v1/leaseplan/leasecars")
	v.SetDefault("api.client_id", "")
	v.SetDefault("api.api_key", "")
	v.SetDefault("api.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36")
	v.SetDefault("api.origin", "https://www.anwb.nl")
	v.SetDefault("api.referer", "https://www.anwb.nl/")
	v.SetDefault("api.page_size", 1000)
	v.SetDefault("api.timeout_seconds", 30)
	v.SetDefault("api.max_body_bytes", 64*1024*1024)
	v.SetDefault("extract.min_delay_seconds", 4.5)
	v.SetDefault("extract.max_delay_seconds", 15.0)
	v.SetDefault("extract.max_requests_per_minute", 0)
	v.SetDefault("extract.preview_rows", 5)
	v.SetDefault("files.dir", "scraped_data")
	v.SetDefault("files.specs", "data_specs.csv")
	v.SetDefault("files.price", "data_price.csv")
	v.SetDefault("files.color", "data_color.csv")
	v.SetDefault("loader.chunk_size", 1000)
	v.SetDefault("loader.filter_colors", false)
	v.SetDefault("export.output", "sql_output/sql_output.csv")
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.base_dir", ".")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job_name", "leasecar_etl")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.API.PageSize <= 0 {
		return fmt.Errorf("api.page_size must be > 0")
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api.timeout_seconds must be > 0")
	}
	if c.Extract.MinDelaySeconds < 0 {
		return fmt.Errorf("extract.min_delay_seconds must be >= 0")
	}
	if c.Extract.MaxDelaySeconds < c.Extract.MinDelaySeconds {
		return fmt.Errorf("extract.max_delay_seconds must be >= extract.min_delay_seconds")
	}
	if c.Extract.MaxRequestsPerMinute < 0 {
		return fmt.Errorf("extract.max_requests_per_minute must be >= 0")
	}
	if c.Loader.ChunkSize <= 0 {
		return fmt.Errorf("loader.chunk_size must be > 0")
	}
	if c.Loader.ChunkSize*widestTable > maxBindParams {
		return fmt.Errorf("loader.chunk_size must be <= %d", maxBindParams/widestTable)
	}
	if c.Files.Specs == "" || c.Files.Price == "" || c.Files.Color == "" {
		return fmt.Errorf("files.specs, files.price and files.color must be set")
	}
	if c.Export.Output == "" {
		return fmt.Errorf("export.output must be set")
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set for the local backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// Validate checks the values the extractor cannot run without.
func (a APIConfig) Validate() error {
	if a.SearchURL == "" || a.DetailURL == "" {
		return fmt.Errorf("api.search_url and api.detail_url must be set")
	}
	if a.ClientID == "" {
		return fmt.Errorf("api.client_id must be set (LEASECAR_API_CLIENT_ID)")
	}
	if a.APIKey == "" {
		return fmt.Errorf("api.api_key must be set (LEASECAR_API_API_KEY)")
	}
	return nil
}

// Timeout converts the configured request timeout.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// DelayWindow converts the configured delay bounds.
func (e ExtractConfig) DelayWindow() (time.Duration, time.Duration) {
	toDuration := func(s float64) time.Duration {
		return time.Duration(s * float64(time.Second))
	}
	return toDuration(e.MinDelaySeconds), toDuration(e.MaxDelaySeconds)
}

// SpecsPath is the artifact path of the specifications file.
func (f FilesConfig) SpecsPath() string { return path.Join(f.Dir, f.Specs) }

// PricePath is the artifact path of the price file.
func (f FilesConfig) PricePath() string { return path.Join(f.Dir, f.Price) }

// ColorPath is the artifact path of the color file.
func (f FilesConfig) ColorPath() string { return path.Join(f.Dir, f.Color) }
