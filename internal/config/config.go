package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
	"go.uber.org/multierr"
)

// Config holds the main configuration for the application.
type Config struct {
	Server    Server    `mapstructure:"server"`
	JobStore  JobStore  `mapstructure:"job_store"`
	Queue     Queue     `mapstructure:"queue"`
	Retry     Retry     `mapstructure:"retry"`
	Brand     Brand     `mapstructure:"brand"`
	Templates Templates `mapstructure:"templates"`
	Storage   Storage   `mapstructure:"storage"`
	Kafka     Kafka     `mapstructure:"kafka"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort        string        `mapstructure:"http_port"`        // address to listen on, e.g. ":8080"
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // graceful shutdown budget
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`   // request body limit
}

// JobStore holds the external job-store API settings.
type JobStore struct {
	BaseURL  string        `mapstructure:"base_url"`
	Token    string        `mapstructure:"token"`     // fallback bearer token
	TokenEnv string        `mapstructure:"token_env"` // env var re-read on every call
	Timeout  time.Duration `mapstructure:"timeout"`   // per-request timeout
}

// CurrentToken returns the service bearer token. The environment is read
// on every call so a rotated token is picked up without a restart.
func (j JobStore) CurrentToken() string {
	if j.TokenEnv != "" {
		if v := os.Getenv(j.TokenEnv); v != "" {
			return v
		}
	}
	return j.Token
}

// Queue holds the background sweep settings.
type Queue struct {
	Enabled            bool          `mapstructure:"enabled"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	JobTimeout         time.Duration `mapstructure:"job_timeout"`
	Concurrency        int           `mapstructure:"concurrency"`
	DefaultMaxAttempts int           `mapstructure:"default_max_attempts"`
}

// Retry defines retry policy configuration for transport failures.
type Retry struct {
	Attempts int           `mapstructure:"attempts"`  // Number of attempts
	Delay    time.Duration `mapstructure:"delay"`     // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`   // Backoff multiplier for delays
	MaxDelay time.Duration `mapstructure:"max_delay"` // Upper bound for any single delay
}

// Strategy converts the policy to a retry strategy.
func (r Retry) Strategy() retry.Strategy {
	return retry.Strategy{
		Attempts: r.Attempts,
		Delay:    r.Delay,
		Backoff:  r.Backoff,
	}
}

// longestDelay is the wait before the final attempt.
func (r Retry) longestDelay() time.Duration {
	if r.Attempts < 2 {
		return 0
	}
	return time.Duration(float64(r.Delay) * math.Pow(r.Backoff, float64(r.Attempts-2)))
}

// Brand holds the text printed on every derivative.
type Brand struct {
	SiteName     string `mapstructure:"site_name"`
	Name         string `mapstructure:"name"`
	SupportEmail string `mapstructure:"support_email"`
	LowResNotice string `mapstructure:"low_res_notice"`
	Subtitle     string `mapstructure:"subtitle"`
}

// Templates locates the static template layers.
type Templates struct {
	Source        string `mapstructure:"source"` // "fs" or "minio"
	Dir           string `mapstructure:"dir"`
	OgBackground  string `mapstructure:"og_background"`
	MarketingPage string `mapstructure:"marketing_page"`
}

// Storage holds configuration for the MinIO template bucket.
type Storage struct {
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Kafka holds configuration for the optional Kafka integration.
type Kafka struct {
	Enabled      bool     `mapstructure:"enabled"`
	GroupID      string   `mapstructure:"group_id"`      // Consumer group ID
	TriggerTopic string   `mapstructure:"trigger_topic"` // "jobs enqueued" notifications
	EventsTopic  string   `mapstructure:"events_topic"`  // job outcome events
	Brokers      []string `mapstructure:"brokers"`       // List of Kafka broker addresses
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", ":8080")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.max_body_bytes", 12<<20)

	v.SetDefault("job_store.token_env", "INTERNAL_API_TOKEN")
	v.SetDefault("job_store.timeout", 30*time.Second)

	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.poll_interval", time.Minute)
	v.SetDefault("queue.job_timeout", 5*time.Minute)
	v.SetDefault("queue.concurrency", 2)
	v.SetDefault("queue.default_max_attempts", 3)

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", time.Second)
	v.SetDefault("retry.backoff", 2.0)
	v.SetDefault("retry.max_delay", 5*time.Second)

	v.SetDefault("brand.site_name", "printables.example")
	v.SetDefault("brand.name", "Printables")
	v.SetDefault("brand.low_res_notice", "Low-res preview. Download the PDF for print quality.")
	v.SetDefault("brand.subtitle", "Printable Coloring Page")

	v.SetDefault("templates.source", "fs")
	v.SetDefault("templates.dir", "./templates")
	v.SetDefault("templates.og_background", "og-background.png")
	v.SetDefault("templates.marketing_page", "marketing-page.png")

	v.SetDefault("kafka.group_id", "asset-derivatives")
	v.SetDefault("kafka.trigger_topic", "derivative-jobs")
	v.SetDefault("kafka.events_topic", "derivative-job-events")
}

// bindEnv binds critical environment variables to viper keys.
func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"job_store.base_url": "JOB_STORE_URL",
		"job_store.token":    "INTERNAL_API_TOKEN",
		"storage.endpoint":   "STORAGE_ENDPOINT",
		"storage.access_key": "STORAGE_ACCESS_KEY",
		"storage.secret_key": "STORAGE_SECRET_KEY",
		"kafka.brokers":      "KAFKA_BROKERS",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	return nil
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to load config")
	}

	return cfg
}

// Validate checks the invariants the rest of the service relies on.
func (c *Config) Validate() error {
	var errs []error

	if c.JobStore.BaseURL == "" && c.Queue.Enabled {
		errs = append(errs, errors.New("job_store.base_url is required when the queue is enabled"))
	}
	if c.Queue.JobTimeout <= 0 {
		errs = append(errs, errors.New("queue.job_timeout must be positive"))
	}
	if c.Queue.Concurrency < 1 {
		errs = append(errs, errors.New("queue.concurrency must be at least 1"))
	}
	if c.Queue.DefaultMaxAttempts < 1 {
		errs = append(errs, errors.New("queue.default_max_attempts must be at least 1"))
	}
	if c.Queue.Enabled && c.Queue.PollInterval < 0 {
		errs = append(errs, errors.New("queue.poll_interval must not be negative"))
	}
	if c.Retry.Attempts < 1 {
		errs = append(errs, errors.New("retry.attempts must be at least 1"))
	}
	if c.Retry.Backoff < 1 {
		errs = append(errs, errors.New("retry.backoff must be at least 1"))
	}
	if d := c.Retry.longestDelay(); c.Retry.MaxDelay > 0 && d > c.Retry.MaxDelay {
		errs = append(errs, fmt.Errorf("retry delay grows to %s, above retry.max_delay %s", d, c.Retry.MaxDelay))
	}
	switch c.Templates.Source {
	case "fs":
		if c.Templates.Dir == "" {
			errs = append(errs, errors.New("templates.dir is required for the fs source"))
		}
	case "minio":
		if c.Storage.Endpoint == "" || c.Storage.BucketName == "" {
			errs = append(errs, errors.New("storage.endpoint and storage.bucket_name are required for the minio source"))
		}
	default:
		errs = append(errs, fmt.Errorf("templates.source %q is not one of fs, minio", c.Templates.Source))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}

	return multierr.Combine(errs...)
}
