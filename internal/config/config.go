// Package config loads runtime settings from defaults, an optional YAML file
// and RANDOMUSER_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds the application's configuration.
type Config struct {
	BaseURL             string        `mapstructure:"base_url"`
	Seed                string        `mapstructure:"seed"`
	ResultsPerPage      int           `mapstructure:"results_per_page"`
	HTTPTimeout         time.Duration `mapstructure:"http_timeout"`
	ListenAddr          string        `mapstructure:"listen_addr"`
	LogLevel            string        `mapstructure:"log_level"`
	GCPProjectID        string        `mapstructure:"gcp_project_id"`
	FirestoreCollection string        `mapstructure:"firestore_collection"`
	PubsubTopicID       string        `mapstructure:"pubsub_topic_id"`
}

// maxResultsPerPage is the largest page the randomuser API serves.
const maxResultsPerPage = 5000

type option struct {
	file      string
	name      string
	envPrefix string
}

type Option func(*option)

// WithConfigFile reads exactly this file instead of searching for one.
func WithConfigFile(file string) Option {
	return func(o *option) {
		o.file = file
	}
}

// WithName changes the searched config file name (without extension).
func WithName(name string) Option {
	return func(o *option) {
		o.name = name
	}
}

func WithEnvPrefix(prefix string) Option {
	return func(o *option) {
		o.envPrefix = prefix
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "https://randomuser.me")
	v.SetDefault("seed", "lightening-market")
	v.SetDefault("results_per_page", 30)
	v.SetDefault("http_timeout", "10s")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("gcp_project_id", "")
	v.SetDefault("firestore_collection", "random-users")
	v.SetDefault("pubsub_topic_id", "")
}

// Load builds a Config. A missing searched-for file is not an error; a
// missing file passed with WithConfigFile is.
func Load(opts ...Option) (*Config, error) {
	o := &option{
		name:      "randomuser",
		envPrefix: "RANDOMUSER",
	}
	for _, opt := range opts {
		opt(o)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(o.envPrefix)
	v.AutomaticEnv()

	if o.file != "" {
		v.SetConfigFile(o.file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", o.file, err)
		}
	} else {
		v.SetConfigName(o.name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that viper cannot express.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base_url must be set")
	}
	if c.ResultsPerPage < 1 || c.ResultsPerPage > maxResultsPerPage {
		return fmt.Errorf("results_per_page must be between 1 and %d, got %d", maxResultsPerPage, c.ResultsPerPage)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http_timeout must be positive, got %s", c.HTTPTimeout)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	if c.PubsubTopicID != "" && c.GCPProjectID == "" {
		return errors.New("pubsub_topic_id requires gcp_project_id")
	}
	return nil
}

// Level returns the parsed log level; Validate has already vetted it.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
