package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgallion1/docweave/internal/logs"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DOCWEAVE_SERVER_PORT.
const EnvPrefix = "DOCWEAVE"

// WeaveConfig holds the settings for weaving a document.
type WeaveConfig struct {
	Dialect      string        `mapstructure:"dialect"`       // empty: front matter, then source extension
	DialectsFile string        `mapstructure:"dialects_file"` // CUE file with custom dialects
	FigDir       string        `mapstructure:"fig_dir"`
	TangleExt    string        `mapstructure:"tangle_ext"`
	ChunkTimeout time.Duration `mapstructure:"chunk_timeout"`
	Plot         bool          `mapstructure:"plot"`
	PlotWidth    int           `mapstructure:"plot_width"`
	PlotHeight   int           `mapstructure:"plot_height"`

	// MaxChunkTimeout bounds chunk timeout options too. Set by ServerWeave.
	MaxChunkTimeout time.Duration `mapstructure:"-"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port   string `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`

	// Worker pool
	WorkerCount  int `mapstructure:"worker_count"`
	MaxQueueSize int `mapstructure:"max_queue_size"`

	// Upload limits
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`

	// Job state
	JobTTL  time.Duration `mapstructure:"job_ttl"`
	WorkDir string        `mapstructure:"work_dir"` // per-job figure and output directories

	// Upper bound on each chunk's run time; tighter weave.chunk_timeout wins.
	ChunkTimeout time.Duration `mapstructure:"chunk_timeout"`
}

// Config holds all runtime configuration. Values come from
// .docweave.{yaml,toml}, DOCWEAVE_* env vars and CLI flags.
type Config struct {
	LogLevel string       `mapstructure:"log_level"`
	LogFile  string       `mapstructure:"log_file"`
	Weave    WeaveConfig  `mapstructure:"weave"`
	Server   ServerConfig `mapstructure:"server"`
}

// NewViper returns a viper instance reading cfgFile, or .docweave in the
// working and home directories when cfgFile is empty. A missing default
// config file is not an error.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".docweave")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// SetDefaults registers every key so env vars can override it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	v.SetDefault("weave.dialect", "")
	v.SetDefault("weave.dialects_file", "")
	v.SetDefault("weave.fig_dir", "") // empty: front matter, then "figures"
	v.SetDefault("weave.tangle_ext", ".py")
	v.SetDefault("weave.chunk_timeout", time.Duration(0))
	v.SetDefault("weave.plot", true)
	v.SetDefault("weave.plot_width", 600)
	v.SetDefault("weave.plot_height", 400)

	v.SetDefault("server.port", "8090")
	v.SetDefault("server.api_key", "")
	v.SetDefault("server.worker_count", 4)
	v.SetDefault("server.max_queue_size", 100)
	v.SetDefault("server.max_upload_bytes", 10<<20)
	v.SetDefault("server.job_ttl", time.Hour)
	v.SetDefault("server.work_dir", os.TempDir())
	v.SetDefault("server.chunk_timeout", time.Minute)
}

// Load decodes the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := logs.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Weave.TangleExt != "" && !strings.HasPrefix(c.Weave.TangleExt, ".") {
		return fmt.Errorf("weave.tangle_ext %q must start with a dot", c.Weave.TangleExt)
	}
	if c.Weave.ChunkTimeout < 0 {
		return fmt.Errorf("weave.chunk_timeout must not be negative")
	}
	if c.Weave.PlotWidth <= 0 || c.Weave.PlotHeight <= 0 {
		return fmt.Errorf("weave.plot_width and weave.plot_height must be positive")
	}
	return nil
}

// ValidateServer checks the settings only the API server needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.WorkerCount <= 0 {
		return fmt.Errorf("server.worker_count must be positive")
	}
	if c.Server.MaxQueueSize <= 0 {
		return fmt.Errorf("server.max_queue_size must be positive")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be positive")
	}
	if c.Server.ChunkTimeout <= 0 {
		return fmt.Errorf("server.chunk_timeout must be positive")
	}
	return nil
}

// ServerWeave returns the weave settings with the chunk timeout capped at
// server.chunk_timeout, so no request runs a chunk without a bound, even
// one whose options ask for longer.
func (c Config) ServerWeave() WeaveConfig {
	w := c.Weave
	if limit := c.Server.ChunkTimeout; limit > 0 {
		if w.ChunkTimeout == 0 || w.ChunkTimeout > limit {
			w.ChunkTimeout = limit
		}
		w.MaxChunkTimeout = limit
	}
	return w
}
