// Package config provides configuration management for folio using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration system supports a .folio.yml file, environment variable
// overrides with the FOLIO_ prefix (FOLIO_RENDER_FORMAT, FOLIO_LOG_LEVEL, ...)
// and validation. It covers image intake limits, output rendering, pipeline
// debouncing, the persistent store and the preview server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/folio/internal/images"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/renderer"
)

type Config struct {
	Images      ImagesConfig   `mapstructure:"images" yaml:"images"`
	Render      RenderConfig   `mapstructure:"render" yaml:"render"`
	Pipeline    PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	Store       StoreConfig    `mapstructure:"store" yaml:"store"`
	Server      ServerConfig   `mapstructure:"server" yaml:"server"`
	Log         LogConfig      `mapstructure:"log" yaml:"log"`
	TargetFiles []string       `mapstructure:"-" yaml:"-"` // CLI arguments, not from config file
}

type ImagesConfig struct {
	MaxUploadBytes      int64         `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	RecompressThreshold int64         `mapstructure:"recompress_threshold" yaml:"recompress_threshold"`
	SecondaryThreshold  int64         `mapstructure:"secondary_threshold" yaml:"secondary_threshold"`
	MaxWidth            int           `mapstructure:"max_width" yaml:"max_width"`
	MaxHeight           int           `mapstructure:"max_height" yaml:"max_height"`
	BatchFloor          time.Duration `mapstructure:"batch_floor" yaml:"batch_floor"`
	Dirs                []string      `mapstructure:"dirs" yaml:"dirs"`
}

type RenderConfig struct {
	Format   string `mapstructure:"format" yaml:"format"`
	Style    string `mapstructure:"style" yaml:"style"`
	WordWrap int    `mapstructure:"word_wrap" yaml:"word_wrap"`
	Title    string `mapstructure:"title" yaml:"title"`
}

type PipelineConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type StoreConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port" yaml:"port"`
	Host           string   `mapstructure:"host" yaml:"host"`
	Open           bool     `mapstructure:"open" yaml:"open"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// EnvPrefix prefixes environment overrides, e.g. FOLIO_RENDER_FORMAT.
const EnvPrefix = "FOLIO"

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// BindEnv makes v read FOLIO_ environment variables for every known key.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
}

// SetDefaults registers every default with v.
func SetDefaults(v *viper.Viper) {
	imgDefaults := images.DefaultConfig()
	v.SetDefault("images.max_upload_bytes", imgDefaults.MaxUploadBytes)
	v.SetDefault("images.recompress_threshold", imgDefaults.RecompressThreshold)
	v.SetDefault("images.secondary_threshold", imgDefaults.SecondaryThreshold)
	v.SetDefault("images.max_width", imgDefaults.MaxWidth)
	v.SetDefault("images.max_height", imgDefaults.MaxHeight)
	v.SetDefault("images.batch_floor", images.DefaultBatchFloor)

	v.SetDefault("render.format", string(renderer.FormatHTML))
	v.SetDefault("render.style", "auto")
	v.SetDefault("render.word_wrap", 80)

	v.SetDefault("pipeline.debounce", 300*time.Millisecond)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.open", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals v, fills in anything still unset and validates.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Slices set from env or flags arrive as strings.
	if v.IsSet("images.dirs") && len(config.Images.Dirs) == 0 {
		config.Images.Dirs = v.GetStringSlice("images.dirs")
	}
	if v.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	var config Config
	applyDefaults(&config)
	return &config
}

func applyDefaults(config *Config) {
	imgDefaults := images.DefaultConfig()
	if config.Images.MaxUploadBytes == 0 {
		config.Images.MaxUploadBytes = imgDefaults.MaxUploadBytes
	}
	if config.Images.RecompressThreshold == 0 {
		config.Images.RecompressThreshold = imgDefaults.RecompressThreshold
	}
	if config.Images.SecondaryThreshold == 0 {
		config.Images.SecondaryThreshold = imgDefaults.SecondaryThreshold
	}
	if config.Images.MaxWidth == 0 {
		config.Images.MaxWidth = imgDefaults.MaxWidth
	}
	if config.Images.MaxHeight == 0 {
		config.Images.MaxHeight = imgDefaults.MaxHeight
	}

	if config.Render.Format == "" {
		config.Render.Format = string(renderer.FormatHTML)
	}
	if config.Render.Style == "" {
		config.Render.Style = "auto"
	}
	if config.Render.WordWrap == 0 {
		config.Render.WordWrap = 80
	}

	if config.Pipeline.Debounce == 0 {
		config.Pipeline.Debounce = 300 * time.Millisecond
	}

	if config.Store.Dir == "" {
		config.Store.Dir = defaultStoreDir()
	}

	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

func defaultStoreDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "folio")
	}
	return ".folio"
}

// validateConfig validates configuration values for correctness
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if result.HasErrors() {
		first := result.Errors[0]
		return &first
	}
	return nil
}

// ResolverConfig converts the images section for images.NewResolver.
func (c ImagesConfig) ResolverConfig() images.Config {
	return images.Config{
		MaxUploadBytes:      c.MaxUploadBytes,
		RecompressThreshold: c.RecompressThreshold,
		SecondaryThreshold:  c.SecondaryThreshold,
		MaxWidth:            c.MaxWidth,
		MaxHeight:           c.MaxHeight,
	}
}

// RendererOptions converts the render section for renderer.New.
func (c RenderConfig) RendererOptions() renderer.Options {
	return renderer.Options{Style: c.Style, WordWrap: c.WordWrap}
}

// LoggerConfig converts the log section for logging.NewLogger.
func (c LogConfig) LoggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultConfig()
	// Validation has already rejected unknown levels.
	cfg.Level, _ = logging.ParseLevel(c.Level)
	cfg.Format = strings.ToLower(c.Format)
	return cfg
}

// Address returns host:port.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
