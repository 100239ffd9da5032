package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Default configuration values
const (
	DefaultSrcDir               = "src"
	DefaultWWWDir               = "www"
	DefaultDistDir              = "dist"
	DefaultCacheDir             = ".incr-cache"
	DefaultFsNamespace          = "app"
	DefaultIndexHTML            = "index.html"
	DefaultLogFormat            = "text"
	DefaultDevMode              = false
	DefaultVerbose              = false
	DefaultGenerateDistribution = true
)

// Holds the configuration options for incr
type Config struct {
	// Directory holding the sources to compile
	SrcDir string

	// Directory the build output is committed to
	WWWDir string

	// Directory the distribution copy is generated into
	DistDir string

	// Directory holding the persistent build cache
	CacheDir string

	// Namespace used to scope build output
	FsNamespace string

	// Source index markup file
	SrcIndexHTML string

	// Build in development mode
	DevMode bool

	// Running under a file watcher
	Watch bool

	// Generate the distribution copy after each build
	GenerateDistribution bool

	// Enable verbose output
	Verbose bool

	// Log output format, "text" or "json"
	LogFormat string

	// Address to serve prometheus metrics on in watch mode
	MetricsAddr string

	// Type checker command run alongside each build, e.g. "tsc --noEmit".
	// Empty disables type validation.
	ValidateCommand string

	// ConfigFile is the file the configuration was read from, if any
	ConfigFile string
}

func Load() (*Config, error) {
	cfg := &Config{
		SrcDir:               viper.GetString("src_dir"),
		WWWDir:               viper.GetString("www_dir"),
		DistDir:              viper.GetString("dist_dir"),
		CacheDir:             viper.GetString("cache_dir"),
		FsNamespace:          viper.GetString("fs_namespace"),
		SrcIndexHTML:         viper.GetString("src_index_html"),
		DevMode:              viper.GetBool("dev_mode"),
		Watch:                viper.GetBool("watch"),
		GenerateDistribution: viper.GetBool("generate_distribution"),
		Verbose:              viper.GetBool("verbose"),
		LogFormat:            viper.GetString("log_format"),
		MetricsAddr:          viper.GetString("metrics_addr"),
		ValidateCommand:      viper.GetString("validate_command"),
		ConfigFile:           viper.ConfigFileUsed(),
	}

	// Apply defaults if not set
	if cfg.SrcDir == "" {
		cfg.SrcDir = DefaultSrcDir
	}

	if cfg.WWWDir == "" {
		cfg.WWWDir = DefaultWWWDir
	}

	if cfg.DistDir == "" {
		cfg.DistDir = DefaultDistDir
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir
	}

	if cfg.FsNamespace == "" {
		cfg.FsNamespace = DefaultFsNamespace
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}

	if cfg.SrcIndexHTML == "" {
		cfg.SrcIndexHTML = filepath.Join(cfg.SrcDir, DefaultIndexHTML)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	for _, dir := range []*string{&c.SrcDir, &c.WWWDir, &c.DistDir, &c.CacheDir, &c.SrcIndexHTML} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return fmt.Errorf("invalid path %q: %v", *dir, err)
		}

		*dir = abs
	}

	if c.ConfigFile != "" {
		if abs, err := filepath.Abs(c.ConfigFile); err == nil {
			c.ConfigFile = abs
		}
	}

	if c.WWWDir == c.SrcDir {
		return fmt.Errorf("www_dir must differ from src_dir: %s", c.SrcDir)
	}

	if c.DistDir == c.WWWDir {
		return fmt.Errorf("dist_dir must differ from www_dir: %s", c.WWWDir)
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s", c.LogFormat)
	}

	return nil
}

// Reload re-reads the configuration file this config was loaded from and
// returns the resulting configuration. The receiver is left untouched.
func (c *Config) Reload() (*Config, error) {
	if c.ConfigFile != "" {
		viper.SetConfigFile(c.ConfigFile)

		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to reload config %s: %w", c.ConfigFile, err)
		}
	}

	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	// Watch mode is a property of the session, not the file
	cfg.Watch = c.Watch

	return cfg, nil
}

// Basename returns the last element of path
func (c *Config) Basename(path string) string {
	return filepath.Base(path)
}

// RootDir returns the project root: the directory of the config file, or the
// working directory when there is none
func (c *Config) RootDir() string {
	if c.ConfigFile != "" {
		return filepath.Dir(c.ConfigFile)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "."
	}

	return wd
}
