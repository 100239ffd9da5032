package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForBuild loads configuration for a build rooted at the working directory.
// An explicit config file, when given, replaces the local config lookup.
func (l *Loader) LoadForBuild(cmd *cobra.Command, configFile string) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		l.loadLocalConfig()
	}

	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("src_dir", DefaultSrcDir)
	viper.SetDefault("www_dir", DefaultWWWDir)
	viper.SetDefault("dist_dir", DefaultDistDir)
	viper.SetDefault("cache_dir", DefaultCacheDir)
	viper.SetDefault("fs_namespace", DefaultFsNamespace)
	viper.SetDefault("dev_mode", DefaultDevMode)
	viper.SetDefault("verbose", DefaultVerbose)
	viper.SetDefault("generate_distribution", DefaultGenerateDistribution)
	viper.SetDefault("log_format", DefaultLogFormat)
}

// globalConfigDir returns the per-user config directory for incr
func globalConfigDir() string {
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, "incr")
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "incr")
	}

	return ""
}

// loadGlobalConfig loads global configuration from APPDATA or XDG_CONFIG_HOME
func (l *Loader) loadGlobalConfig() {
	globalDir := globalConfigDir()
	if globalDir == "" {
		return
	}

	for _, ext := range ConfigExtensions {
		globalPath := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			viper.SetConfigFile(globalPath)

			if err := viper.MergeInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig loads local configuration from the project directory
func (l *Loader) loadLocalConfig() {
	cwd, err := os.Getwd()
	if err != nil {
		return // silently ignore, config.Load() will use defaults
	}

	localPath := FindLocalConfig(cwd)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	for key, flag := range map[string]string{
		"verbose":      "verbose",
		"dev_mode":     "dev",
		"log_format":   "log-format",
		"src_dir":      "src",
		"www_dir":      "www",
		"dist_dir":     "dist",
		"metrics_addr": "metrics-addr",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}
