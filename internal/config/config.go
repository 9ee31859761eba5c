// ABOUTME: Server configuration loading
// ABOUTME: Merges defaults, config file and environment through viper
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full server configuration
type Config struct {
	Host             string  `mapstructure:"host"`
	Port             int     `mapstructure:"port"`
	Name             string  `mapstructure:"name"`
	EnableMDNS       bool    `mapstructure:"enable_mdns"`
	LogFile          string  `mapstructure:"log_file"`
	Backend          string  `mapstructure:"backend"` // "sim" or "oto"
	SamplesPerFrame  int     `mapstructure:"samples_per_frame"`
	FramesPerBuffer  int     `mapstructure:"frames_per_buffer"`
	CrossfadeSamples int64   `mapstructure:"crossfade_samples"`
	DefaultVolume    float64 `mapstructure:"default_volume"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8765)
	v.SetDefault("name", "wavedaq")
	v.SetDefault("enable_mdns", true)
	v.SetDefault("log_file", "")
	v.SetDefault("backend", "sim")
	v.SetDefault("samples_per_frame", 8192)
	v.SetDefault("frames_per_buffer", 10)
	v.SetDefault("crossfade_samples", 44100)
	v.SetDefault("default_volume", 100)
}

// Load reads configuration from path when given, otherwise from wavedaq.yaml
// in the working directory or /etc/wavedaq. WAVEDAQ_* environment variables
// override both.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WAVEDAQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("wavedaq")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/wavedaq")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
