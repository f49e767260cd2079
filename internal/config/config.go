package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Store struct {
	Path string `mapstructure:"path"`
}

type API struct {
	Provider    string `mapstructure:"provider"`
	ReadRetries int    `mapstructure:"read_retries"`
}

type Download struct {
	Providers        []string `mapstructure:"providers"`
	BatchSizeDays    int      `mapstructure:"batch_size_days"`
	ReadDelaySeconds int      `mapstructure:"read_delay_seconds"`
	ReadRetries      int      `mapstructure:"read_retries"`
}

type Logging struct {
	Level string `mapstructure:"level"`
}

type AppConfig struct {
	Store    Store    `mapstructure:"store"`
	API      API      `mapstructure:"api"`
	Download Download `mapstructure:"download"`
	Logging  Logging  `mapstructure:"logging"`
}

// Init loads configuration from an optional YAML file, the environment
// and defaults, in that order of precedence. path may be empty.
func Init(path string) (*AppConfig, error) {
	var cfg AppConfig

	// .env is a local-development convenience; in production the
	// variables are simply set.
	_ = godotenv.Load()

	viper.SetDefault("store.path", "reveal.db")
	viper.SetDefault("api.provider", "openexchangerates")
	viper.SetDefault("api.read_retries", 3)
	viper.SetDefault("download.providers", []string{"openexchangerates"})
	viper.SetDefault("download.batch_size_days", 30)
	viper.SetDefault("download.read_delay_seconds", 0)
	viper.SetDefault("download.read_retries", 3)
	viper.SetDefault("logging.level", "info")

	_ = viper.BindEnv("store.path", "REVEAL_STORE_PATH")
	_ = viper.BindEnv("api.provider", "REVEAL_API_PROVIDER")
	_ = viper.BindEnv("api.read_retries", "REVEAL_API_READ_RETRIES")
	_ = viper.BindEnv("logging.level", "REVEAL_LOG_LEVEL")

	if path != "" {
		viper.SetConfigFile(path)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// Credentials collects the ordered credential list for a provider from
// the environment: <PROVIDER>_APP_IDS holds colon-separated app IDs.
func Credentials(provider string) ([]string, error) {
	name := strings.ToUpper(provider) + "_APP_IDS"
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return nil, fmt.Errorf("environment variable %s is not set", name)
	}
	return strings.Split(value, ":"), nil
}
