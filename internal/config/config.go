package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application settings, sourced from OPENSENTINEL_*
// environment variables with sensible defaults.
type Config struct {
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	ServerPort int

	// ConfigPath is where tools.yaml is searched first.
	ConfigPath string
	// WorkDir is where tool output files are written.
	WorkDir string

	AdapterTimeout     time.Duration
	MaxConcurrentScans int
	StoreRetries       int
	StoreRetryDelay    time.Duration

	DiscordEnabled bool
}

func Load() *Config {
	v := viper.New()
	v.SetEnvPrefix("OPENSENTINEL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "opensentinel")
	v.SetDefault("db_password", "opensentinel")
	v.SetDefault("db_name", "opensentinel")
	v.SetDefault("server_port", 8080)
	v.SetDefault("config_path", "./config")
	v.SetDefault("work_dir", "./scans")
	v.SetDefault("adapter_timeout", "10m")
	v.SetDefault("max_concurrent_scans", 3)
	v.SetDefault("store_retries", 3)
	v.SetDefault("store_retry_delay", "200ms")
	v.SetDefault("discord_enabled", false)

	return &Config{
		DBHost:             v.GetString("db_host"),
		DBPort:             v.GetInt("db_port"),
		DBUser:             v.GetString("db_user"),
		DBPassword:         v.GetString("db_password"),
		DBName:             v.GetString("db_name"),
		ServerPort:         v.GetInt("server_port"),
		ConfigPath:         v.GetString("config_path"),
		WorkDir:            v.GetString("work_dir"),
		AdapterTimeout:     v.GetDuration("adapter_timeout"),
		MaxConcurrentScans: v.GetInt("max_concurrent_scans"),
		StoreRetries:       v.GetInt("store_retries"),
		StoreRetryDelay:    v.GetDuration("store_retry_delay"),
		DiscordEnabled:     v.GetBool("discord_enabled"),
	}
}
