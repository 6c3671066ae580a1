package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Server  ServerConfig
	Hub     HubConfig
	History HistoryConfig
	Broker  BrokerConfig
	Metrics MetricsConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  int // Seconds. 0 disables the read deadline; a stream stays open indefinitely.
	WriteTimeout int // Seconds. 0 disables the write deadline.
}

type HubConfig struct {
	HeartbeatInterval int // Seconds
	BacklogLimit      int // Records replayed on stream open
}

type HistoryConfig struct {
	Backend string // "memory" or "redis"
	MaxLen  int    // Records kept per channel
	Redis   RedisConfig
}

type RedisConfig struct {
	Address     string
	Password    string
	DB          int
	PoolSize    int
	PoolTimeout int // Seconds
}

type BrokerConfig struct {
	Type        string // "none", "redis" or "kafka"
	IngestTopic string
	Redis       RedisConfig
	Kafka       KafkaConfig
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

var (
	instance *AppConfig
	once     sync.Once
)

func Initialize(env string) error {
	var initErr error
	once.Do(func() {
		viper.SetConfigName(fmt.Sprintf("config.%s", env))
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")

		viper.AutomaticEnv()
		viper.SetEnvPrefix("EDUHUB")

		setDefaults()
		bindEnvVars()

		if err := viper.ReadInConfig(); err != nil {
			// A missing file is fine; defaults and env vars carry the config.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				initErr = fmt.Errorf("config file error: %w", err)
				return
			}
		}

		var cfg AppConfig
		if err := viper.Unmarshal(&cfg); err != nil {
			initErr = fmt.Errorf("config unmarshal error: %w", err)
			return
		}

		if err := cfg.Validate(); err != nil {
			initErr = fmt.Errorf("config validation failed: %w", err)
			return
		}
		instance = &cfg
	})
	return initErr
}

func Get() *AppConfig {
	return instance
}
