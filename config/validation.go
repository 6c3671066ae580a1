package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func (c *AppConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	if c.Hub.HeartbeatInterval < 1 {
		return errors.New("hub heartbeat interval must be at least 1 second")
	}
	if c.Hub.BacklogLimit < 0 {
		return errors.New("hub backlog limit must not be negative")
	}

	switch strings.ToLower(c.History.Backend) {
	case "memory":
	case "redis":
		if c.History.Redis.Address == "" {
			return errors.New("redis address must be specified for redis history backend")
		}
	default:
		return fmt.Errorf("invalid history backend: %s. Must be 'memory' or 'redis'", c.History.Backend)
	}
	if c.History.MaxLen < 1 {
		return errors.New("history maxLen must be positive")
	}
	if c.Hub.BacklogLimit > c.History.MaxLen {
		return errors.New("hub backlog limit cannot exceed history maxLen")
	}

	switch strings.ToLower(c.Broker.Type) {
	case "none":
	case "redis":
		if c.Broker.Redis.Address == "" {
			return errors.New("redis address must be specified for redis broker")
		}
		if c.Broker.IngestTopic == "" {
			return errors.New("ingest topic must be configured for redis broker")
		}
	case "kafka":
		if len(c.Broker.Kafka.Brokers) == 0 {
			return errors.New("kafka brokers must be specified for kafka broker")
		}
		if c.Broker.Kafka.GroupID == "" {
			return errors.New("kafka groupID must be specified for kafka broker")
		}
		if c.Broker.IngestTopic == "" {
			return errors.New("ingest topic must be configured for kafka broker")
		}
	default:
		return fmt.Errorf("invalid broker type: %s. Must be 'none', 'redis' or 'kafka'", c.Broker.Type)
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return errors.New("invalid metrics port")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return errors.New("metrics path must start with '/'")
		}
	}

	return nil
}

func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "EDUHUB_PORT")

	// Hub
	viper.BindEnv("hub.heartbeatInterval", "EDUHUB_HEARTBEAT_INTERVAL")
	viper.BindEnv("hub.backlogLimit", "EDUHUB_BACKLOG_LIMIT")

	// History
	viper.BindEnv("history.backend", "EDUHUB_HISTORY_BACKEND")
	viper.BindEnv("history.redis.address", "EDUHUB_HISTORY_REDIS_ADDRESS")
	viper.BindEnv("history.redis.password", "EDUHUB_HISTORY_REDIS_PASSWORD")

	// Broker
	viper.BindEnv("broker.type", "EDUHUB_BROKER_TYPE")
	viper.BindEnv("broker.ingestTopic", "EDUHUB_BROKER_INGEST_TOPIC")
	viper.BindEnv("broker.redis.address", "EDUHUB_BROKER_REDIS_ADDRESS")
	viper.BindEnv("broker.redis.password", "EDUHUB_BROKER_REDIS_PASSWORD")
	viper.BindEnv("broker.kafka.brokers", "EDUHUB_BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.groupID", "EDUHUB_BROKER_KAFKA_GROUP_ID")

	// Metrics
	viper.BindEnv("metrics.enabled", "EDUHUB_METRICS_ENABLED")
	viper.BindEnv("metrics.port", "EDUHUB_METRICS_PORT")
}
