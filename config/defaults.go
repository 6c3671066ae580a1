package config

import "github.com/spf13/viper"

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 0)
	viper.SetDefault("server.writeTimeout", 0)

	// Hub
	viper.SetDefault("hub.heartbeatInterval", 30)
	viper.SetDefault("hub.backlogLimit", 50)

	// History
	viper.SetDefault("history.backend", "memory")
	viper.SetDefault("history.maxLen", 256)
	viper.SetDefault("history.redis.address", "localhost:6379")
	viper.SetDefault("history.redis.db", 0)
	viper.SetDefault("history.redis.poolSize", 100)
	viper.SetDefault("history.redis.poolTimeout", 5)

	// Broker
	viper.SetDefault("broker.type", "none")
	viper.SetDefault("broker.ingestTopic", "hub:events")
	viper.SetDefault("broker.redis.address", "localhost:6379")
	viper.SetDefault("broker.redis.db", 0)
	viper.SetDefault("broker.redis.poolSize", 100)
	viper.SetDefault("broker.kafka.groupID", "edupulse-hub")

	// Metrics
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.path", "/metrics")
}
