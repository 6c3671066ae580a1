package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() AppConfig {
	return AppConfig{
		Server: ServerConfig{Port: 8080},
		Hub:    HubConfig{HeartbeatInterval: 30, BacklogLimit: 50},
		History: HistoryConfig{
			Backend: "memory",
			MaxLen:  256,
		},
		Broker: BrokerConfig{Type: "none", IngestTopic: "hub:events"},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *AppConfig) {},
		},
		{
			name:    "bad server port",
			mutate:  func(c *AppConfig) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "zero heartbeat interval",
			mutate:  func(c *AppConfig) { c.Hub.HeartbeatInterval = 0 },
			wantErr: "heartbeat interval",
		},
		{
			name:    "negative backlog",
			mutate:  func(c *AppConfig) { c.Hub.BacklogLimit = -1 },
			wantErr: "backlog limit",
		},
		{
			name:    "backlog larger than retained history",
			mutate:  func(c *AppConfig) { c.Hub.BacklogLimit = 500 },
			wantErr: "cannot exceed history maxLen",
		},
		{
			name:    "unknown history backend",
			mutate:  func(c *AppConfig) { c.History.Backend = "postgres" },
			wantErr: "invalid history backend",
		},
		{
			name: "redis history without address",
			mutate: func(c *AppConfig) {
				c.History.Backend = "redis"
				c.History.Redis.Address = ""
			},
			wantErr: "redis address",
		},
		{
			name: "redis history with address",
			mutate: func(c *AppConfig) {
				c.History.Backend = "redis"
				c.History.Redis.Address = "localhost:6379"
			},
		},
		{
			name:    "unknown broker type",
			mutate:  func(c *AppConfig) { c.Broker.Type = "rabbitmq" },
			wantErr: "invalid broker type",
		},
		{
			name: "redis broker without address",
			mutate: func(c *AppConfig) {
				c.Broker.Type = "redis"
				c.Broker.Redis.Address = ""
			},
			wantErr: "redis address",
		},
		{
			name: "kafka broker without brokers",
			mutate: func(c *AppConfig) {
				c.Broker.Type = "kafka"
				c.Broker.Kafka.GroupID = "g1"
			},
			wantErr: "kafka brokers",
		},
		{
			name: "kafka broker without group id",
			mutate: func(c *AppConfig) {
				c.Broker.Type = "kafka"
				c.Broker.Kafka.Brokers = []string{"localhost:9092"}
				c.Broker.Kafka.GroupID = ""
			},
			wantErr: "kafka groupID",
		},
		{
			name: "kafka broker without ingest topic",
			mutate: func(c *AppConfig) {
				c.Broker.Type = "kafka"
				c.Broker.Kafka.Brokers = []string{"localhost:9092"}
				c.Broker.Kafka.GroupID = "g1"
				c.Broker.IngestTopic = ""
			},
			wantErr: "ingest topic",
		},
		{
			name: "kafka broker fully configured",
			mutate: func(c *AppConfig) {
				c.Broker.Type = "kafka"
				c.Broker.Kafka.Brokers = []string{"localhost:9092"}
				c.Broker.Kafka.GroupID = "g1"
			},
		},
		{
			name:    "bad metrics port",
			mutate:  func(c *AppConfig) { c.Metrics.Port = -1 },
			wantErr: "invalid metrics port",
		},
		{
			name:    "metrics path without slash",
			mutate:  func(c *AppConfig) { c.Metrics.Path = "metrics" },
			wantErr: "metrics path",
		},
		{
			name: "metrics disabled skips metrics checks",
			mutate: func(c *AppConfig) {
				c.Metrics.Enabled = false
				c.Metrics.Port = -1
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tc.wantErr)
			}
		})
	}
}
