package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/edupulse/hub/broker"
	"github.com/edupulse/hub/config"
	"github.com/edupulse/hub/history"
	"github.com/edupulse/hub/metrics"
	"github.com/edupulse/hub/realtime"
	"github.com/edupulse/hub/server"
	"github.com/edupulse/hub/stream"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	if err := config.Initialize(env); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg := config.Get()

	// Unique id for this instance; envelopes mirrored to the ingest topic
	// carry it so we can skip our own messages on the way back.
	instanceID := uuid.New().String()
	log.Printf("Starting hub instance with ID: %s", instanceID)

	// --- History store ---
	var store history.Store
	switch strings.ToLower(cfg.History.Backend) {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:        cfg.History.Redis.Address,
			Password:    cfg.History.Redis.Password,
			DB:          cfg.History.Redis.DB,
			PoolSize:    cfg.History.Redis.PoolSize,
			PoolTimeout: time.Duration(cfg.History.Redis.PoolTimeout) * time.Second,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis for history store: %v", err)
		}
		defer redisClient.Close()
		store = history.NewRedisStore(redisClient, cfg.History.MaxLen)
	default:
		store = history.NewMemoryStore(cfg.History.MaxLen)
	}
	log.Printf("History backend: %s", cfg.History.Backend)

	// --- Ingest broker ---
	var messageBroker broker.MessageBroker
	switch strings.ToLower(cfg.Broker.Type) {
	case "none":
		// HTTP submission is the only event source.
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Broker.Redis.Address,
			Password: cfg.Broker.Redis.Password,
			DB:       cfg.Broker.Redis.DB,
			PoolSize: cfg.Broker.Redis.PoolSize,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis for broker: %v", err)
		}
		defer redisClient.Close()
		messageBroker = broker.NewRedisBroker(redisClient)
	case "kafka":
		var err error
		messageBroker, err = broker.NewKafkaBroker(cfg.Broker.Kafka.Brokers, cfg.Broker.Kafka.GroupID)
		if err != nil {
			log.Fatalf("Failed to create Kafka broker: %v", err)
		}
	default:
		// Caught by config validation; checked again as a safeguard.
		log.Fatalf("Invalid broker type specified: %s", cfg.Broker.Type)
	}
	if messageBroker != nil {
		defer messageBroker.Close()
		log.Printf("Ingest broker: %s, topic %q", messageBroker.Type(), cfg.Broker.IngestTopic)
	}

	// --- Hub and handler ---
	hub := realtime.NewHub(
		realtime.WithHeartbeatInterval(time.Duration(cfg.Hub.HeartbeatInterval) * time.Second),
	)
	handler := stream.NewHandler(hub, store, cfg.Hub.BacklogLimit)
	if messageBroker != nil {
		handler.WithBroker(messageBroker, cfg.Broker.IngestTopic, instanceID)
		go handler.ListenForEvents(ctx)
	}

	if cfg.Metrics.Enabled {
		metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	port := ":" + strconv.Itoa(cfg.Server.Port)
	srv := server.NewServer(port, handler.Routes(), cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

	go srv.Start()
	log.Println("Event hub started on " + port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received")

	srv.Shutdown(ctx)
}
