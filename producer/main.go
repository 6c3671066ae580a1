// A sample event producer: publishes a grade alert to the hub's ingest
// topic over Redis pub/sub, the way the grading service hands alerts to
// the delivery layer. Useful for exercising a hub started with
// EDUHUB_BROKER_TYPE=redis.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Envelope must match the broker package's wire structure.
type Envelope struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Channel string          `json:"channel,omitempty"`
	Body    json.RawMessage `json:"body"`
	Origin  string          `json:"origin,omitempty"`
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func main() {
	redisAddr := getEnv("REDIS_ADDRESS", "localhost:6379")
	topic := getEnv("INGEST_TOPIC", "hub:events")
	channel := getEnv("CHANNEL", "proj-7")

	log.Printf("Connecting to Redis at %s", redisAddr)
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	ctx := context.Background()

	body, _ := json.Marshal(map[string]string{
		"studentId": "u1",
		"lab":       "lab-3",
		"grade":     "A-",
		"comment":   "resubmission accepted",
	})
	env := Envelope{
		ID:      uuid.New().String(),
		Kind:    "alert",
		Channel: channel,
		Body:    body,
		Origin:  "grading-service",
	}

	data, err := json.Marshal(env)
	if err != nil {
		log.Fatalf("Error encoding envelope: %v", err)
	}
	if err := rdb.Publish(ctx, topic, data).Err(); err != nil {
		log.Fatalf("Error publishing alert: %v", err)
	}
	log.Printf("Published grade alert %s to %s (channel %s)", env.ID, topic, env.Channel)
}
