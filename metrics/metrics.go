package metrics

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_sessions_active",
		Help: "The current number of open push sessions.",
	})
	TotalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_sessions_total",
		Help: "The total number of push sessions accepted.",
	})

	// Delivery metrics
	EventsBroadcast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_events_broadcast_total",
		Help: "The total number of events handed to the broadcaster.",
	}, []string{"kind"})
	FramesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_frames_delivered_total",
		Help: "The total number of frames pushed to session sinks.",
	})
	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_delivery_failures_total",
		Help: "The total number of failed sink pushes, each tearing down one session.",
	})
	HeartbeatsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_heartbeats_sent_total",
		Help: "The total number of heartbeat frames sent.",
	})
	HistoryReplayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_history_records_replayed_total",
		Help: "The total number of backlog records replayed on stream open.",
	})

	// Broker metrics
	BrokerMessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broker_messages_published_total",
		Help: "The total number of envelopes published to the ingest broker.",
	}, []string{"broker_type"})
	BrokerMessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broker_messages_received_total",
		Help: "The total number of envelopes received from the ingest broker.",
	}, []string{"broker_type"})
	BrokerPublishRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broker_publish_retries_total",
		Help: "The total number of retries when publishing to the ingest broker.",
	}, []string{"broker_type"})
)

// StartServer starts the HTTP server for Prometheus metrics.
func StartServer(port int, path string) {
	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	log.Printf("Starting metrics server on %s%s", addr, path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Fatalf("Failed to start metrics server: %v", err)
		}
	}()
}
