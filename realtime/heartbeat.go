package realtime

import (
	"log"
	"time"

	"github.com/edupulse/hub/metrics"
)

// heartbeatLoop pushes a liveness frame to one session at the configured
// interval. The ticker's lifetime is bound to the session: cancellation at
// teardown stops the loop, and the registry check guards the window between
// an unregister and the context cancellation so a tick never fires a push
// for a session that is already gone.
func (h *Hub) heartbeatLoop(sess *Session) {
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !h.registry.Has(sess.ID) {
				return
			}
			if err := sess.Push(KindHeartbeat, heartbeatPayload()); err != nil {
				log.Printf("Heartbeat to session %s failed: %v", sess.ID, err)
				h.Disconnect(sess.ID)
				return
			}
			metrics.HeartbeatsSent.Inc()
		case <-sess.Done():
			return
		}
	}
}

func heartbeatPayload() []byte {
	return []byte(`{"ts":"` + time.Now().UTC().Format(time.RFC3339) + `"}`)
}
