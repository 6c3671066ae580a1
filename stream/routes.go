package stream

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes mounts the stream families and the submission paths. Chat and
// notification streams share the same handler; the channel query parameter
// is what scopes them.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/stream/chat", h.ServeStream)
	r.Get("/stream/notifications", h.ServeStream)
	r.Post("/events", h.ServePublish)
	r.Post("/acks", h.ServeAck)

	return r
}
