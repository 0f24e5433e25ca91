package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/mesa-backend/api/responses"
	"github.com/angelmondragon/mesa-backend/internal/events"
	pkgerrors "github.com/angelmondragon/mesa-backend/pkg/errors"
	"github.com/angelmondragon/mesa-backend/pkg/logger"
)

var knownTopics = map[string]bool{
	events.TopicOrders:        true,
	events.TopicKitchen:       true,
	events.TopicInventory:     true,
	events.TopicNotifications: true,
}

const sseHeartbeat = 25 * time.Second

// EventStream bridges the hub to a terminal over SSE. A topics query param
// narrows the stream; without it the client gets every topic.
func EventStream(hub *events.Hub, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		var topics []string
		if raw := strings.TrimSpace(r.URL.Query().Get("topics")); raw != "" {
			for _, topic := range strings.Split(raw, ",") {
				topic = strings.TrimSpace(topic)
				if !knownTopics[topic] {
					responses.WriteError(r.Context(), logg, w,
						pkgerrors.New(pkgerrors.CodeValidation, "unknown topic").WithDetails(map[string]any{"topic": topic}))
					return
				}
				topics = append(topics, topic)
			}
		}

		ch, cancel := hub.Subscribe(topics...)
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		heartbeat := time.NewTicker(sseHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-heartbeat.C:
				fmt.Fprint(w, ": heartbeat\n\n")
				flusher.Flush()
			case event, open := <-ch:
				if !open {
					return
				}
				payload, err := json.Marshal(event)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Topic, payload)
				flusher.Flush()
			}
		}
	}
}
