package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tmdgusya/crawl-selector/internal/logger"
)

// Handler streams broker events to the requesting client until it disconnects.
func Handler(b Broker, log logger.Logger, opts ...ClientOption) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, cleanup := b.Subscribe(c.Request.Context(), opts...)
		defer cleanup()

		select {
		case _, ok := <-events:
			if !ok {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many connections"})
				return
			}
		default:
		}

		SetHeaders(c.Writer)
		c.Status(http.StatusOK)

		connected := Event{Type: eventConnected, Data: gin.H{"timestamp": time.Now().UTC().Format(time.RFC3339)}}
		if err := writeFlush(c.Writer, connected); err != nil {
			log.Debug("SSE connect write failed", logger.Error(err))
			return
		}

		ticker := time.NewTicker(b.HeartbeatInterval())
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := writeFlush(c.Writer, event); err != nil {
					log.Debug("SSE write failed", logger.String("event_type", event.Type), logger.Error(err))
					return
				}
			case <-ticker.C:
				if _, err := fmt.Fprint(c.Writer, ": heartbeat\n\n"); err != nil {
					return
				}
				c.Writer.Flush()
			case <-c.Request.Context().Done():
				return
			}
		}
	}
}

// SetHeaders sets the event-stream response headers.
func SetHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// Write encodes event in the event-stream wire format.
func Write(w io.Writer, event Event) error {
	if event.Type != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
			return fmt.Errorf("write event type: %w", err)
		}
	}
	if event.ID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", event.ID); err != nil {
			return fmt.Errorf("write event id: %w", err)
		}
	}
	if event.Retry > 0 {
		if _, err := fmt.Fprintf(w, "retry: %d\n", event.Retry); err != nil {
			return fmt.Errorf("write retry: %w", err)
		}
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event data: %w", err)
	}
	return nil
}

func writeFlush(w gin.ResponseWriter, event Event) error {
	if err := Write(w, event); err != nil {
		return err
	}
	w.Flush()
	return nil
}
