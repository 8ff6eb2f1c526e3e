package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultSSEPoll = 3 * time.Second
	sseHeartbeat   = 15 * time.Second
)

// messageEvent is sent for every message appended after the stream opened.
type messageEvent struct {
	Timestamp string `json:"timestamp"`
	From      string `json:"from"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Priority  string `json:"priority"`
}

// handleSSE streams new messages as they are appended to the store. It
// polls the store and remembers how many messages it has already seen.
func handleSSE(src *source, poll time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		seen := 0
		if all, err := src.store.All(); err == nil {
			seen = len(all)
		}

		ctx := c.Request.Context()
		ticker := time.NewTicker(poll)
		heartbeat := time.NewTicker(sseHeartbeat)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				all, err := src.store.All()
				if err != nil || len(all) <= seen {
					// A shrinking file store (rewritten from scratch) restarts the count.
					if err == nil {
						seen = len(all)
					}
					continue
				}
				for _, m := range all[seen:] {
					writeSSE(c.Writer, "message", messageEvent{
						Timestamp: m.Timestamp,
						From:      m.From,
						To:        m.To,
						Subject:   m.Subject,
						Priority:  m.Priority,
					})
				}
				seen = len(all)
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
