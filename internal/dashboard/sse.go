package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const heartbeatInterval = 15 * time.Second

// handleSSE streams a project's worklist order. A "worklist" event carries
// the full order on connect and again whenever it changes.
func handleSSE(d *deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, err := requiredID(c.Query("project_id"), "project_id")
		if err != nil {
			renderError(c, err)
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]uint{"project_id": projectID})
		c.Writer.Flush()

		ctx := c.Request.Context()
		db := d.svc.DB().WithContext(ctx)
		last, err := RankSnapshot(db, projectID)
		if err != nil {
			d.log.Warn("sse snapshot failed", zap.Uint("project_id", projectID), zap.Error(err))
			return
		}
		writeSSE(c.Writer, "worklist", last)
		c.Writer.Flush()

		ticker := time.NewTicker(d.poll)
		heartbeat := time.NewTicker(heartbeatInterval)
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
				cur, err := RankSnapshot(db, projectID)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					d.log.Warn("sse snapshot failed", zap.Uint("project_id", projectID), zap.Error(err))
					continue
				}
				if slices.Equal(cur, last) {
					continue
				}
				last = cur
				writeSSE(c.Writer, "worklist", cur)
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
