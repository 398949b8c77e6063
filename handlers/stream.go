package handlers

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

const streamKeepalive = 15 * time.Second

// StreamFilters sends every emitted filter of a session as a "filter" SSE
// event. The last emitted filter, if any, is sent first.
func StreamFilters(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := lookupSession(c, reg)
		if !ok {
			return
		}

		events := s.hub.subscribe()
		defer s.hub.unsubscribe(events)

		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		if last := s.LastFilter(); last != nil {
			c.SSEvent("filter", last)
			c.Writer.Flush()
		}

		keepalive := time.NewTicker(streamKeepalive)
		defer keepalive.Stop()

		c.Stream(func(w io.Writer) bool {
			select {
			case rf, ok := <-events:
				if !ok {
					c.SSEvent("closed", s.ID)
					return false
				}
				c.SSEvent("filter", rf)
				return true
			case <-keepalive.C:
				c.SSEvent("keepalive", time.Now().UTC())
				return true
			case <-c.Request.Context().Done():
				return false
			}
		})
	}
}
