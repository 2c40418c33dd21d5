package SSE

import (
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Event names pushed to the admin dashboard.
const (
	EventLeadCreated    = "lead_created"
	EventLeadConfirmed  = "lead_confirmed"
	EventBookingCreated = "booking_created"
	EventMatchesUpdated = "matches_updated"
)

// Broadcaster fans admin refresh events out to every connected dashboard.
type refreshBroadcaster struct {
	clients map[chan string]bool
	mu      sync.Mutex
}

var Broadcaster = &refreshBroadcaster{clients: make(map[chan string]bool)}

func (b *refreshBroadcaster) Register(client chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[client] = true
}

func (b *refreshBroadcaster) Unregister(client chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		delete(b.clients, client)
		close(client)
	}
}

func (b *refreshBroadcaster) Broadcast(event string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for client := range b.clients {
		select {
		case client <- event:
		case <-time.After(1 * time.Second):
			// Client stopped reading, drop it.
			delete(b.clients, client)
			close(client)
		}
	}
}

func RequestSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientChan := make(chan string)
	Broadcaster.Register(clientChan)
	defer Broadcaster.Unregister(clientChan)

	fmt.Fprintf(c.Writer, "data: %s\n\n", "connected")
	c.Writer.Flush()

	for {
		select {
		case event := <-clientChan:
			fmt.Fprintf(c.Writer, "data: %s\n\n", event)
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}
