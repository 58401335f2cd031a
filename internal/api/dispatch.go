package api

import (
	"sync"

	"venue/internal/handler"
)

// Dispatcher fans handler events out to the WebSocket hub and to any
// per-request capture that is waiting for its own request's outcome. HTTP
// handlers open a capture around the matching call so they can answer the
// request synchronously while everything still flows to the hub.
type Dispatcher struct {
	hub *Hub

	mu       sync.Mutex
	captures map[*capture]struct{}
}

func NewDispatcher(hub *Hub) *Dispatcher {
	return &Dispatcher{
		hub:      hub,
		captures: make(map[*capture]struct{}),
	}
}

func (d *Dispatcher) Publish(event handler.Event) {
	d.hub.Publish(event)
	d.mu.Lock()
	for c := range d.captures {
		c.offer(event)
	}
	d.mu.Unlock()
}

// Capture opens a recorder for one request id. Callers must Release it.
func (d *Dispatcher) Capture(requestID int64) *capture {
	c := &capture{requestID: requestID}
	d.mu.Lock()
	d.captures[c] = struct{}{}
	d.mu.Unlock()
	return c
}

func (d *Dispatcher) Release(c *capture) {
	d.mu.Lock()
	delete(d.captures, c)
	d.mu.Unlock()
}

// capture collects the events addressed to one request id. Events for
// other requests (activation cascades, trades on other securities) stay on
// the hub only.
type capture struct {
	requestID int64
	events    []handler.Event
}

func (c *capture) offer(event handler.Event) {
	switch e := event.(type) {
	case handler.OrderAccepted:
		if e.RequestID == c.requestID {
			c.events = append(c.events, e)
		}
	case handler.OrderRejected:
		if e.RequestID == c.requestID {
			c.events = append(c.events, e)
		}
	case handler.OrderUpdated:
		if e.RequestID == c.requestID {
			c.events = append(c.events, e)
		}
	case handler.OrderDeleted:
		if e.RequestID == c.requestID {
			c.events = append(c.events, e)
		}
	case handler.OrderExecuted:
		if e.RequestID == c.requestID {
			c.events = append(c.events, e)
		}
	}
}

// Events returns what was recorded, in publish order.
func (c *capture) Events() []handler.Event { return c.events }
