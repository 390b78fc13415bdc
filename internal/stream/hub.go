package stream

import (
	"context"
	"encoding/json"

	"netpulse/internal/logger"
)

const (
	TopicLive  = "live"
	TopicClock = "clock"
)

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Message is the envelope every frame is wrapped in.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub fans payloads out to subscribers by topic. All subscriber state is
// owned by the run goroutine.
type Hub struct {
	clients   map[string]map[Subscriber]struct{}
	register  chan subscription
	unreg     chan subscription
	broadcast chan message
	counts    chan chan int
	done      <-chan struct{}
	log       *logger.Logger
}

type message struct {
	topic   string
	payload []byte
}

type subscription struct {
	topic  string
	client Subscriber
}

// NewHub starts a hub that runs until ctx is done, closing every
// subscriber on exit.
func NewHub(ctx context.Context, log *logger.Logger) *Hub {
	h := &Hub{
		clients:   make(map[string]map[Subscriber]struct{}),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		broadcast: make(chan message, 64),
		counts:    make(chan chan int),
		done:      ctx.Done(),
		log:       log,
	}
	go h.run(ctx)
	return h
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.clients {
				for c := range clients {
					c.Close()
				}
			}
			h.clients = map[string]map[Subscriber]struct{}{}
			return
		case sub := <-h.register:
			if _, ok := h.clients[sub.topic]; !ok {
				h.clients[sub.topic] = make(map[Subscriber]struct{})
			}
			h.clients[sub.topic][sub.client] = struct{}{}
		case sub := <-h.unreg:
			if clients, ok := h.clients[sub.topic]; ok {
				delete(clients, sub.client)
				if len(clients) == 0 {
					delete(h.clients, sub.topic)
				}
			}
		case msg := <-h.broadcast:
			if clients, ok := h.clients[msg.topic]; ok {
				for c := range clients {
					if err := c.Send(msg.payload); err != nil {
						c.Close()
						delete(clients, c)
					}
				}
				if len(clients) == 0 {
					delete(h.clients, msg.topic)
				}
			}
		case reply := <-h.counts:
			distinct := make(map[Subscriber]struct{})
			for _, clients := range h.clients {
				for c := range clients {
					distinct[c] = struct{}{}
				}
			}
			reply <- len(distinct)
		}
	}
}

// Register adds a client to a topic. A stopped hub closes the client
// immediately.
func (h *Hub) Register(topic string, client Subscriber) {
	select {
	case h.register <- subscription{topic: topic, client: client}:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(topic string, client Subscriber) {
	select {
	case h.unreg <- subscription{topic: topic, client: client}:
	case <-h.done:
	}
}

// Broadcast sends payload to all topic clients. It is a no-op once the
// hub has stopped.
func (h *Hub) Broadcast(topic string, payload []byte) {
	select {
	case h.broadcast <- message{topic: topic, payload: payload}:
	case <-h.done:
	}
}

// Publish wraps data in a Message of the given type and broadcasts it.
func (h *Hub) Publish(topic, typ string, data interface{}) {
	payload, err := json.Marshal(Message{Type: typ, Data: data})
	if err != nil {
		h.log.Error("encode stream message failed", "type", typ, "error", err)
		return
	}
	h.Broadcast(topic, payload)
}

// Subscribers reports the number of distinct clients. A client on several
// topics counts once.
func (h *Hub) Subscribers() int {
	reply := make(chan int)
	select {
	case h.counts <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}
