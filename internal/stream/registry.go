package stream

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/erwinnova/umkm-tracker/internal/tracking"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const broadcastChannel = "tracking:broadcast"

// Ingester accepts raw position samples. *tracking.Service satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, sellerID string, lat, lng float64, sessionID *string) (*tracking.LocationLog, error)
}

// Client is one live push channel to a connected seller device.
type Client struct {
	SellerID string

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient() *Client {
	return &Client{send: make(chan []byte, 64)}
}

// Recv exposes the outbound message stream for the transport write loop.
func (c *Client) Recv() <-chan []byte {
	return c.send
}

// Push queues a message without blocking. A full or torn-down channel
// drops the message and reports false.
func (c *Client) Push(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Registry maps each seller to its single live channel and routes inbound
// samples to the ingestion engine. With a Redis client it also fans
// broadcasts out across instances.
type Registry struct {
	instanceID string
	ingester   Ingester
	redis      *redis.Client

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewRegistry(ingester Ingester, redisClient *redis.Client) *Registry {
	r := &Registry{
		instanceID: uuid.NewString(),
		ingester:   ingester,
		redis:      redisClient,
		clients:    map[string]*Client{},
	}

	if redisClient != nil {
		go r.subscribeRedis()
	}
	return r
}

// Register installs the channel for a seller. An existing channel for the
// same seller is torn down first: last registration wins. A channel that
// re-registers under a new seller id gives up its previous key.
func (r *Registry) Register(sellerID string, client *Client) {
	r.mu.Lock()
	if prev := client.SellerID; prev != "" && prev != sellerID && r.clients[prev] == client {
		delete(r.clients, prev)
	}
	old := r.clients[sellerID]
	client.SellerID = sellerID
	r.clients[sellerID] = client
	r.mu.Unlock()

	if old != nil && old != client {
		old.shutdown()
	}
}

// Unregister tears down a channel, matching by channel identity: a stale
// channel that was already replaced never evicts its successor.
func (r *Registry) Unregister(client *Client) {
	r.mu.Lock()
	if current, ok := r.clients[client.SellerID]; ok && current == client {
		delete(r.clients, client.SellerID)
	}
	r.mu.Unlock()

	client.shutdown()
}

func (r *Registry) ListActive() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

type updatePayload struct {
	SellerID  string   `json:"seller_id"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	SessionID *string  `json:"session_id,omitempty"`
}

// Route validates an inbound updateLocation payload, hands it to the
// ingestion engine, and returns the ack to send back on the channel.
// Accepted samples are broadcast to every other live channel.
func (r *Registry) Route(ctx context.Context, from *Client, data json.RawMessage) []byte {
	var p updatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return errorAck("malformed payload")
	}
	if p.SellerID == "" {
		return errorAck("seller_id required")
	}
	if p.Lat == nil || p.Lng == nil {
		return errorAck("lat and lng required")
	}

	entry, err := r.ingester.Ingest(ctx, p.SellerID, *p.Lat, *p.Lng, p.SessionID)
	if err != nil {
		return errorAck(err.Error())
	}
	if entry == nil {
		return mustJSON(map[string]any{
			"status":  "skipped",
			"message": "location skipped by sampling policy",
		})
	}

	r.Broadcast(from, mustJSON(map[string]any{
		"seller_id": p.SellerID,
		"lat":       *p.Lat,
		"lng":       *p.Lng,
		"timestamp": entry.RecordedAt.UnixMilli(),
	}))

	return mustJSON(map[string]any{
		"status":  "ok",
		"message": "location recorded",
		"data":    entry,
	})
}

// Broadcast pushes a payload to every live channel except the origin and
// publishes it for other instances.
func (r *Registry) Broadcast(from *Client, payload []byte) {
	r.mu.RLock()
	for _, client := range r.clients {
		if client == from {
			continue
		}
		client.Push(payload)
	}
	r.mu.RUnlock()

	if r.redis != nil {
		msg := r.instanceID + "|" + string(payload)
		if err := r.redis.Publish(context.Background(), broadcastChannel, msg).Err(); err != nil {
			log.Printf("redis publish error: %v", err)
		}
	}
}

// subscribeRedis forwards broadcasts from other instances to local
// channels. Messages published by this instance are ignored.
func (r *Registry) subscribeRedis() {
	ctx := context.Background()
	pubsub := r.redis.Subscribe(ctx, broadcastChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		src, payload, ok := strings.Cut(msg.Payload, "|")
		if !ok || src == r.instanceID {
			continue
		}
		r.mu.RLock()
		for _, client := range r.clients {
			client.Push([]byte(payload))
		}
		r.mu.RUnlock()
	}
}

func errorAck(message string) []byte {
	return mustJSON(map[string]any{"status": "error", "message": message})
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("marshal ack: %v", err)
		return []byte(`{"status":"error","message":"internal error"}`)
	}
	return b
}
