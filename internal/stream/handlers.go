package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func RegisterRoutes(r fiber.Router, registry *Registry) {
	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		client := NewClient()
		defer registry.Unregister(client)

		done := make(chan struct{})
		go func() {
			for msg := range client.Recv() {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			// channel torn down (disconnect or replacement): drop the socket
			_ = c.Close()
			close(done)
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var evt event
			if err := json.Unmarshal(raw, &evt); err != nil {
				client.Push(errorAck("malformed event"))
				continue
			}

			switch evt.Event {
			case "register":
				var p struct {
					SellerID string `json:"seller_id"`
				}
				if err := json.Unmarshal(evt.Data, &p); err != nil || p.SellerID == "" {
					client.Push(errorAck("seller_id required"))
					continue
				}
				registry.Register(p.SellerID, client)
				client.Push(mustJSON(map[string]any{
					"status":    "registered",
					"seller_id": p.SellerID,
				}))

			case "updateLocation":
				client.Push(registry.Route(context.Background(), client, evt.Data))

			case "ping":
				client.Push(mustJSON(map[string]any{
					"status":    "pong",
					"timestamp": time.Now().UnixMilli(),
				}))

			default:
				client.Push(errorAck("unknown event"))
			}
		}

		registry.Unregister(client)
		<-done
	}))
}
