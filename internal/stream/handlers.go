package stream

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

var pingInterval = 30 * time.Second

// RegisterRoutes exposes /ws/:sessionID, a push-only feed of tracking events.
// Client messages are read and discarded so close frames are noticed; a
// periodic ping keeps idle proxies from dropping a paused run's feed.
func RegisterRoutes(r fiber.Router, hub *Hub) {
	every := pingInterval
	r.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})

	r.Get("/ws/:sessionID", websocket.New(func(c *websocket.Conn) {
		client := hub.Register(c.Params("sessionID"))
		defer hub.Unregister(client)

		done := make(chan struct{})
		go func() {
			defer close(done)
			writeLoop(c, client.Send, every)
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		// Unregister closes Send, which lets the writer exit.
		hub.Unregister(client)
		<-done
	}))
}

func writeLoop(c *websocket.Conn, send <-chan []byte, every time.Duration) {
	ping := time.NewTicker(every)
	defer ping.Stop()
	for {
		select {
		case msg, ok := <-send:
			if !ok {
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
