package api

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"github.com/example/campus-errands/modules/realtime"
)

// wsFrame is the inbound control frame on the realtime socket.
// Clients manage their subscriptions; event payloads flow outbound as
// realtime.Envelope frames.
type wsFrame struct {
	Action  string `json:"action"` // "subscribe" | "unsubscribe"
	Subject string `json:"subject"`
}

// wsAck is the outbound acknowledgement or error frame.
type wsAck struct {
	Type    string `json:"type"`
	Subject string `json:"subject,omitempty"`
	Error   string `json:"error,omitempty"`
}

const wsAuthTimeout = 5 * time.Second

// handleWebSocket serves one realtime connection. The connection was
// authenticated during the upgrade; its user ID rides in Locals.
func (m *Module) handleWebSocket(c *websocket.Conn) {
	userID, _ := c.Locals(UserIDContextKey).(string)
	client := &realtime.Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   c,
	}

	m.hub.Register(client)
	defer func() {
		m.hub.Unregister(client)
		_ = c.Close()
	}()

	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[api] WebSocket error for user %s: %v", userID, err)
			}
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(msgBytes, &frame); err != nil {
			m.sendAck(c, wsAck{Type: "error", Error: "invalid frame"})
			continue
		}

		switch frame.Action {
		case "subscribe":
			m.handleSubscribe(c, client, frame.Subject)
		case "unsubscribe":
			m.hub.Unsubscribe(client.ID, frame.Subject)
			m.sendAck(c, wsAck{Type: "unsubscribed", Subject: frame.Subject})
		default:
			m.sendAck(c, wsAck{Type: "error", Error: "unknown action: " + frame.Action})
		}
	}
}

// handleSubscribe authorizes and registers one subject subscription.
// Task and open-feed subjects are readable by any authenticated user;
// room subjects require membership.
func (m *Module) handleSubscribe(c *websocket.Conn, client *realtime.Client, subject string) {
	switch {
	case subject == realtime.SubjectOpenTasks:
	case strings.HasPrefix(subject, "task."):
	case strings.HasPrefix(subject, "room."):
		roomID := strings.TrimPrefix(subject, "room.")
		ctx, cancel := context.WithTimeout(context.Background(), wsAuthTimeout)
		resp, err := m.chatPort.GetRoomByID(ctx, roomID, client.UserID)
		cancel()
		if err != nil {
			m.sendAck(c, wsAck{Type: "error", Subject: subject, Error: "subscription check failed"})
			return
		}
		if resp.Outcome != nil {
			m.sendAck(c, wsAck{Type: "error", Subject: subject, Error: resp.Outcome.Code})
			return
		}
	default:
		m.sendAck(c, wsAck{Type: "error", Subject: subject, Error: "unknown subject"})
		return
	}

	m.hub.Subscribe(client.ID, subject)
	m.sendAck(c, wsAck{Type: "subscribed", Subject: subject})
}

func (m *Module) sendAck(c *websocket.Conn, ack wsAck) {
	data, err := json.Marshal(ack)
	if err != nil {
		return
	}
	if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[api] Failed to write ack: %v", err)
	}
}
