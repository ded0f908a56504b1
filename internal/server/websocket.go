package server

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trader-game/internal/game"
	"trader-game/internal/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, implement proper origin checks
	},
}

type Client struct {
	conn     *websocket.Conn
	send     chan WSMessage
	playerID string

	// mu guards closed so that no goroutine sends on send after it is
	// closed; the broadcast loop and the read pump both write to it.
	mu     sync.Mutex
	closed bool
}

// trySend delivers a message unless the client is closed or its buffer is
// full. Reports whether the message was queued.
func (client *Client) trySend(message WSMessage) bool {
	client.mu.Lock()
	defer client.mu.Unlock()

	if client.closed {
		return false
	}
	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// shutdown closes the send channel exactly once, ending the write pump.
func (client *Client) shutdown() {
	client.mu.Lock()
	defer client.mu.Unlock()

	if client.closed {
		return
	}
	client.closed = true
	close(client.send)
}

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type commandPayload struct {
	Amount  float64 `json:"amount"`
	RoundID string  `json:"roundId"`
}

// handleWebSocket upgrades an authenticated connection and starts its pumps.
// Identity comes from the token, not the socket: dropping the connection
// never cancels a bet or forfeits cash-out rights.
func (s *GameServer) handleWebSocket(c *gin.Context) {
	claims, err := s.auth.ValidateToken(c.Query("token"))
	if err != nil {
		c.JSON(401, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:     conn,
		send:     make(chan WSMessage, 256),
		playerID: claims.UserID,
	}

	s.clients.Store(client, true)
	metrics.ConnectedClients.Set(float64(s.Online()))

	// New clients get the full state immediately.
	client.trySend(WSMessage{Type: game.EventGameState, Payload: s.engine.Snapshot()})

	go client.writePump()
	go client.readPump(s)
}

func (client *Client) writePump() {
	defer client.conn.Close()

	for message := range client.send {
		if err := client.conn.WriteJSON(message); err != nil {
			return
		}
	}
}

func (client *Client) readPump(s *GameServer) {
	defer func() {
		s.clients.Delete(client)
		client.shutdown()
		metrics.ConnectedClients.Set(float64(s.Online()))
		client.conn.Close()
	}()

	for {
		var message struct {
			Type    string         `json:"type"`
			Payload commandPayload `json:"payload"`
		}
		if err := client.conn.ReadJSON(&message); err != nil {
			break
		}

		switch message.Type {
		case "placeBet":
			bet, err := s.engine.PlaceBet(client.playerID, message.Payload.Amount)
			if err != nil {
				client.reply("betRejected", gin.H{
					"reason":  game.RejectionReason(err),
					"message": err.Error(),
				})
				continue
			}
			client.reply("betAccepted", bet)
		case "cashOut":
			co, err := s.engine.CashOut(client.playerID)
			if err != nil {
				client.reply("cashOutRejected", gin.H{
					"reason":  game.RejectionReason(err),
					"message": err.Error(),
				})
				continue
			}
			client.reply("cashOutAccepted", co)
		}
	}
}

func (client *Client) reply(msgType string, payload interface{}) {
	client.trySend(WSMessage{Type: msgType, Payload: payload})
}

// Broadcast implements game.Broadcaster over the connected client set. Slow
// consumers are dropped rather than allowed to block the engine.
func (s *GameServer) Broadcast(event string, payload any) {
	message := WSMessage{Type: event, Payload: payload}
	s.clients.Range(func(key, _ interface{}) bool {
		if client, ok := key.(*Client); ok {
			if !client.trySend(message) {
				s.clients.Delete(client)
				client.shutdown()
			}
		}
		return true
	})
}

// Online counts connected clients.
func (s *GameServer) Online() int {
	n := 0
	s.clients.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}
