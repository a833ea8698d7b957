package api

import (
	"coin_portal/internal/domain" // Domain models
	"coin_portal/internal/ledger" // Ledger service
	"coin_portal/internal/stream" // Change hub
	"context"                     // Connection lifetime
	"net/http"                    // HTTP status codes
	"runtime/debug"               // Stack traces for recovered panics
	"sync"                        // Goroutine coordination
	"time"                        // Deadlines and keep-alive

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/gorilla/websocket" // WebSocket transport
	"github.com/sirupsen/logrus"   // Logging library
)

const (
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Authentication is by token, not by cookie
	},
}

// StreamMessage is one frame sent to stream clients.
//
//	{"type": "snapshot", "payload": {"account": {...}, "notifications": [...]}}
//	{"type": "change",   "payload": {"account_id": "...", "revision": 7, ...}}
//	{"type": "reset",    "payload": {"reason": "..."}}
//
// Clients upsert notifications by id. After a reset they reconnect and start from a new snapshot.
type StreamMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// StreamSnapshot is the state a stream starts from
type StreamSnapshot struct {
	Account       *domain.Account       `json:"account"`
	Notifications []domain.Notification `json:"notifications"`
}

// StreamHandler upgrades to a websocket that sends the account snapshot and then every later
// committed change of the account, in revision order.
func StreamHandler(svc *ledger.Service, hub *stream.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id := accountID(c)
		log := logrus.WithFields(logrus.Fields{"account_id": id, "remote_addr": c.Request.RemoteAddr})

		// Subscribe before reading the snapshot so no change falls between the two
		current, err := svc.FindAccountByID(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		sub, err := hub.Subscribe(id, current.Revision)
		if err != nil {
			respondError(c, err)
			return
		}
		defer sub.Close()

		snapshot, err := svc.FindAccountByID(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		notifications, err := svc.ListNotifications(ctx, id, false)
		if err != nil {
			respondError(c, err)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.WithError(err).Warn("Failed to upgrade WebSocket connection")
			return
		}
		defer conn.Close()
		log.Info("Stream client connected")

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		send := make(chan StreamMessage, 64)
		send <- StreamMessage{Type: "snapshot", Payload: StreamSnapshot{Account: snapshot, Notifications: notifications}}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			defer recoverStream(log, "writer", cancel)
			writeMessages(conn, send, cancel, log)
		}()
		go func() {
			defer wg.Done()
			defer recoverStream(log, "ping", cancel)
			sendPings(ctx, conn, log)
		}()
		go func() {
			defer recoverStream(log, "reader", cancel)
			readUntilClosed(conn, cancel)
		}()

		forwardChanges(ctx, sub, snapshot.Revision, send)

		cancel()
		close(send)
		wg.Wait()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
		log.Info("Stream client disconnected")
	}
}

// forwardChanges queues changes newer than the snapshot until the client leaves or the
// subscription ends
func forwardChanges(ctx context.Context, sub *stream.Subscription, after int64, send chan<- StreamMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-sub.Changes():
			if !ok {
				// Closed by the hub because the client fell behind
				queue(ctx, send, StreamMessage{Type: "reset", Payload: gin.H{"reason": "stream lagged, reconnect"}})
				return
			}
			if change.Revision <= after && !change.Deleted {
				continue // Already part of the snapshot
			}
			if !queue(ctx, send, StreamMessage{Type: "change", Payload: change}) {
				return
			}
			if change.Deleted {
				return
			}
		}
	}
}

func queue(ctx context.Context, send chan<- StreamMessage, msg StreamMessage) bool {
	select {
	case send <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// writeMessages writes queued messages until send is closed
func writeMessages(conn *websocket.Conn, send <-chan StreamMessage, cancel context.CancelFunc, log *logrus.Entry) {
	for msg := range send {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			log.WithError(err).Warn("Failed to write stream message")
			cancel()
			for range send {
				// Drain so the producer never blocks
			}
			return
		}
	}
}

// sendPings keeps the connection alive; the pong handler extends the read deadline
func sendPings(ctx context.Context, conn *websocket.Conn, log *logrus.Entry) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				log.WithError(err).Debug("Failed to send ping")
				return
			}
		}
	}
}

// readUntilClosed discards client frames and cancels once the connection is gone
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func recoverStream(log *logrus.Entry, goroutine string, cancel context.CancelFunc) {
	if rec := recover(); rec != nil {
		log.WithFields(logrus.Fields{
			"goroutine": goroutine,
			"panic":     rec,
			"stack":     string(debug.Stack()),
		}).Error("Panic in stream goroutine")
		cancel()
	}
}
