package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

// ChatMessage is one message in a mentor-team conversation. Messages hang
// off the connection row, so a conversation exists exactly when a connection
// does.
type ChatMessage struct {
	ID           int64     `json:"id"`   // DB message id
	Type         string    `json:"type"` // "message"
	ConnectionID int       `json:"connection_id"`
	From         int       `json:"from"`
	To           int       `json:"to,omitempty"`
	Body         string    `json:"body,omitempty"`
	Ts           time.Time `json:"ts"` // created_at
}

// ServerEvent represents a server-sent event
type ServerEvent struct {
	Type string `json:"type"` // "message" | "typing" | "info" | "error"
	From int    `json:"from,omitempty"`
	Data any    `json:"data,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	userID int
	conn   *websocket.Conn
	send   chan ServerEvent
	db     *sql.DB
}

// Hub manages WebSocket client connections
type Hub struct {
	clientsByUser map[int]map[*Client]bool
	mu            sync.RWMutex
}

func newHub() *Hub {
	return &Hub{
		clientsByUser: make(map[int]map[*Client]bool),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clientsByUser[c.userID] == nil {
		h.clientsByUser[c.userID] = make(map[*Client]bool)
	}
	h.clientsByUser[c.userID][c] = true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if peers, ok := h.clientsByUser[c.userID]; ok {
		delete(peers, c)
		if len(peers) == 0 {
			delete(h.clientsByUser, c.userID)
		}
	}
}

func (h *Hub) sendToUser(userID int, evt ServerEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if peers, ok := h.clientsByUser[userID]; ok {
		for c := range peers {
			select {
			case c.send <- evt:
			default:
				// Drop message if user's buffer is full
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// For development: allow the Vite dev origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

// global hub
var chatHub = newHub()

func wsChatHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Browsers can't set headers on WS dials, so the token may arrive as
		// a query param instead of a Bearer header.
		userID, ok := getUserIDFromRequest(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WS upgrade error for user %d: %v", userID, err)
			return
		}

		client := &Client{
			userID: userID,
			conn:   conn,
			send:   make(chan ServerEvent, 16),
			db:     db,
		}
		chatHub.register(client)

		// Announce connection to this client
		client.send <- ServerEvent{Type: "info", Data: "connected"}

		// Start writer
		go clientWriter(client)
		// Start reader (blocks)
		clientReader(client)
	}
}

// Extract user ID from the Authorization header using the shared jwtSecret.
// This mirrors the authenticate() logic, but returns (id,ok) instead of
// wrapping a handler.
func getUserIDFromBearer(r *http.Request) (int, bool) {
	auth := r.Header.Get("Authorization")
	if len(auth) < 8 || auth[:7] != "Bearer " {
		return 0, false
	}
	tokenStr := auth[7:]
	id, ok := parseUserIDFromJWT(tokenStr)
	return id, ok
}

func getUserIDFromRequest(r *http.Request) (int, bool) {
	// Try Authorization header first
	if id, ok := getUserIDFromBearer(r); ok {
		return id, true
	}
	// Fallback: token query param for WS
	q := r.URL.Query().Get("token")
	if q != "" {
		return parseUserIDFromJWT(q)
	}
	return 0, false
}

func parseUserIDFromJWT(tokenStr string) (int, bool) {
	claims := jwt.MapClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, false
	}

	// jwt.MapClaims stores numbers as float64 by default
	fv, ok := claims["user_id"].(float64)
	if !ok {
		return 0, false
	}
	return int(fv), true
}

func clientReader(c *Client) {
	defer func() {
		chatHub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ChatMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.send <- ServerEvent{Type: "error", Data: "invalid message format"}
			continue
		}

		switch msg.Type {
		case "message":
			id, connID, ts, err := saveChatMsg(c.db, c.userID, msg.To, msg.Body)
			if err != nil {
				c.send <- ServerEvent{Type: "error", Data: "cannot send message"}
				continue
			}

			outMsg := ChatMessage{
				ID:           id,
				Type:         "message",
				ConnectionID: connID,
				From:         c.userID,
				To:           msg.To,
				Body:         msg.Body,
				Ts:           ts,
			}
			out := ServerEvent{
				Type: "message",
				From: c.userID,
				Data: outMsg,
			}

			// Relay to the recipient and echo back so the sender UI updates
			// without waiting for a reload.
			chatHub.sendToUser(msg.To, out)
			chatHub.sendToUser(c.userID, out)

		case "typing":
			// notify recipient that sender is typing
			chatHub.sendToUser(msg.To, ServerEvent{Type: "typing", From: c.userID})

		default:
			c.send <- ServerEvent{Type: "error", Data: "unknown message type"}
		}
	}
}

func clientWriter(c *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			// ping to keep the connection alive
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// saveChatMsg persists a message against the pair's connection. Messages
// only flow over an accepted mentor-team connection; without one the send
// fails.
func saveChatMsg(db *sql.DB, fromUserID int, toUserID int, body string) (int64, int, time.Time, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, 0, time.Time{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			_ = tx.Commit()
		}
	}()

	var conn *ConnectionRow
	conn, err = loadPairConnection(tx, fromUserID, toUserID)
	if err != nil {
		return 0, 0, time.Time{}, err
	}
	if conn == nil || conn.Status != "accepted" {
		err = fmt.Errorf("no accepted connection")
		return 0, 0, time.Time{}, err
	}

	var msgID int64
	var createdAt time.Time
	err = tx.QueryRow(`
		INSERT INTO messages (connection_id, sender_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, conn.ID, fromUserID, body).Scan(&msgID, &createdAt)
	if err != nil {
		return 0, 0, time.Time{}, err
	}

	return msgID, conn.ID, createdAt, nil
}

func getChatMessages(db *sql.DB, userID int, otherUserID int, limit int, before *time.Time) ([]ChatMessage, error) {
	conn, err := loadPairConnection(db, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return []ChatMessage{}, nil
	}

	q := `
		SELECT id, sender_id, body, created_at
		FROM messages
		WHERE connection_id = $1
			AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC
		LIMIT $3`

	var rows *sql.Rows
	if before != nil {
		rows, err = db.Query(q, conn.ID, *before, limit)
	} else {
		rows, err = db.Query(q, conn.ID, nil, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := make([]ChatMessage, 0, limit)
	for rows.Next() {
		var msgID int64
		var senderID int
		var body string
		var createdAt time.Time
		if err := rows.Scan(&msgID, &senderID, &body, &createdAt); err != nil {
			return nil, err
		}

		msgs = append(msgs, ChatMessage{
			ID:           msgID,
			Type:         "message",
			ConnectionID: conn.ID,
			From:         senderID,
			Body:         body,
			Ts:           createdAt,
		})
	}

	if err := rows.Err(); err != nil {
		// Don't mark as read if the query failed
		return nil, err
	}

	// Reading the conversation marks the peer's messages as read.
	_, _ = db.Exec(`
		UPDATE messages
		SET is_read = TRUE
		WHERE connection_id = $1 AND sender_id <> $2 AND is_read IS FALSE
	`, conn.ID, userID)

	return msgs, nil
}

// GET /chats/{peerId}/messages?limit=50&before=2026-03-01T08:00:00Z
func getChatHistoryHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID, ok := getUserIDFromBearer(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "chats" || parts[2] != "messages" {
			http.NotFound(w, r)
			return
		}
		otherID, err := strconv.Atoi(parts[1])
		if err != nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
				limit = n
			}
		}
		var beforePtr *time.Time
		if s := r.URL.Query().Get("before"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				beforePtr = &t
			}
		}

		msgs, err := getChatMessages(db, userID, otherID, limit, beforePtr)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			log.Println("Error fetching chat history:", err)
			return
		}

		writeJSON(w, http.StatusOK, msgs)
	}
}
