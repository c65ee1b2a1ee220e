package session

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"shared-spreadsheet-editor/internal/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

// Client is one websocket connection. It is the outbox of exactly one
// Session.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	quit    chan struct{}
	once    sync.Once
	fileID  string
	user    string
	session *Session
	log     *logrus.Entry
}

// Send queues m for the client. Messages sent after shutdown, or while the
// client is too slow to drain its buffer, are dropped.
func (c *Client) Send(m Message) {
	if m.FileID == "" {
		m.FileID = c.fileID
	}
	select {
	case <-c.quit:
		return
	default:
	}
	select {
	case c.send <- m.bytes():
	default:
		c.log.WithField("type", m.Type).Warn("hub: send buffer full, dropping message")
	}
}

// shutdown makes the write pump flush what is queued and close the
// connection.
func (c *Client) shutdown() {
	c.once.Do(func() { close(c.quit) })
}

func (c *Client) readPump() {
	defer func() {
		c.session.Close()
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Warn("hub: read failed")
			}
			return
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			c.Send(newMessage(TypeCommandError, map[string]string{"error": "malformed message: " + err.Error()}))
			continue
		}
		m.User = c.user
		if !c.session.Deliver(m) {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case b := <-c.send:
			if err := c.write(b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.quit:
			c.drain()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) write(b []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *Client) drain() {
	for {
		select {
		case b := <-c.send:
			if c.write(b) != nil {
				return
			}
		default:
			return
		}
	}
}

// Server upgrades /ws requests and starts one Session per connection.
type Server struct {
	Hub *Hub
	// Template for every session; FileID and User are filled per connection.
	Session Config
	// Persistence returns the load/save client for a caller's token.
	Persistence func(token string) Persistence
	// Validate resolves a token to a username. When nil, the persistence
	// service alone decides, and a bad token ends the session on load.
	Validate func(token string) (string, error)
	Upgrader websocket.Upgrader
	// BaseContext bounds every session. It defaults to context.Background.
	BaseContext context.Context
	Log         *logrus.Entry
}

// CheckOrigin admits the listed origins, or any origin when the list is
// empty.
func CheckOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		return slices.Contains(allowed, r.Header.Get("Origin"))
	}
}

func (sv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := sv.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	fileID := r.URL.Query().Get("file")
	if fileID == "" {
		http.Error(w, "file query parameter required", http.StatusBadRequest)
		return
	}
	token := auth.StripBearer(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	var user string
	if sv.Validate != nil {
		u, err := sv.Validate(token)
		if err != nil {
			http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
			return
		}
		user = u
	}

	conn, err := sv.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("hub: upgrade failed")
		return
	}
	c := &Client{
		hub:    sv.Hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		quit:   make(chan struct{}),
		fileID: fileID,
		user:   user,
		log:    log.WithFields(logrus.Fields{"component": "hub", "file": fileID, "user": user}),
	}
	cfg := sv.Session
	cfg.FileID = fileID
	cfg.User = user
	c.session = New(cfg, sv.Persistence(token), NewMirror(c), c,
		WithLogger(log),
		OnSaved(func() {
			sv.Hub.Broadcast(c, Message{Type: TypeFileSaved, FileID: fileID, User: user})
		}),
		OnEnd(func() {
			c.shutdown()
		}),
	)
	sv.Hub.Register(c)

	ctx := sv.BaseContext
	if ctx == nil {
		ctx = context.Background()
	}
	go c.writePump()
	go c.readPump()
	go func() {
		_ = c.session.Run(ctx)
	}()
}
