package session

import (
	"context"

	"github.com/sirupsen/logrus"
)

type outbound struct {
	msg  Message
	from *Client
}

// Hub maintains the set of connected clients, grouped into one room per file,
// and relays notifications between sessions editing the same file.
type Hub struct {
	// Registered clients per file.
	rooms map[string]map[*Client]bool

	// Notifications to relay to a room.
	broadcast chan outbound

	register   chan *Client
	unregister chan *Client
	count      chan countQuery

	done chan struct{}
	log  *logrus.Entry
}

type countQuery struct {
	fileID string
	reply  chan int
}

func NewHub(log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan outbound),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan countQuery),
		done:       make(chan struct{}),
		log:        log.WithField("component", "hub"),
	}
}

// Run serves register, unregister and broadcast requests until ctx is done,
// then shuts every client down.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, clients := range h.rooms {
				for c := range clients {
					c.shutdown()
				}
			}
			h.rooms = nil
			return nil

		case c := <-h.register:
			if h.rooms[c.fileID] == nil {
				h.rooms[c.fileID] = make(map[*Client]bool)
			}
			h.rooms[c.fileID][c] = true
			h.log.WithFields(logrus.Fields{"file": c.fileID, "user": c.user}).Info("hub: client registered")

		case c := <-h.unregister:
			if clients, ok := h.rooms[c.fileID]; ok {
				if _, ok := clients[c]; ok {
					delete(clients, c)
					c.shutdown()
					if len(clients) == 0 {
						delete(h.rooms, c.fileID)
					}
					h.log.WithField("file", c.fileID).Info("hub: client unregistered")
				}
			}

		case out := <-h.broadcast:
			for c := range h.rooms[out.msg.FileID] {
				if c == out.from {
					continue
				}
				c.Send(out.msg)
			}

		case q := <-h.count:
			q.reply <- len(h.rooms[q.fileID])
		}
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.shutdown()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast relays m to every client in m.FileID's room except from.
func (h *Hub) Broadcast(from *Client, m Message) {
	select {
	case h.broadcast <- outbound{msg: m, from: from}:
	case <-h.done:
	}
}

// Clients returns the number of clients connected to fileID.
func (h *Hub) Clients(fileID string) int {
	q := countQuery{fileID: fileID, reply: make(chan int, 1)}
	select {
	case h.count <- q:
		return <-q.reply
	case <-h.done:
		return 0
	}
}
