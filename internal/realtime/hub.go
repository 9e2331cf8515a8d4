// Package realtime is the in-process publish/subscribe relay between the API
// and connected browsers.
//
// ADDRESSING:
// Two schemes are supported and never mixed:
//   - Room: a client joins "project:<id>" after a membership check; thread
//     and message events for that project go to the room only.
//   - User: every connection is indexed by its authenticated user id;
//     notification events are delivered to that user's connections only.
//
// Delivery is best-effort. Each client has a bounded send queue; when it is
// full the event is dropped for that client. There is no replay: clients
// re-fetch over REST on (re)connect.
//
// The Hub is a plain value created once in the composition root and injected
// wherever events are emitted. Running several server processes would need
// an external broker behind Publisher.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Outbound event names.
const (
	EventMessageNew      = "message:new"
	EventMessageDeleted  = "message:deleted"
	EventThreadUpdate    = "thread:update"
	EventThreadDeleted   = "thread:deleted"
	EventNotificationNew = "notification:new"
)

// Publisher is what services depend on. *Hub implements it.
//
// EvictUser and CloseRoom revoke room access when membership ends; the
// connections stay open for the user's other rooms and notifications.
type Publisher interface {
	EmitToRoom(room, event string, payload any)
	EmitToUser(userID, event string, payload any)
	EvictUser(userID, room string)
	CloseRoom(room string)
}

// ProjectRoom names the room for a project.
func ProjectRoom(projectID string) string {
	return "project:" + projectID
}

// Frame is the wire shape of every server-to-client message.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type clientSet map[*Client]struct{}

// Hub tracks connected clients by room and by user.
type Hub struct {
	logger *slog.Logger

	mu     sync.RWMutex
	rooms  map[string]clientSet
	users  map[string]clientSet
	joined map[*Client]map[string]struct{}
}

var _ Publisher = (*Hub)(nil)

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		rooms:  make(map[string]clientSet),
		users:  make(map[string]clientSet),
		joined: make(map[*Client]map[string]struct{}),
	}
}

// Register indexes c under its user id.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.users[c.userID] == nil {
		h.users[c.userID] = make(clientSet)
	}
	h.users[c.userID][c] = struct{}{}
	h.joined[c] = make(map[string]struct{})
}

// Unregister removes c from every index and closes its send queue.
// Calling it twice is safe.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	rooms, ok := h.joined[c]
	if ok {
		for room := range rooms {
			h.removeFromRoom(c, room)
		}
		delete(h.joined, c)
		if set := h.users[c.userID]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(h.users, c.userID)
			}
		}
	}
	h.mu.Unlock()

	if ok {
		c.close()
	}
}

// Join adds a registered client to room. Authorization happens before this call.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms, ok := h.joined[c]
	if !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(clientSet)
	}
	h.rooms[room][c] = struct{}{}
	rooms[room] = struct{}{}
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rooms, ok := h.joined[c]; ok {
		delete(rooms, room)
	}
	h.removeFromRoom(c, room)
}

// EvictUser removes every connection of userID from room.
func (h *Hub) EvictUser(userID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.users[userID] {
		if rooms, ok := h.joined[c]; ok {
			delete(rooms, room)
		}
		h.removeFromRoom(c, room)
	}
}

// CloseRoom removes every connection from room.
func (h *Hub) CloseRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.rooms[room] {
		if rooms, ok := h.joined[c]; ok {
			delete(rooms, room)
		}
	}
	delete(h.rooms, room)
}

// removeFromRoom requires h.mu held for writing.
func (h *Hub) removeFromRoom(c *Client, room string) {
	set := h.rooms[room]
	if set == nil {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.rooms, room)
	}
}

// EmitToRoom sends the event to every client in room.
func (h *Hub) EmitToRoom(room, event string, payload any) {
	h.broadcast(event, payload, func() clientSet { return h.rooms[room] }, slog.String("room", room))
}

// EmitToUser sends the event to every connection of userID.
func (h *Hub) EmitToUser(userID, event string, payload any) {
	h.broadcast(event, payload, func() clientSet { return h.users[userID] }, slog.String("user_id", userID))
}

func (h *Hub) broadcast(event string, payload any, targets func() clientSet, target slog.Attr) {
	msg, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		h.logger.Warn("realtime: encoding event", slog.String("event", event), slog.String("error", err.Error()))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range targets() {
		if !c.enqueue(msg) {
			h.logger.Warn("realtime: send queue full, event dropped",
				slog.String("event", event), target, slog.String("client", c.id))
		}
	}
}

// RoomSize reports how many clients are in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Connections reports how many clients userID has open.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
