package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/sakif/unityboard/internal/auth"
	"github.com/sakif/unityboard/internal/authz"
	"github.com/sakif/unityboard/internal/model"
)

const (
	writeTimeout   = 10 * time.Second
	maxInboundSize = 4 << 10
)

// Inbound frame types.
const (
	inboundJoin  = "join"
	inboundLeave = "leave"
)

// ProjectGetter is the slice of the project store the socket handler needs.
type ProjectGetter interface {
	GetProject(ctx context.Context, id string) (*model.Project, error)
}

// inbound is a client-to-server frame: {"type":"join","projectId":"..."}.
type inbound struct {
	Type      string `json:"type"`
	ProjectID string `json:"projectId"`
}

// Handler upgrades /ws requests and runs one connection per request.
type Handler struct {
	hub            *Hub
	tokens         *auth.TokenService
	projects       ProjectGetter
	logger         *slog.Logger
	originPatterns []string
	queueSize      int
}

// NewHandler builds the socket endpoint. originPatterns follow
// websocket.AcceptOptions.OriginPatterns (host globs such as "localhost:5173").
func NewHandler(hub *Hub, tokens *auth.TokenService, projects ProjectGetter, originPatterns []string, logger *slog.Logger) *Handler {
	return &Handler{
		hub:            hub,
		tokens:         tokens,
		projects:       projects,
		logger:         logger,
		originPatterns: originPatterns,
		queueSize:      DefaultQueueSize,
	}
}

// ServeHTTP authenticates before upgrading. The token comes from ?token=,
// the Authorization header or the auth cookie.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		raw = auth.TokenFromRequest(r)
	}
	id, err := h.tokens.Validate(raw)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "Unauthorized"})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("realtime: upgrade failed", slog.String("error", err.Error()))
		return
	}
	conn.SetReadLimit(maxInboundSize)

	client := NewClient(id.UserID, h.queueSize)
	h.hub.Register(client)
	h.logger.Debug("realtime: client connected",
		slog.String("client", client.ID()), slog.String("user_id", id.UserID))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.writeLoop(ctx, cancel, conn, client)
	err = h.readLoop(ctx, conn, client)

	h.hub.Unregister(client)
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
		conn.Close(websocket.StatusNormalClosure, "")
	} else {
		h.logger.Debug("realtime: connection closed", slog.String("client", client.ID()), slog.Any("error", err))
		conn.Close(websocket.StatusInternalError, "connection error")
	}
}

// writeLoop drains the client queue until it is closed or ctx ends.
func (h *Handler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, c *Client) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Messages():
			if !ok {
				return
			}
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, msg)
			wcancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, c *Client) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			h.reply(c, "error", map[string]string{"message": "Invalid frame"})
			continue
		}
		switch in.Type {
		case inboundJoin:
			h.join(ctx, c, in.ProjectID)
		case inboundLeave:
			h.hub.Leave(c, ProjectRoom(in.ProjectID))
			h.reply(c, "left", map[string]string{"projectId": in.ProjectID})
		default:
			h.reply(c, "error", map[string]string{"message": "Unknown frame type"})
		}
	}
}

// join admits the client to a project room only if it is a member.
func (h *Handler) join(ctx context.Context, c *Client, projectID string) {
	p, err := h.projects.GetProject(ctx, projectID)
	if err != nil {
		p = nil
	}
	d := authz.Check(p, c.UserID(), model.RoleMember)
	if !d.Allowed {
		h.logger.Debug("realtime: join denied",
			slog.String("user_id", c.UserID()), slog.String("project_id", projectID), slog.String("reason", d.Reason))
		h.reply(c, "error", map[string]string{"message": "Forbidden", "projectId": projectID})
		return
	}
	h.hub.Join(c, ProjectRoom(projectID))
	h.reply(c, "joined", map[string]string{"projectId": projectID})
}

// reply queues a frame for one client only.
func (h *Handler) reply(c *Client, event string, data any) {
	msg, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		return
	}
	c.enqueue(msg)
}
