package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/lumina/internal/events"
	"github.com/yoockh/lumina/internal/models"
	"github.com/yoockh/lumina/internal/services"
	"github.com/yoockh/lumina/internal/session"
	"github.com/yoockh/lumina/internal/utils"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = wsPongWait * 9 / 10
)

type WSHandler struct {
	studios  *services.Studios
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

// NewWSHandler accepts browser connections from allowedOrigins only; an
// empty list accepts any origin.
func NewWSHandler(studios *services.Studios, allowedOrigins []string, log logrus.FieldLogger) *WSHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WSHandler{
		studios:  studios,
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// not a browser
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

type wsClientMsg struct {
	Type      string `json:"type"`
	NoticeID  string `json:"notice_id"`
	HistoryID string `json:"history_id"`
}

type wsServerMsg struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Error     *APIError `json:"error,omitempty"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) write(kind int, b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.c.WriteMessage(kind, b)
}

func (w *wsConn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.write(websocket.TextMessage, b)
}

// StudioWS pushes the workspace's events to the client and accepts the
// notice and history actions that need no request body.
func (h *WSHandler) StudioWS(c *gin.Context) {
	ws, ok := requireWorkspace(c, "WSHandler.StudioWS")
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	evs, unsubscribe, err := h.studios.Subscribe(ctx, ws)
	if err != nil {
		h.log.WithError(err).WithField("workspace", ws).Warn("subscribe failed")
		_ = wc.writeJSON(wsServerMsg{Type: "error", Error: &APIError{Code: utils.CodeUnavailable, Message: "event stream unavailable"}})
		return
	}
	defer unsubscribe()

	// the current state first, so a late client starts consistent
	v := models.View{Phase: models.PhaseIdle}
	if s, ok := h.studios.Lookup(ws); ok {
		v = s.View()
	}
	_ = wc.writeJSON(events.Event{Type: events.TypeView, SessionID: v.SessionID, View: &v})

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}

			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = wc.writeJSON(wsServerMsg{Type: "error", Error: &APIError{Code: utils.CodeInvalidArgument, Message: "invalid json"}})
				continue
			}
			_ = wc.writeJSON(h.dispatch(ctx, ws, msg))
		}
	}()

	ping := time.NewTicker(wsPingEvery)
	defer ping.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := wc.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case b, ok := <-evs:
			if !ok {
				return
			}
			if err := wc.write(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}

// dispatch resolves the studio per message: the registry may have swept
// and recreated it while the socket stayed open.
func (h *WSHandler) dispatch(ctx context.Context, ws string, msg wsClientMsg) wsServerMsg {
	var (
		sid session.ID
		err error
	)
	switch msg.Type {
	case "reclaim":
		sid, err = h.studios.Reclaim(ctx, ws, msg.NoticeID)
	case "select":
		s, ok := h.studios.Lookup(ws)
		if !ok {
			err = utils.E(utils.CodeNotFound, "WSHandler.dispatch", "history entry not found", nil)
			break
		}
		sid, err = s.SelectHistory(msg.HistoryID)
	case "dismiss":
		err = h.studios.DismissNotice(ctx, ws, msg.NoticeID)
	default:
		return wsServerMsg{Type: "error", Error: &APIError{Code: utils.CodeInvalidArgument, Message: "unknown message type"}}
	}
	if err != nil {
		_, body := toAPIError(err)
		return wsServerMsg{Type: "error", Error: &body}
	}
	return wsServerMsg{Type: "ack", SessionID: string(sid)}
}
