package alerts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"careAlert/internal/domain"
	"careAlert/internal/subscription"
	"careAlert/pkg/e"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// callers are authenticated by API key and user header before the upgrade
	CheckOrigin: func(r *http.Request) bool { return true },
}

type feedMessage struct {
	Type   string         `json:"type"`
	Alerts []domain.Alert `json:"alerts"`
}

type alertMessage struct {
	Type  string        `json:"type"`
	Alert *domain.Alert `json:"alert"`
}

// AlertFeed streams the caller's open alerts: those of assigned patients and
// those within the proximity radius of the caregiver's location. The location
// on file can be overridden with ?lat=&lng=.
func (h *Handler) AlertFeed(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	if !p.IsCaregiver() {
		h.handleError(w, r, fmt.Errorf("only caregivers can watch the alert feed: %w", e.ErrForbidden))
		return
	}

	user, err := h.Users.GetUser(r.Context(), p.UserID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	loc, err := queryLocation(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if loc == nil {
		loc = user.Location
	}
	filter := subscription.CaregiverFilter{
		CaregiverID:      user.ID,
		Location:         loc,
		AssignedPatients: user.AssignedPatients,
	}

	c, ok := h.upgrade(w, r)
	if !ok {
		return
	}
	unsubscribe, err := h.Subs.SubscribeCaregiver(r.Context(), filter, func(list []domain.Alert) {
		c.push(feedMessage{Type: "alerts", Alerts: list})
	})
	c.serve(unsubscribe, err)
}

// AlertStream streams one alert. A null alert means it does not exist.
func (h *Handler) AlertStream(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	id, ok := h.alertID(w, r)
	if !ok {
		return
	}
	// same read rules as GET /alerts/{id}
	if _, err := h.Alerts.GetAlert(r.Context(), p, id); err != nil {
		h.handleError(w, r, err)
		return
	}

	c, ok := h.upgrade(w, r)
	if !ok {
		return
	}
	unsubscribe, err := h.Subs.SubscribeAlert(r.Context(), id, func(a *domain.Alert) {
		c.push(alertMessage{Type: "alert", Alert: a})
	})
	c.serve(unsubscribe, err)
}

func (h *Handler) upgrade(w http.ResponseWriter, r *http.Request) (*wsConn, bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.log(r).Warn("websocket upgrade failed", slog.Any("error", err))
		return nil, false
	}
	return &wsConn{
		conn:   conn,
		send:   make(chan []byte, 1),
		closed: make(chan struct{}),
		logger: h.log(r).With(slog.String("path", r.URL.Path)),
	}, true
}

type wsConn struct {
	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// push hands a snapshot to the write pump. It gives up once the connection
// is gone so the subscription's delivery goroutine never blocks forever.
func (c *wsConn) push(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("marshal snapshot failed", slog.Any("error", err))
		return
	}
	select {
	case c.send <- b:
	case <-c.closed:
	}
}

func (c *wsConn) close() {
	c.once.Do(func() { close(c.closed) })
}

// serve runs the connection until the peer goes away.
func (c *wsConn) serve(unsubscribe func(), subErr error) {
	defer c.conn.Close()

	if subErr != nil {
		c.logger.Error("subscribe failed", slog.Any("error", subErr))
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(writeWait))
		return
	}
	defer unsubscribe()

	c.logger.Debug("websocket connected")
	go c.writePump()
	c.readPump()
	c.logger.Debug("websocket disconnected")
}

// readPump only services control frames; clients have nothing to say.
func (c *wsConn) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", slog.Any("error", err))
			}
			return
		}
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Warn("websocket write failed", slog.Any("error", err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func queryLocation(r *http.Request) (*domain.Coord, error) {
	q := r.URL.Query()
	latStr, lngStr := q.Get("lat"), q.Get("lng")
	if latStr == "" && lngStr == "" {
		return nil, nil
	}
	lat, err1 := strconv.ParseFloat(latStr, 64)
	lng, err2 := strconv.ParseFloat(lngStr, 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, fmt.Errorf("lat/lng query: %w", e.ErrInvalidCoordinates)
	}
	return &domain.Coord{Lat: lat, Lng: lng}, nil
}
