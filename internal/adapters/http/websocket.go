package http

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/housingetl/internal/pkg/metrics"
)

const (
	datasetSubjectPrefix = "housing.dataset."
	datasetSubjects      = datasetSubjectPrefix + ">"
	wsPingInterval       = 30 * time.Second
)

// wsRequest narrows or widens the events relayed to one client.
//
//	{"action":"subscribe","event":"loaded","dataset":"sales_rents_2011_2021"}
type wsRequest struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Event   string `json:"event"`   // event kind under housing.dataset ("" = all)
	Dataset string `json:"dataset"` // only relay events for this dataset ("" = any)
}

// wsSession is one connected client: its socket, its NATS subscriptions and
// its dataset filter.
type wsSession struct {
	conn *websocket.Conn
	nc   *nats.Conn

	writeMu sync.Mutex
	subs    map[string]*nats.Subscription
	dataset atomic.Value // string
}

// WebSocketHandler returns a handler that upgrades to WebSocket and relays
// dataset events from NATS. Every client starts subscribed to all dataset
// events of every dataset.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		s := &wsSession{conn: c, nc: nc, subs: make(map[string]*nats.Subscription)}
		s.dataset.Store("")

		remote := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remote)
		defer slog.Info("ws client disconnected", "remote", remote)

		if err := s.subscribe(datasetSubjects); err != nil {
			slog.Error("ws default subscribe failed", "error", err)
			return
		}
		defer s.unsubscribeAll()

		done := make(chan struct{})
		defer close(done)
		go s.keepAlive(done)

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				return
			}
			s.handle(raw)
		}
	}
}

func (s *wsSession) handle(raw []byte) {
	var req wsRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.reply("error", "invalid JSON")
		return
	}

	subject, ok := eventSubject(req.Event)
	if !ok {
		s.reply("error", "invalid event kind: "+req.Event)
		return
	}

	switch req.Action {
	case "subscribe":
		s.dataset.Store(req.Dataset)
		if _, exists := s.subs[subject]; exists {
			s.reply("status", "already subscribed", "subject", subject)
			return
		}
		if err := s.subscribe(subject); err != nil {
			s.reply("error", "subscribe failed: "+err.Error())
			return
		}
		s.reply("status", "subscribed", "subject", subject)

	case "unsubscribe":
		sub, exists := s.subs[subject]
		if !exists {
			s.reply("error", "not subscribed to "+subject)
			return
		}
		_ = sub.Unsubscribe()
		delete(s.subs, subject)
		s.reply("status", "unsubscribed", "subject", subject)

	default:
		s.reply("error", "unknown action: "+req.Action)
	}
}

func (s *wsSession) subscribe(subject string) error {
	sub, err := s.nc.Subscribe(subject, s.relay)
	if err != nil {
		return err
	}
	s.subs[subject] = sub
	return nil
}

func (s *wsSession) unsubscribeAll() {
	for subject, sub := range s.subs {
		_ = sub.Unsubscribe()
		delete(s.subs, subject)
	}
}

// relay forwards an event unless the client filtered on another dataset.
func (s *wsSession) relay(msg *nats.Msg) {
	if want := s.dataset.Load().(string); want != "" {
		var ev struct {
			Dataset string `json:"dataset"`
		}
		if err := json.Unmarshal(msg.Data, &ev); err == nil && ev.Dataset != want {
			return
		}
	}
	_ = s.write(websocket.TextMessage, msg.Data)
}

// reply sends a flat JSON object built from key/value pairs.
func (s *wsSession) reply(kv ...string) {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	data, err := json.Marshal(m)
	if err != nil {
		return
	}
	_ = s.write(websocket.TextMessage, data)
}

func (s *wsSession) write(kind int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(kind, data)
}

func (s *wsSession) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// eventSubject maps an event kind to its subject. Wildcards and separators
// are rejected so clients stay inside the dataset namespace.
func eventSubject(kind string) (string, bool) {
	if kind == "" {
		return datasetSubjects, true
	}
	if strings.ContainsAny(kind, ".*> ") {
		return "", false
	}
	return datasetSubjectPrefix + kind, true
}
