package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"QuantLens/internal/domain/models"
	domrepo "QuantLens/internal/domain/repository"
	applogger "QuantLens/pkg/logger"
)

// Message types pushed to subscribers.
const (
	TypeConnection = "connection"
	TypeScan       = "scan"
)

var (
	registerOnce sync.Once

	wsClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quantlens",
		Subsystem: "ws",
		Name:      "clients",
		Help:      "Connected recommendation stream clients",
	})

	wsMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quantlens",
		Subsystem: "ws",
		Name:      "messages_total",
		Help:      "Recommendation stream deliveries by result",
	}, []string{"result"})
)

// Envelope is the JSON frame written to every client.
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub fans scan results out to connected websocket clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	closed  bool
	l       *applogger.Logger
}

var _ domrepo.RecommendationPublisher = (*Hub)(nil)

func NewHub(l *applogger.Logger) *Hub {
	registerOnce.Do(func() { prometheus.MustRegister(wsClients, wsMessages) })
	if l == nil {
		l = applogger.Nop()
	}
	return &Hub{clients: make(map[*Client]struct{}), l: l.With(applogger.String("component", "ws.hub"))}
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	c.greet()
	wsClients.Set(float64(len(h.clients)))
	h.l.Info("client registered",
		applogger.String("client_id", c.id),
		applogger.String("remote_addr", c.remoteAddr),
		applogger.Int("total_clients", len(h.clients)),
	)
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	wsClients.Set(float64(len(h.clients)))
	h.l.Info("client unregistered",
		applogger.String("client_id", c.id),
		applogger.Duration("connection_duration", time.Since(c.connectedAt)),
		applogger.Int("total_clients", len(h.clients)),
	)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast delivers msg to every client. Clients whose buffer is full are disconnected.
func (h *Hub) Broadcast(msgType string, data interface{}) error {
	b, err := json.Marshal(Envelope{Type: msgType, Data: data, Timestamp: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("ws encode %s: %w", msgType, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	var dropped int
	for c := range h.clients {
		select {
		case c.send <- b:
			wsMessages.WithLabelValues("sent").Inc()
		default:
			dropped++
			wsMessages.WithLabelValues("dropped").Inc()
			h.removeLocked(c)
		}
	}
	if dropped > 0 {
		h.l.Warn("slow clients disconnected", applogger.Int("dropped", dropped), applogger.String("type", msgType))
	}
	return nil
}

// PublishScan pushes a scan result to all subscribers.
func (h *Hub) PublishScan(_ context.Context, result *models.ScanResult) error {
	if result == nil {
		return nil
	}
	return h.Broadcast(TypeScan, result)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}
