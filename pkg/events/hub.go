package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/webfish0/happyChatty/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 60 * time.Second
	sendBuffer = 256
)

// Callback receives every emitted event in-process. A returned error
// is logged and does not affect other sinks.
type Callback func(AnalysisEvent) error

// HubConfig bounds the hub's retained state.
type HubConfig struct {
	HistorySize int
	ReplayCount int
}

// DefaultHubConfig keeps 1000 events of history and replays the last
// 10 to new subscribers.
func DefaultHubConfig() HubConfig {
	return HubConfig{HistorySize: 1000, ReplayCount: 10}
}

// upgrader configures websocket upgrades for event subscribers.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one live websocket subscriber.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans finalized events out to websocket subscribers, an optional
// file sink and registered callbacks, keeping a bounded history for
// late joiners. Emit is serialized under one lock so every subscriber
// observes events in the same order.
type Hub struct {
	logger *logrus.Entry
	config HubConfig

	mu            sync.Mutex
	clients       map[*client]bool
	fileSink      *FileSink
	callbacks     []Callback
	history       []AnalysisEvent
	totalEvents   int64
	speakerCounts map[string]int64
	closed        bool
}

// NewHub creates an empty hub.
func NewHub(logger *logrus.Logger, config HubConfig) *Hub {
	if config.HistorySize <= 0 {
		config.HistorySize = DefaultHubConfig().HistorySize
	}
	if config.ReplayCount <= 0 {
		config.ReplayCount = DefaultHubConfig().ReplayCount
	}
	// Replay happens under the hub lock into the client's buffered
	// send channel; a replay larger than the buffer would deadlock.
	if config.ReplayCount > sendBuffer {
		config.ReplayCount = sendBuffer
	}
	return &Hub{
		logger:        logger.WithField("component", "event_hub"),
		config:        config,
		clients:       make(map[*client]bool),
		speakerCounts: make(map[string]int64),
	}
}

// SetFileSink attaches the durable sink. Call before Emit.
func (h *Hub) SetFileSink(sink *FileSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fileSink = sink
}

// AddCallback registers a local sink.
func (h *Hub) AddCallback(cb Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks = append(h.callbacks, cb)
}

// Emit delivers one event to every destination. A failing destination
// is skipped or dropped; the others still receive the event.
func (h *Hub) Emit(event AnalysisEvent) {
	data, err := json.Marshal(Envelope{Type: TypeAnalysisEvent, Data: event})
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal analysis event")
		return
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal analysis event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.history = append(h.history, event)
	if len(h.history) > h.config.HistorySize {
		h.history = h.history[len(h.history)-h.config.HistorySize:]
	}
	h.totalEvents++
	h.speakerCounts[event.Speaker]++
	metrics.EventsEmitted.Inc()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Slow consumer; drop it rather than stall the pipeline.
			h.logger.Warn("Dropping slow websocket subscriber")
			metrics.EventsDropped.Inc()
			h.removeClientLocked(c)
		}
	}

	if h.fileSink != nil {
		if err := h.fileSink.WriteEvent(eventJSON); err != nil {
			h.logger.WithError(err).Error("Failed to write event to file sink")
		}
	}

	for _, cb := range h.callbacks {
		h.invokeCallback(cb, event)
	}
}

// invokeCallback isolates callback panics and errors from the emit path.
func (h *Hub) invokeCallback(cb Callback, event AnalysisEvent) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.WithField("recover", r).Error("Recovered from panic in event callback")
		}
	}()
	if err := cb(event); err != nil {
		h.logger.WithError(err).Warn("Event callback failed")
	}
}

// BroadcastTelemetry pushes a telemetry frame to live subscribers
// only; it is not recorded in history or the file sink.
func (h *Hub) BroadcastTelemetry(snapshot interface{}) {
	data, err := json.Marshal(Envelope{Type: TypeTelemetry, Data: snapshot})
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal telemetry frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			metrics.EventsDropped.Inc()
			h.removeClientLocked(c)
		}
	}
}

// ServeWS upgrades an HTTP request and subscribes the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade websocket connection")
		return
	}
	h.Subscribe(conn)
}

// Subscribe registers a websocket connection, replaying the most
// recent events before live delivery starts.
func (h *Hub) Subscribe(conn *websocket.Conn) {
	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}

	replayFrom := len(h.history) - h.config.ReplayCount
	if replayFrom < 0 {
		replayFrom = 0
	}
	for _, event := range h.history[replayFrom:] {
		if data, err := json.Marshal(Envelope{Type: TypeAnalysisEvent, Data: event}); err == nil {
			c.send <- data
		}
	}

	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	metrics.ActiveSubscribers.Set(float64(count))
	h.logger.WithField("subscribers", count).Info("Websocket subscriber connected")

	go h.writePump(c)
	go h.readPump(c)
}

// writePump drains the client's send channel onto the wire and keeps
// the connection alive with pings.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; its job is detecting closure.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.mu.Lock()
		h.removeClientLocked(c)
		count := len(h.clients)
		h.mu.Unlock()
		metrics.ActiveSubscribers.Set(float64(count))
		h.logger.WithField("subscribers", count).Info("Websocket subscriber disconnected")
	}()

	c.conn.SetReadLimit(4096)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) removeClientLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Stats describes the hub's delivery counters.
type Stats struct {
	TotalEvents       int64            `json:"total_events"`
	SpeakerCounts     map[string]int64 `json:"speaker_counts"`
	ActiveSubscribers int              `json:"active_subscribers"`
	HistorySize       int              `json:"history_size"`
}

// Stats returns a snapshot of delivery counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	speakers := make(map[string]int64, len(h.speakerCounts))
	for speaker, count := range h.speakerCounts {
		speakers[speaker] = count
	}
	return Stats{
		TotalEvents:       h.totalEvents,
		SpeakerCounts:     speakers,
		ActiveSubscribers: len(h.clients),
		HistorySize:       len(h.history),
	}
}

// History returns a copy of the retained events, newest last.
func (h *Hub) History() []AnalysisEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	history := make([]AnalysisEvent, len(h.history))
	copy(history, h.history)
	return history
}

// Close disconnects all subscribers and finalizes the file sink.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for c := range h.clients {
		h.removeClientLocked(c)
	}
	sink := h.fileSink
	h.fileSink = nil
	h.mu.Unlock()

	metrics.ActiveSubscribers.Set(0)
	if sink != nil {
		return sink.Close()
	}
	return nil
}
