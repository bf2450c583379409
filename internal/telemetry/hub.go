package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/radio-control/psc/internal/config"
)

// Event represents a telemetry event with SSE formatting.
type Event struct {
	ID    int64                  `json:"id,omitempty"`
	Type  string                 `json:"type"`
	Data  map[string]interface{} `json:"data"`
	Radio string                 `json:"radio,omitempty"`
}

// Client represents an SSE client connection.
type Client struct {
	ID      string
	Writer  http.ResponseWriter
	Request *http.Request
	Context context.Context
	Cancel  context.CancelFunc
	LastID  int64
	Radio   string
	Events  chan Event
	once    sync.Once
	mu      sync.Mutex // protects Writer
}

// Hub manages SSE telemetry distribution with per-radio buffering.
//
// Lock ordering: h.mu (clients, counters, buffers maps) before
// EventBuffer.mu. Client channels close exactly once via sync.Once.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	radioIDs map[string]*int64 // monotonic event IDs per radio

	// Per-radio event buffers for Last-Event-ID replay
	buffers map[string]*EventBuffer

	config *config.TelemetryConfig

	// Snapshot source for the initial ready event, wired to the radio
	// manager after construction.
	snapshotSource func() interface{}

	heartbeatTicker *time.Ticker
	stopHeartbeat   chan bool

	done chan struct{}
	wg   sync.WaitGroup
}

// EventBuffer maintains a circular buffer of events for a specific radio.
type EventBuffer struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
	nextID   int64
	created  time.Time
}

// NewHub creates a new telemetry hub with the specified configuration.
func NewHub(cfg *config.TelemetryConfig) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		radioIDs: make(map[string]*int64),
		buffers:  make(map[string]*EventBuffer),
		config:   cfg,
		done:     make(chan struct{}),
	}
}

// SetSnapshotSource registers the provider for the ready event's radio
// snapshot, typically the radio manager's List.
func (h *Hub) SetSnapshotSource(fn func() interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshotSource = fn
}

// Subscribe handles SSE client subscription with Last-Event-ID resume support.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	clientCtx, cancel := context.WithCancel(ctx)

	clientID := fmt.Sprintf("client_%d", time.Now().UnixNano())

	// Last-Event-ID resumes the stream after a reconnect
	lastEventID := int64(0)
	if lastIDStr := r.Header.Get("Last-Event-ID"); lastIDStr != "" {
		if id, err := strconv.ParseInt(lastIDStr, 10, 64); err == nil {
			lastEventID = id
		}
	}

	// Optional per-radio filter scope
	radioID := r.URL.Query().Get("radio")

	client := &Client{
		ID:      clientID,
		Writer:  w,
		Request: r,
		Context: clientCtx,
		Cancel:  cancel,
		LastID:  lastEventID,
		Radio:   radioID,
		Events:  make(chan Event, 100),
	}

	h.mu.Lock()
	h.clients[clientID] = client
	h.mu.Unlock()

	if err := h.sendReadyEvent(client); err != nil {
		h.unregisterClient(clientID)
		return fmt.Errorf("failed to send ready event: %w", err)
	}

	if lastEventID > 0 {
		if err := h.replayEvents(client, lastEventID); err != nil {
			h.unregisterClient(clientID)
			return fmt.Errorf("failed to replay events: %w", err)
		}
	}

	// First client starts the heartbeat
	h.mu.Lock()
	if len(h.clients) == 1 && h.heartbeatTicker == nil {
		h.startHeartbeat()
	}
	h.mu.Unlock()

	// Blocks until the client disconnects
	h.handleClient(client)

	return nil
}

// Publish publishes an event to all connected clients.
func (h *Hub) Publish(event Event) error {
	if event.ID == 0 {
		event.ID = h.getNextEventID(event.Radio)
	}

	if event.Radio != "" {
		h.bufferEvent(event)
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	// Deliver without holding the lock; drop for slow clients rather
	// than blocking the publisher.
	for _, client := range clients {
		select {
		case <-client.Context.Done():
			continue
		case <-h.done:
			return nil
		case client.Events <- event:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return nil
}

// PublishRadio publishes an event for a specific radio.
func (h *Hub) PublishRadio(radioID string, event Event) error {
	event.Radio = radioID
	return h.Publish(event)
}

// sendReadyEvent sends the initial ready event to a client.
func (h *Hub) sendReadyEvent(client *Client) error {
	h.mu.RLock()
	source := h.snapshotSource
	h.mu.RUnlock()

	var radios interface{} = []interface{}{}
	if source != nil {
		radios = source()
	}

	readyEvent := Event{
		ID:   h.getNextEventID(client.Radio),
		Type: "ready",
		Data: map[string]interface{}{
			"snapshot": map[string]interface{}{
				"radios": radios,
			},
		},
	}

	return h.sendEventToClient(client, readyEvent)
}

// replayEvents replays buffered events for a client based on Last-Event-ID.
func (h *Hub) replayEvents(client *Client, lastEventID int64) error {
	h.mu.RLock()
	buffer, exists := h.buffers[client.Radio]
	h.mu.RUnlock()

	if !exists {
		return nil
	}

	for _, event := range buffer.GetEventsAfter(lastEventID) {
		if err := h.sendEventToClient(client, event); err != nil {
			return err
		}
	}

	return nil
}

// sendEventToClient sends a single event to a client via SSE.
func (h *Hub) sendEventToClient(client *Client, event Event) error {
	client.mu.Lock()
	defer client.mu.Unlock()

	if event.ID > 0 {
		if _, err := fmt.Fprintf(client.Writer, "id: %d\n", event.ID); err != nil {
			return fmt.Errorf("failed to write event ID: %w", err)
		}
	}
	if _, err := fmt.Fprintf(client.Writer, "event: %s\n", event.Type); err != nil {
		return fmt.Errorf("failed to write event type: %w", err)
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	if _, err := fmt.Fprintf(client.Writer, "data: %s\n\n", string(data)); err != nil {
		return fmt.Errorf("failed to write event data: %w", err)
	}

	if flusher, ok := client.Writer.(http.Flusher); ok {
		flusher.Flush()
	}

	return nil
}

// handleClient manages a client connection and event delivery.
func (h *Hub) handleClient(client *Client) {
	defer func() {
		client.once.Do(func() {
			close(client.Events)
		})
		h.unregisterClient(client.ID)
	}()

	for {
		// Context check first so cancellation wins over a ready event
		select {
		case <-client.Context.Done():
			return
		default:
		}

		timeout := time.NewTimer(100 * time.Millisecond)
		select {
		case <-client.Context.Done():
			timeout.Stop()
			return
		case <-timeout.C:
			continue
		case event, ok := <-client.Events:
			timeout.Stop()
			if !ok {
				return
			}
			if err := h.sendEventToClient(client, event); err != nil {
				return
			}
		}
	}
}

// unregisterClient removes a client from the hub.
func (h *Hub) unregisterClient(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, exists := h.clients[clientID]; exists {
		client.Cancel()
		// The channel closes when the client goroutine exits
		delete(h.clients, clientID)

		if len(h.clients) == 0 && h.heartbeatTicker != nil {
			h.heartbeatTicker.Stop()
			h.heartbeatTicker = nil
			if h.stopHeartbeat != nil {
				close(h.stopHeartbeat)
				h.stopHeartbeat = nil
			}
		}
	}
}

// getNextEventID returns the next monotonic event ID for a radio.
func (h *Hub) getNextEventID(radioID string) int64 {
	if radioID == "" {
		radioID = "global"
	}

	h.mu.RLock()
	counter, exists := h.radioIDs[radioID]
	h.mu.RUnlock()

	if exists {
		return atomic.AddInt64(counter, 1)
	}

	h.mu.Lock()
	// Another goroutine might have created it meanwhile
	counter, exists = h.radioIDs[radioID]
	if !exists {
		var initial int64 = 0
		counter = &initial
		h.radioIDs[radioID] = counter
	}
	h.mu.Unlock()

	return atomic.AddInt64(counter, 1)
}

// bufferEvent adds an event to the per-radio buffer.
//
// Buffers are never removed from h.buffers, so a reference stays valid
// after h.mu is released; AddEvent has its own synchronization.
func (h *Hub) bufferEvent(event Event) {
	if event.Radio == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	buffer, exists := h.buffers[event.Radio]
	if !exists {
		buffer = NewEventBuffer(h.config.EventBufferSize)
		h.buffers[event.Radio] = buffer
	}

	buffer.AddEvent(event)
}

// startHeartbeat starts the heartbeat ticker.
// Caller must hold h.mu and verify h.heartbeatTicker == nil.
func (h *Hub) startHeartbeat() {
	interval := h.config.HeartbeatInterval()
	jitter := h.config.HeartbeatJitter()

	// Half the jitter keeps multiple controllers from beating in phase
	actualInterval := interval + time.Duration(float64(jitter)*0.5)

	h.heartbeatTicker = time.NewTicker(actualInterval)
	h.stopHeartbeat = make(chan bool)

	ticker := h.heartbeatTicker
	stopChan := h.stopHeartbeat

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			h.mu.Lock()
			if h.heartbeatTicker != nil {
				h.heartbeatTicker.Stop()
			}
			h.mu.Unlock()
		}()

		for {
			select {
			case <-ticker.C:
				h.sendHeartbeat()
			case <-stopChan:
				return
			case <-h.done:
				return
			}
		}
	}()
}

// sendHeartbeat sends a heartbeat event to all clients.
func (h *Hub) sendHeartbeat() {
	heartbeatEvent := Event{
		Type: "heartbeat",
		Data: map[string]interface{}{
			"ts": time.Now().UTC().Format(time.RFC3339),
		},
	}

	h.Publish(heartbeatEvent)
}

// Stop stops the telemetry hub and cleans up resources.
func (h *Hub) Stop() {
	close(h.done)

	h.mu.Lock()
	for _, client := range h.clients {
		client.Cancel()
	}
	h.mu.Unlock()

	h.mu.Lock()
	if h.heartbeatTicker != nil {
		h.heartbeatTicker.Stop()
		h.heartbeatTicker = nil
	}
	if h.stopHeartbeat != nil {
		close(h.stopHeartbeat)
		h.stopHeartbeat = nil
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		// Stuck goroutines lose the race; clean up anyway
	}

	h.mu.Lock()
	for _, client := range h.clients {
		client.Cancel()
		client.once.Do(func() {
			close(client.Events)
		})
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()
}

// NewEventBuffer creates a new event buffer with the specified capacity.
func NewEventBuffer(capacity int) *EventBuffer {
	return &EventBuffer{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
		nextID:   1,
		created:  time.Now(),
	}
}

// AddEvent adds an event to the buffer.
func (b *EventBuffer) AddEvent(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if event.ID == 0 {
		event.ID = b.nextID
		b.nextID++
	}

	b.events = append(b.events, event)

	if len(b.events) > b.capacity {
		b.events = b.events[1:]
	}
}

// GetEventsAfter returns events after the specified ID.
func (b *EventBuffer) GetEventsAfter(lastID int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Event
	for _, event := range b.events {
		if event.ID > lastID {
			result = append(result, event)
		}
	}

	return result
}

// GetCapacity returns the buffer capacity.
func (b *EventBuffer) GetCapacity() int {
	return b.capacity
}

// GetSize returns the current buffer size.
func (b *EventBuffer) GetSize() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
