package radio

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/radio-control/psc/internal/fw"
	"github.com/radio-control/psc/internal/ps"
)

// Radio represents a single managed radio link.
type Radio struct {
	ID         string
	Model      string
	Status     string
	Controller *ps.Controller
	Device     fw.Device
	Params     ps.Params
	LastSeen   time.Time
}

// Snapshot is the serializable view of a radio for API responses.
type Snapshot struct {
	ID       string    `json:"id"`
	Model    string    `json:"model"`
	Status   string    `json:"status"`
	PSState  ps.State  `json:"psState"`
	PSParams ps.Params `json:"psParams"`
	LastSeen time.Time `json:"lastSeen,omitempty"`
}

// ConfirmHandler receives every confirmation frame a radio's device
// delivers. Implementations record their own failures; the pump does not
// retry or reorder.
type ConfirmHandler interface {
	HandleConfirm(radioID string, frame []byte) error
}

// Manager owns the radio inventory and one confirmation pump goroutine per
// radio, forwarding inbound frames to the registered ConfirmHandler.
type Manager struct {
	mu      sync.RWMutex
	radios  map[string]*Radio
	handler ConfirmHandler
	closed  bool
	wg      sync.WaitGroup
}

// NewManager creates an empty radio manager.
func NewManager() *Manager {
	return &Manager{
		radios: make(map[string]*Radio),
	}
}

// SetConfirmHandler registers the confirmation sink. Set it before adding
// radios; frames arriving while no handler is registered are dropped.
func (m *Manager) SetConfirmHandler(h ConfirmHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// Add registers a radio and starts its confirmation pump.
func (m *Manager) Add(r *Radio) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("radio must have an ID")
	}
	if r.Controller == nil {
		return fmt.Errorf("radio %s has no controller", r.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("manager is closed")
	}
	if _, exists := m.radios[r.ID]; exists {
		return fmt.Errorf("radio %s already registered", r.ID)
	}

	if r.Status == "" {
		r.Status = "online"
	}
	r.LastSeen = time.Now()
	m.radios[r.ID] = r

	if r.Device != nil {
		m.wg.Add(1)
		go m.pump(r)
	}

	return nil
}

// Get returns a specific radio by ID. ID, Model, Controller, Device and
// Params are immutable after Add; Status and LastSeen must be read through
// Snapshot or List.
func (m *Manager) Get(radioID string) (*Radio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, exists := m.radios[radioID]
	if !exists {
		return nil, fmt.Errorf("radio %s not found", radioID)
	}
	return r, nil
}

// Snapshot returns the serializable view of one radio.
func (m *Manager) Snapshot(radioID string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, exists := m.radios[radioID]
	if !exists {
		return Snapshot{}, fmt.Errorf("radio %s not found", radioID)
	}
	return snapshotOf(r), nil
}

// List returns snapshots of every radio, ordered by ID.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	items := make([]Snapshot, 0, len(m.radios))
	for _, r := range m.radios {
		items = append(items, snapshotOf(r))
	}
	m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// IDs returns every registered radio ID, ordered.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.radios))
	for id := range m.radios {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// UpdateStatus updates the status of a radio.
func (m *Manager) UpdateStatus(radioID string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, exists := m.radios[radioID]
	if !exists {
		return fmt.Errorf("radio %s not found", radioID)
	}
	r.Status = status
	r.LastSeen = time.Now()
	return nil
}

// Remove unregisters a radio and closes its device, which ends the pump.
func (m *Manager) Remove(radioID string) error {
	m.mu.Lock()
	r, exists := m.radios[radioID]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("radio %s not found", radioID)
	}
	delete(m.radios, radioID)
	m.mu.Unlock()

	if r.Device != nil {
		return r.Device.Close()
	}
	return nil
}

// Close shuts every device down and waits for the pumps with a bounded
// timeout.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	radios := make([]*Radio, 0, len(m.radios))
	for _, r := range m.radios {
		radios = append(radios, r)
	}
	m.mu.Unlock()

	var firstErr error
	for _, r := range radios {
		if r.Device == nil {
			continue
		}
		if err := r.Device.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		if firstErr == nil {
			firstErr = fmt.Errorf("confirmation pumps did not stop within 2s")
		}
	}

	return firstErr
}

// pump forwards one radio's confirmation frames to the handler until the
// device's stream closes.
func (m *Manager) pump(r *Radio) {
	defer m.wg.Done()

	for frame := range r.Device.Confirms() {
		m.mu.RLock()
		h := m.handler
		m.mu.RUnlock()
		if h == nil {
			continue
		}
		// The handler audits its own failures; the pump keeps draining.
		h.HandleConfirm(r.ID, frame)
	}

	m.markOffline(r.ID)
}

// markOffline flags a radio whose confirmation stream ended.
func (m *Manager) markOffline(radioID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if r, exists := m.radios[radioID]; exists {
		r.Status = "offline"
	}
}

// snapshotOf builds the serializable view. Callers hold m.mu; the controller
// read takes the controller's own lock, which is never held while calling
// back into the manager.
func snapshotOf(r *Radio) Snapshot {
	return Snapshot{
		ID:       r.ID,
		Model:    r.Model,
		Status:   r.Status,
		PSState:  r.Controller.State(),
		PSParams: r.Params,
		LastSeen: r.LastSeen,
	}
}
