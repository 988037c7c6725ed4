package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/waterracebox/StockSprintBackend/internal/ws"
)

// Broadcaster is the push surface services emit through. Implemented by
// ws.Hub (and wrapped by BroadcastMonitor).
type Broadcaster interface {
	Emit(event ws.EventType, payload any)
	EmitToUser(userID uuid.UUID, event ws.EventType, payload any)
	EmitToAdmins(event ws.EventType, payload any)
	ConnectedUserIDs() []uuid.UUID
	DisconnectUser(userID uuid.UUID)
}

// ──────────────────────────────────────────────────────────────────────────────
// BroadcastMonitor
// ──────────────────────────────────────────────────────────────────────────────

// MonitorEntry is one recorded broadcast, served by the admin monitor.
type MonitorEntry struct {
	At     time.Time    `json:"at"`
	Event  ws.EventType `json:"event"`
	Scope  string       `json:"scope"` // "global" | "user" | "admins"
	UserID *uuid.UUID   `json:"user_id,omitempty"`
}

// monitorRingSize bounds the in-memory history; older entries are evicted.
const monitorRingSize = 256

// BroadcastMonitor decorates a Broadcaster with a fixed-size ring of recent
// emissions. Per-second GAME_STATE_UPDATE ticks are not recorded — they would
// evict everything else within minutes.
type BroadcastMonitor struct {
	Broadcaster

	mu   sync.Mutex
	ring []MonitorEntry
	next int
	full bool
}

// NewBroadcastMonitor wraps the given bus.
func NewBroadcastMonitor(bus Broadcaster) *BroadcastMonitor {
	return &BroadcastMonitor{
		Broadcaster: bus,
		ring:        make([]MonitorEntry, monitorRingSize),
	}
}

// Emit records and forwards a global broadcast.
func (m *BroadcastMonitor) Emit(event ws.EventType, payload any) {
	m.record(event, "global", nil)
	m.Broadcaster.Emit(event, payload)
}

// EmitToUser records and forwards a per-user push.
func (m *BroadcastMonitor) EmitToUser(userID uuid.UUID, event ws.EventType, payload any) {
	m.record(event, "user", &userID)
	m.Broadcaster.EmitToUser(userID, event, payload)
}

// EmitToAdmins records and forwards an admin-room push.
func (m *BroadcastMonitor) EmitToAdmins(event ws.EventType, payload any) {
	m.record(event, "admins", nil)
	m.Broadcaster.EmitToAdmins(event, payload)
}

// History returns the recorded entries, oldest first.
func (m *BroadcastMonitor) History() []MonitorEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []MonitorEntry
	if m.full {
		out = append(out, m.ring[m.next:]...)
	}
	out = append(out, m.ring[:m.next]...)
	return out
}

func (m *BroadcastMonitor) record(event ws.EventType, scope string, userID *uuid.UUID) {
	if event == ws.EventGameStateUpdate {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ring[m.next] = MonitorEntry{At: time.Now().UTC(), Event: event, Scope: scope, UserID: userID}
	m.next++
	if m.next == len(m.ring) {
		m.next = 0
		m.full = true
	}
}
