package tcp

import (
	"net"
	"sync"
	"time"

	"parkmeter/backend/services/parking-server/internal/metrics"
	"parkmeter/backend/services/parking-server/internal/service"
)

// Manager tracks live device connections.
type Manager struct {
	mu          sync.RWMutex
	connections map[service.Owner]net.Conn
}

// NewManager builds connection manager.
func NewManager() *Manager {
	return &Manager{
		connections: make(map[service.Owner]net.Conn),
	}
}

// Add registers new connection.
func (m *Manager) Add(id service.Owner, conn net.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[id] = conn
	metrics.LiveConnections.Set(float64(len(m.connections)))
}

// Remove removes connection.
func (m *Manager) Remove(id service.Owner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, id)
	metrics.LiveConnections.Set(float64(len(m.connections)))
}

// Len returns the number of live connections.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// Interrupt sets an immediate read deadline on every connection so handlers
// blocked between frames wake up. A frame already being processed completes.
func (m *Manager) Interrupt() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	for _, conn := range m.connections {
		_ = conn.SetReadDeadline(now)
	}
}

// CloseAll force closes every connection.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conn := range m.connections {
		_ = conn.Close()
	}
}
