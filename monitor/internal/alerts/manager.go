// Package alerts keeps the active alert set with deduplication. The
// same source and metric breaching on consecutive sweeps updates one
// alert instead of flooding the channels.
package alerts

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/self-labs/hass-stack/monitor/internal/models"
)

const maxHistory = 1000

// Manager deduplicates breaches across sweeps.
type Manager struct {
	mu      sync.Mutex
	active  map[string]*models.Alert
	history []*models.Alert
}

func NewManager() *Manager {
	return &Manager{active: make(map[string]*models.Alert)}
}

// Sync folds one sweep's breaches into the active set. It returns the
// newly raised alerts and the alerts that cleared this sweep.
func (m *Manager) Sync(now time.Time, breaches []*models.Alert) (raised, resolved []*models.Alert) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(breaches))
	for _, breach := range breaches {
		key := breach.Key()
		seen[key] = true

		if existing, ok := m.active[key]; ok {
			existing.Value = breach.Value
			existing.Level = breach.Level
			existing.Message = breach.Message
			existing.LastSeen = now
			existing.Count++
			continue
		}

		breach.ID = uuid.NewString()
		breach.RaisedAt = now
		breach.LastSeen = now
		breach.Count = 1
		m.active[key] = breach
		m.history = append(m.history, breach)
		raised = append(raised, breach)
	}
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}

	for key, alert := range m.active {
		if !seen[key] {
			delete(m.active, key)
			resolved = append(resolved, alert)
		}
	}
	return raised, resolved
}

// Active returns the current alert set sorted by key.
func (m *Manager) Active() []*models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Alert, 0, len(m.active))
	for _, alert := range m.active {
		out = append(out, alert)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// History returns up to limit past alerts, newest first.
func (m *Manager) History(limit int) []*models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 || limit > len(m.history) {
		limit = len(m.history)
	}
	out := make([]*models.Alert, 0, limit)
	for i := len(m.history) - 1; i >= len(m.history)-limit; i-- {
		out = append(out, m.history[i])
	}
	return out
}
