package notification

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"trader-game/internal/models"
)

// AlertStore is the slice of persistence the manager needs.
type AlertStore interface {
	SaveAlert(alert *models.ReserveAlert) error
	CleanupOldAlerts(days int) error
}

// Manager fans house reserve alerts out to subscribers and persists them.
// It implements the engine's AlertSink port.
type Manager struct {
	subscribers map[string]chan *models.ReserveAlert
	mu          sync.RWMutex
	store       AlertStore
	log         *zap.Logger
}

func NewManager(store AlertStore, log *zap.Logger) *Manager {
	m := &Manager{
		subscribers: make(map[string]chan *models.ReserveAlert),
		store:       store,
		log:         log,
	}
	go m.cleanupOldAlerts()
	return m
}

// LowReserve records that the house balance dipped below the reserve target.
// Advisory only: the engine keeps playing regardless.
func (m *Manager) LowReserve(gameType string, balance, target float64) {
	alert := &models.ReserveAlert{
		GameType:  gameType,
		Balance:   balance,
		Target:    target,
		Message:   fmt.Sprintf("house reserve %.2f below target %.2f", balance, target),
		CreatedAt: time.Now(),
	}

	if err := m.store.SaveAlert(alert); err != nil {
		m.log.Warn("reserve alert not persisted", zap.Error(err))
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- alert:
		default:
			// Subscriber is behind; drop rather than block the engine.
		}
	}
}

func (m *Manager) Subscribe(id string) chan *models.ReserveAlert {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan *models.ReserveAlert, 100)
	m.subscribers[id] = ch
	return ch
}

func (m *Manager) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, exists := m.subscribers[id]; exists {
		close(ch)
		delete(m.subscribers, id)
	}
}

func (m *Manager) cleanupOldAlerts() {
	ticker := time.NewTicker(24 * time.Hour)
	for range ticker.C {
		if err := m.store.CleanupOldAlerts(30); err != nil {
			m.log.Warn("alert cleanup failed", zap.Error(err))
		}
	}
}
