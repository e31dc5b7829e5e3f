package controllers

import (
	"sync"

	"github.com/amaumene/jellyoff/internal/models"
)

// Connectivity is whether the media server is being used
type Connectivity int

const (
	Online Connectivity = iota
	Offline
)

func (c Connectivity) String() string {
	if c == Offline {
		return "offline"
	}
	return "online"
}

// ConnectivitySource is anything that can tell the current connectivity
type ConnectivitySource interface {
	Connectivity() Connectivity
}

// ConnectivityState holds the connectivity chosen by the user and persists
// it in the settings store
type ConnectivityState struct {
	db *models.Database

	mu    sync.RWMutex
	state Connectivity
}

// NewConnectivityState loads the persisted connectivity
func NewConnectivityState(db *models.Database) (*ConnectivityState, error) {
	settings, err := db.Settings.Get()
	if err != nil {
		return nil, err
	}

	state := Online
	if settings.OfflineMode {
		state = Offline
	}
	return &ConnectivityState{db: db, state: state}, nil
}

// Connectivity returns the current state
func (s *ConnectivityState) Connectivity() Connectivity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Set persists and switches to state
func (s *ConnectivityState) Set(state Connectivity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Settings.Update(func(settings *models.Settings) {
		settings.OfflineMode = state == Offline
	}); err != nil {
		return err
	}
	s.state = state
	return nil
}
