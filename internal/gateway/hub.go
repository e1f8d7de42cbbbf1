package gateway

import (
	"log/slog"
	"sync"
)

// Hub is the registry of live sessions, keyed by session and by user. It
// is the FrameSender the broadcaster and the P&L engine push through.
type Hub struct {
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
	byUser   map[string]map[string]*session
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:   logger,
		sessions: make(map[string]*session),
		byUser:   make(map[string]map[string]*session),
	}
}

func (h *Hub) add(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[s.id] = s
	if h.byUser[s.userID] == nil {
		h.byUser[s.userID] = make(map[string]*session)
	}
	h.byUser[s.userID][s.id] = s
}

func (h *Hub) remove(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.sessions, s.id)
	if userSessions, ok := h.byUser[s.userID]; ok {
		delete(userSessions, s.id)
		if len(userSessions) == 0 {
			delete(h.byUser, s.userID)
		}
	}
}

// SendToUser enqueues a frame to every live session of a user. Sessions
// whose queue is full are dropped; the caller is never blocked.
func (h *Hub) SendToUser(userID string, frame []byte) {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.byUser[userID]))
	for _, s := range h.byUser[userID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if !s.enqueue(frame) {
			h.logger.Warn("session queue full, dropping session",
				"session_id", s.id,
				"user_id", userID,
			)
			s.close()
		}
	}
}

// Count returns the number of live sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
