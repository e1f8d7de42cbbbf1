package subindex

import (
	"errors"
	"sync"

	"github.com/rickgao/pro-trader/internal/model"
)

// ErrMaxSessions is returned by AddSession when the user already holds the
// maximum number of concurrent sessions.
var ErrMaxSessions = errors.New("max sessions per user exceeded")

// Stats summarizes the index for monitoring.
type Stats struct {
	ConnectedUsers     int
	TotalSessions      int
	TrackedSymbols     int
	TotalSubscriptions int
}

// Index is the thread-safe bidirectional {symbol<->user} subscription map.
type Index struct {
	mu sync.Mutex

	maxSessions int

	sessions    map[string]map[string]struct{} // user -> session IDs
	userSymbols map[string]map[string]struct{} // user -> symbols
	symbolUsers map[string]map[string]struct{} // symbol -> users
}

// New creates an index enforcing the given per-user session cap.
func New(maxSessionsPerUser int) *Index {
	return &Index{
		maxSessions: maxSessionsPerUser,
		sessions:    make(map[string]map[string]struct{}),
		userSymbols: make(map[string]map[string]struct{}),
		symbolUsers: make(map[string]map[string]struct{}),
	}
}

// AddSession registers a session for a user. Returns ErrMaxSessions when
// the user is at the cap; the index is left unchanged in that case.
func (ix *Index) AddSession(userID, sessionID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(ix.sessions[userID]) >= ix.maxSessions {
		return ErrMaxSessions
	}
	if ix.sessions[userID] == nil {
		ix.sessions[userID] = make(map[string]struct{})
	}
	ix.sessions[userID][sessionID] = struct{}{}
	return nil
}

// RemoveSession drops a session. If it was the user's last session, all of
// the user's subscriptions are purged and the returned slice holds the
// symbols whose last subscriber was this user; the caller forwards those to
// the upstream consumer for unsubscription.
func (ix *Index) RemoveSession(userID, sessionID string) []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	sessions, ok := ix.sessions[userID]
	if !ok {
		return nil
	}
	delete(sessions, sessionID)
	if len(sessions) > 0 {
		// Other sessions remain; subscriptions stay intact.
		return nil
	}
	delete(ix.sessions, userID)

	var orphaned []string
	for symbol := range ix.userSymbols[userID] {
		if ix.dropSymbolUser(symbol, userID) {
			orphaned = append(orphaned, symbol)
		}
	}
	delete(ix.userSymbols, userID)
	return orphaned
}

// Subscribe adds symbols for a user and returns the symbols whose
// subscriber set transitioned from absent to present. Duplicate subscribes
// are no-ops. Symbols are normalized.
func (ix *Index) Subscribe(userID string, symbols []string) []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var newlyTracked []string
	for _, raw := range symbols {
		symbol := model.Normalize(raw)
		if symbol == "" {
			continue
		}

		if ix.userSymbols[userID] == nil {
			ix.userSymbols[userID] = make(map[string]struct{})
		}
		ix.userSymbols[userID][symbol] = struct{}{}

		if ix.symbolUsers[symbol] == nil {
			ix.symbolUsers[symbol] = make(map[string]struct{})
			newlyTracked = append(newlyTracked, symbol)
		}
		ix.symbolUsers[symbol][userID] = struct{}{}
	}
	return newlyTracked
}

// Unsubscribe removes symbols for a user and returns the symbols whose
// last subscriber was this user. Unsubscribing a non-subscribed symbol is
// a no-op.
func (ix *Index) Unsubscribe(userID string, symbols []string) []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var nowEmpty []string
	for _, raw := range symbols {
		symbol := model.Normalize(raw)
		if symbol == "" {
			continue
		}

		if userSyms, ok := ix.userSymbols[userID]; ok {
			delete(userSyms, symbol)
			if len(userSyms) == 0 {
				delete(ix.userSymbols, userID)
			}
		}
		if ix.dropSymbolUser(symbol, userID) {
			nowEmpty = append(nowEmpty, symbol)
		}
	}
	return nowEmpty
}

// SubscribersOf returns a snapshot copy of the users subscribed to a symbol.
func (ix *Index) SubscribersOf(symbol string) []string {
	symbol = model.Normalize(symbol)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	users := ix.symbolUsers[symbol]
	out := make([]string, 0, len(users))
	for u := range users {
		out = append(out, u)
	}
	return out
}

// SessionsOf returns a snapshot copy of a user's session IDs.
func (ix *Index) SessionsOf(userID string) []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	sessions := ix.sessions[userID]
	out := make([]string, 0, len(sessions))
	for s := range sessions {
		out = append(out, s)
	}
	return out
}

// SymbolsOf returns a snapshot copy of a user's subscribed symbols.
func (ix *Index) SymbolsOf(userID string) []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	symbols := ix.userSymbols[userID]
	out := make([]string, 0, len(symbols))
	for s := range symbols {
		out = append(out, s)
	}
	return out
}

// Stats returns connection and subscription counts for monitoring.
func (ix *Index) Stats() Stats {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	st := Stats{
		ConnectedUsers: len(ix.sessions),
		TrackedSymbols: len(ix.symbolUsers),
	}
	for _, sessions := range ix.sessions {
		st.TotalSessions += len(sessions)
	}
	for _, users := range ix.symbolUsers {
		st.TotalSubscriptions += len(users)
	}
	return st
}

// dropSymbolUser removes a user from a symbol's subscriber set and reports
// whether the set became empty (and was deleted). Must hold ix.mu.
func (ix *Index) dropSymbolUser(symbol, userID string) bool {
	users, ok := ix.symbolUsers[symbol]
	if !ok {
		return false
	}
	if _, member := users[userID]; !member {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(ix.symbolUsers, symbol)
		return true
	}
	return false
}
