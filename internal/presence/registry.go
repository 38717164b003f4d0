package presence

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ricirt/feedhub/internal/domain"
)

// Registry maps each user to their single live connection. It is local to
// the process: a user connected to another instance is not visible here.
//
// There is no heartbeat. A connection whose disconnect never arrives stays
// registered until the same user connects again.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]domain.Connection
	// byConn maps connection id to user id for the current connections only.
	byConn map[string]string

	logger   *zap.Logger
	onChange func(live int)
}

// NewRegistry builds an empty registry. onChange, when set, receives the
// number of live connections after every change.
func NewRegistry(logger *zap.Logger, onChange func(live int)) *Registry {
	if onChange == nil {
		onChange = func(int) {}
	}
	return &Registry{
		byUser:   make(map[string]domain.Connection),
		byConn:   make(map[string]string),
		logger:   logger,
		onChange: onChange,
	}
}

// Connect registers connID as userID's live connection, replacing any
// previous one (last writer wins). A connection id belongs to one user at a
// time; reusing it for another user evicts the old owner.
func (r *Registry) Connect(userID, connID string) {
	r.mu.Lock()
	if owner, ok := r.byConn[connID]; ok && owner != userID {
		delete(r.byUser, owner)
	}
	if prev, ok := r.byUser[userID]; ok {
		delete(r.byConn, prev.ConnectionID)
		r.logger.Debug("connection superseded",
			zap.String("user_id", userID),
			zap.String("previous_connection_id", prev.ConnectionID),
			zap.String("connection_id", connID),
		)
	}
	r.byUser[userID] = domain.Connection{
		UserID:       userID,
		ConnectionID: connID,
		ConnectedAt:  time.Now().UTC(),
	}
	r.byConn[connID] = userID
	live := len(r.byUser)
	r.mu.Unlock()

	r.onChange(live)
}

// Disconnect removes the user whose current connection is connID. A
// disconnect for a connection that was already replaced is ignored, so a
// late event from an old session cannot evict the newer one. It reports
// whether a mapping was removed.
func (r *Registry) Disconnect(connID string) bool {
	r.mu.Lock()
	userID, ok := r.byConn[connID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.byConn, connID)
	delete(r.byUser, userID)
	live := len(r.byUser)
	r.mu.Unlock()

	r.onChange(live)
	return true
}

// Lookup returns the live connection id of userID.
func (r *Registry) Lookup(userID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c.ConnectionID, ok
}

// Count returns the number of users currently connected.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
