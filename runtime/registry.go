package runtime

import (
	"chat-relay/contract"
	"chat-relay/observability"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

const shardCount = 64

// Set holds the live connections of one session, keyed by connection id.
type Set map[string]contract.Connection

type shard struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]Set
}

// Registry maps a session to its live connections.
// Sessions are spread over independently locked shards, so traffic on one
// session never waits for a lock held on behalf of an unrelated one.
// No lock is held while sending to a peer.
type Registry struct {
	log             *slog.Logger
	shards          [shardCount]*shard
	deliveryTimeout time.Duration
}

func NewRegistry(log *slog.Logger, deliveryTimeout time.Duration) *Registry {
	r := &Registry{log: log, deliveryTimeout: deliveryTimeout}
	for i := range r.shards {
		r.shards[i] = &shard{sessions: make(map[uuid.UUID]Set)}
	}
	return r
}

func (r *Registry) shardFor(sessionID uuid.UUID) *shard {
	return r.shards[xxhash.Sum64(sessionID[:])%shardCount]
}

// Connect registers conn for the session. Registering the same connection
// twice leaves a single entry.
func (r *Registry) Connect(sessionID uuid.UUID, conn contract.Connection) {
	s := r.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		s.sessions[sessionID] = make(Set)
	}
	if _, ok := s.sessions[sessionID][conn.ID()]; !ok {
		observability.ConnectionsActive.Inc()
	}
	s.sessions[sessionID][conn.ID()] = conn
}

// Disconnect removes conn from the session and drops the session entry once
// it is empty. Unknown connections are ignored. It reports whether something
// was removed.
func (r *Registry) Disconnect(sessionID uuid.UUID, conn contract.Connection) bool {
	s := r.shardFor(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	members, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	if _, ok = members[conn.ID()]; !ok {
		return false
	}
	delete(members, conn.ID())
	observability.ConnectionsActive.Dec()
	if len(members) == 0 {
		delete(s.sessions, sessionID)
	}
	return true
}

// Broadcast delivers payload to every connection registered for the session
// when the call starts. Each peer gets its own goroutine bounded by the
// delivery timeout; a peer that fails or times out is disconnected and closed
// without affecting the others. It returns the number of successful deliveries.
func (r *Registry) Broadcast(sessionID uuid.UUID, payload any) int {
	peers := r.snapshot(sessionID)
	if len(peers) == 0 {
		return 0
	}
	start := time.Now()
	defer func() {
		observability.BroadcastDuration.Observe(time.Since(start).Seconds())
	}()

	var wg sync.WaitGroup
	dead := make(chan contract.Connection, len(peers))
	for _, peer := range peers {
		wg.Add(1)
		go func(peer contract.Connection) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), r.deliveryTimeout)
			defer cancel()
			if err := peer.Send(ctx, payload); err != nil {
				r.log.Debug("Delivery failed, dropping peer",
					"session_id", sessionID, "connection_id", peer.ID(), "error", err)
				dead <- peer
			}
		}(peer)
	}
	wg.Wait()
	close(dead)

	dropped := 0
	for peer := range dead {
		dropped++
		r.evict(sessionID, peer, contract.CloseGoingAway, "delivery failed")
	}
	delivered := len(peers) - dropped
	observability.Deliveries.WithLabelValues("delivered").Add(float64(delivered))
	observability.Deliveries.WithLabelValues("dropped").Add(float64(dropped))
	return delivered
}

// DisconnectUser closes every connection the user holds on the session.
func (r *Registry) DisconnectUser(sessionID, userID uuid.UUID) int {
	closed := 0
	for _, peer := range r.snapshot(sessionID) {
		if peer.UserID() != userID {
			continue
		}
		r.evict(sessionID, peer, contract.ClosePolicyViolation, "removed from session")
		closed++
	}
	return closed
}

// DisconnectSession closes every connection of a session, typically after its deletion.
func (r *Registry) DisconnectSession(sessionID uuid.UUID) int {
	peers := r.snapshot(sessionID)
	for _, peer := range peers {
		r.evict(sessionID, peer, contract.ClosePolicyViolation, "session deleted")
	}
	return len(peers)
}

// Count returns the number of live connections on the session.
func (r *Registry) Count(sessionID uuid.UUID) int {
	s := r.shardFor(sessionID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions[sessionID])
}

// Sessions returns the number of sessions having at least one live connection.
func (r *Registry) Sessions() int {
	total := 0
	for _, s := range r.shards {
		s.mu.RLock()
		total += len(s.sessions)
		s.mu.RUnlock()
	}
	return total
}

func (r *Registry) snapshot(sessionID uuid.UUID) []contract.Connection {
	s := r.shardFor(sessionID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.sessions[sessionID]
	if len(members) == 0 {
		return nil
	}
	peers := make([]contract.Connection, 0, len(members))
	for _, conn := range members {
		peers = append(peers, conn)
	}
	return peers
}

func (r *Registry) evict(sessionID uuid.UUID, peer contract.Connection, code int, reason string) {
	r.Disconnect(sessionID, peer)
	if err := peer.Close(code, reason); err != nil {
		r.log.Debug("Error while closing peer", "connection_id", peer.ID(), "error", err)
	}
}
