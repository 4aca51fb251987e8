package ws

import (
	"sync"

	"github.com/ktao/dmhub/convo"
	"github.com/ktao/dmhub/metrics"
)

// Registry is the process-wide presence table: which users currently
// have live sessions, and which sessions are subscribed to which
// conversations. All state is owned here, behind one RWMutex, so a
// fan-out always observes a consistent membership snapshot.
//
// A user is online iff it has at least one registered session. Presence
// is advisory: a user can disconnect between an IsOnline check and the
// fan-out, which the delivery engine treats as benign.
type Registry struct {
	sync.RWMutex
	sessions map[string]*Handler                    // sid -> handler
	users    map[int32]map[string]*Handler          // uid -> sid -> handler
	rooms    map[convo.Key]map[string]*Handler      // conversation -> sid -> handler
	subs     map[string]map[convo.Key]struct{}      // sid -> subscribed conversations
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Handler),
		users:    make(map[int32]map[string]*Handler),
		rooms:    make(map[convo.Key]map[string]*Handler),
		subs:     make(map[string]map[convo.Key]struct{}),
	}
}

// Register adds a session. Idempotent per sid.
func (r *Registry) Register(h *Handler) {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.sessions[h.sid]; ok {
		return
	}
	r.sessions[h.sid] = h

	byUser := r.users[h.uid]
	if byUser == nil {
		byUser = make(map[string]*Handler)
		r.users[h.uid] = byUser
		metrics.OnlineUsers.Inc()
	}
	byUser[h.sid] = h
	metrics.LiveSessions.Inc()
}

// Deregister removes a session and every room membership it held.
// Returns false when the sid was not registered. Removing the last
// session of a user flips the user offline.
func (r *Registry) Deregister(h *Handler) bool {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.sessions[h.sid]; !ok {
		return false
	}
	delete(r.sessions, h.sid)
	metrics.LiveSessions.Dec()

	if byUser := r.users[h.uid]; byUser != nil {
		delete(byUser, h.sid)
		if len(byUser) == 0 {
			delete(r.users, h.uid)
			metrics.OnlineUsers.Dec()
		}
	}

	for key := range r.subs[h.sid] {
		if room := r.rooms[key]; room != nil {
			delete(room, h.sid)
			if len(room) == 0 {
				delete(r.rooms, key)
			}
		}
	}
	delete(r.subs, h.sid)
	return true
}

// IsOnline reports whether uid has at least one live session right now.
func (r *Registry) IsOnline(uid int32) bool {
	r.RLock()
	defer r.RUnlock()
	return len(r.users[uid]) > 0
}

// Subscribe adds the session to the conversation room. No-op for
// unregistered sessions, so a racing disconnect cannot resurrect state.
func (r *Registry) Subscribe(h *Handler, key convo.Key) {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.sessions[h.sid]; !ok {
		return
	}

	room := r.rooms[key]
	if room == nil {
		room = make(map[string]*Handler)
		r.rooms[key] = room
	}
	room[h.sid] = h

	keys := r.subs[h.sid]
	if keys == nil {
		keys = make(map[convo.Key]struct{})
		r.subs[h.sid] = keys
	}
	keys[key] = struct{}{}
}

func (r *Registry) Unsubscribe(h *Handler, key convo.Key) {
	r.Lock()
	defer r.Unlock()

	if room := r.rooms[key]; room != nil {
		delete(room, h.sid)
		if len(room) == 0 {
			delete(r.rooms, key)
		}
	}
	if keys := r.subs[h.sid]; keys != nil {
		delete(keys, key)
	}
}

// Room returns a snapshot of the sessions subscribed to key.
func (r *Registry) Room(key convo.Key) []*Handler {
	r.RLock()
	defer r.RUnlock()

	out := make([]*Handler, 0, len(r.rooms[key]))
	for _, h := range r.rooms[key] {
		out = append(out, h)
	}
	return out
}

// User returns a snapshot of every live session bound to uid.
func (r *Registry) User(uid int32) []*Handler {
	r.RLock()
	defer r.RUnlock()

	out := make([]*Handler, 0, len(r.users[uid]))
	for _, h := range r.users[uid] {
		out = append(out, h)
	}
	return out
}

// CloseAll shuts down every registered session; used on server stop.
func (r *Registry) CloseAll() {
	r.RLock()
	handlers := make([]*Handler, 0, len(r.sessions))
	for _, h := range r.sessions {
		handlers = append(handlers, h)
	}
	r.RUnlock()

	for _, h := range handlers {
		h.close(ServerStop)
	}
}

func (r *Registry) numSessions() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.sessions)
}
