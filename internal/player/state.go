package player

import (
	"sync"

	"tocadiscos/internal/track"
)

// Phase is the playback state machine position for one guild.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhasePlaying
	PhasePaused
	PhaseDisconnected
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	case PhaseDisconnected:
		return "disconnected"
	default:
		return "idle"
	}
}

// guildState holds everything the engine tracks for one guild. The embedded
// mutex is the guild's critical section: every engine operation and every
// completion callback for the guild runs with it held, including across
// provider and connect calls, so a stop can never interleave with a play
// mid-resolution.
type guildState struct {
	mu sync.Mutex

	guildID     string
	queue       []track.Track
	current     *track.Track
	loopCurrent bool
	phase       Phase
	voice       Handle

	// seq increments on every stream start and on stop. A completion
	// callback carrying an older value is stale and ignored.
	seq uint64
}

// inQueue reports whether sourceURL is already queued or playing.
func (g *guildState) inQueue(sourceURL string) bool {
	if g.current != nil && g.current.SourceURL == sourceURL {
		return true
	}
	for _, t := range g.queue {
		if t.SourceURL == sourceURL {
			return true
		}
	}
	return false
}

// popFront removes and returns the queue head. Caller checks non-empty.
func (g *guildState) popFront() track.Track {
	t := g.queue[0]
	g.queue = g.queue[1:]
	return t
}

// stateStore maps guild ids to their playback state. States are created
// lazily on first use and removed when the bot leaves the voice channel.
type stateStore struct {
	mu     sync.RWMutex
	guilds map[string]*guildState
}

func newStateStore() *stateStore {
	return &stateStore{guilds: make(map[string]*guildState)}
}

// getOrCreate returns the guild's state, creating an idle one if absent.
func (s *stateStore) getOrCreate(guildID string) *guildState {
	s.mu.RLock()
	g, ok := s.guilds[guildID]
	s.mu.RUnlock()
	if ok {
		return g
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.guilds[guildID]; ok {
		return g
	}
	g = &guildState{guildID: guildID, phase: PhaseIdle}
	s.guilds[guildID] = g
	return g
}

// acquire returns the guild's state with its lock held, creating an idle one
// if absent. The lookup and the lock are separate steps, so the state may be
// drained and removed in between; such a state is already Disconnected and is
// discarded, and the lookup retried, so callers never mutate a removed state.
func (s *stateStore) acquire(guildID string) *guildState {
	for {
		g := s.getOrCreate(guildID)
		g.mu.Lock()
		if g.phase != PhaseDisconnected {
			return g
		}
		g.mu.Unlock()
	}
}

// lookup returns the guild's state without creating one.
func (s *stateStore) lookup(guildID string) (*guildState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.guilds[guildID]
	return g, ok
}

// remove drops the guild's entry. Anyone still parked on the state's lock
// wakes to a Disconnected phase: read paths and callbacks bail out, and
// acquire retries against the store.
func (s *stateStore) remove(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.guilds, guildID)
}
