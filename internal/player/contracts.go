package player

import (
	"context"

	"tocadiscos/internal/track"
)

// SearchProvider resolves free text or a direct link to one playable track.
type SearchProvider interface {
	Resolve(ctx context.Context, query string) (track.Track, error)
}

// PlaylistProvider expands an external playlist reference into the ordered
// list of per-track queries, each resolved individually via SearchProvider.
type PlaylistProvider interface {
	// Match reports whether the input is a playlist reference this provider
	// can expand.
	Match(ref string) bool
	Expand(ctx context.Context, ref string) ([]string, error)
}

// Handle is an opaque voice connection owned by the transport. The engine
// only passes it back into transport calls.
type Handle interface{}

// VoiceTransport is the real-time audio side. Play must invoke onFinished
// exactly once per call: on natural end of stream, forced stop, or error.
// The callback must come from the transport's own goroutine, never from
// inside Play itself; the engine calls Play while holding the guild lock
// that the callback re-acquires.
type VoiceTransport interface {
	Connect(ctx context.Context, guildID, channelID string) (Handle, error)
	Play(h Handle, streamURL string, onFinished func(error))
	Pause(h Handle)
	Resume(h Handle)
	Stop(h Handle)
	Disconnect(h Handle) error
}
