package player

import "tocadiscos/internal/track"

// Notifier receives structured playback events for presentation. The engine
// never talks to a text channel directly.
type Notifier interface {
	Notify(guildID string, event Event)
}

// Event is one of the concrete event structs below.
type Event interface {
	isEvent()
}

// NowPlaying is emitted when a track starts, including loop restarts.
type NowPlaying struct {
	Track    track.Track
	QueueLen int
	Repeat   bool
}

// Queued is emitted when a track is appended while something else plays.
type Queued struct {
	Track    track.Track
	Position int // 1-based position in the queue
}

// AlreadyQueued is emitted when the dedup check rejects a track.
type AlreadyQueued struct {
	Track track.Track
}

// QueueEmpty is emitted when playback drains and the bot leaves the channel.
type QueueEmpty struct{}

// QueueSnapshot is a read-only view of the queue head.
type QueueSnapshot struct {
	Entries []track.Track // at most 10
	Total   int
}

// ErrorEvent reports a user-visible failure or a no-op on an invalid command.
type ErrorEvent struct {
	Kind    ErrorKind
	Message string
}

func (NowPlaying) isEvent()    {}
func (Queued) isEvent()        {}
func (AlreadyQueued) isEvent() {}
func (QueueEmpty) isEvent()    {}
func (QueueSnapshot) isEvent() {}
func (ErrorEvent) isEvent()    {}
