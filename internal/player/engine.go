// Package player owns the per-guild playback queue and state machine. It is
// the sole writer of guild playback state: user commands and the transport's
// completion callbacks both funnel through the guild's critical section, so
// no two mutations for the same guild ever interleave.
package player

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tocadiscos/internal/track"
)

const defaultResolveTimeout = 10 * time.Second

// Engine drives playback for every guild the bot serves. Failures in one
// guild never touch another guild's state machine.
type Engine struct {
	search   SearchProvider
	playlist PlaylistProvider
	voice    VoiceTransport
	notifier Notifier
	log      zerolog.Logger
	timeout  time.Duration

	states *stateStore
}

// Option configures an Engine.
type Option func(*Engine)

// WithResolveTimeout bounds provider and voice-connect calls.
func WithResolveTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// New creates an Engine. The playlist provider may be nil, in which case
// every query goes through the search provider directly.
func New(search SearchProvider, playlist PlaylistProvider, voice VoiceTransport, notifier Notifier, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		search:   search,
		playlist: playlist,
		voice:    voice,
		notifier: notifier,
		log:      log.With().Str("component", "player").Logger(),
		timeout:  defaultResolveTimeout,
		states:   newStateStore(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// parseLoop strips a trailing " loop" token from the query. The exact rule
// is load-bearing: users type "p <song> loop" to repeat a track.
func parseLoop(query string) (string, bool) {
	query = strings.TrimSpace(query)
	if trimmed, ok := strings.CutSuffix(query, " loop"); ok {
		return strings.TrimSpace(trimmed), true
	}
	return query, false
}

// Play resolves the query and appends the result to the guild's queue,
// starting playback if the guild is idle. Playlist references expand into
// their tracks in order; items that fail to resolve are skipped.
func (e *Engine) Play(ctx context.Context, guildID, channelID, query, requester string) error {
	query, loopRequested := parseLoop(query)

	g := e.states.acquire(guildID)
	defer g.mu.Unlock()
	// Loop without a playing track is meaningless; drop the flag if the
	// operation ends with nothing current.
	defer func() {
		if g.current == nil {
			g.loopCurrent = false
		}
	}()
	g.loopCurrent = loopRequested

	if e.playlist != nil && e.playlist.Match(query) {
		return e.expandPlaylist(ctx, g, channelID, query, requester)
	}

	t, err := e.resolve(ctx, query, requester)
	if err != nil {
		e.log.Warn().Err(err).Str("guild", guildID).Str("query", query).Msg("resolution failed")
		e.notifier.Notify(guildID, ErrorEvent{Kind: KindResolution, Message: "could not find anything for: " + query})
		return err
	}

	if g.inQueue(t.SourceURL) {
		e.notifier.Notify(guildID, AlreadyQueued{Track: t})
		return nil
	}
	g.queue = append(g.queue, t)

	if g.phase == PhaseIdle {
		return e.promote(ctx, g, channelID)
	}
	e.notifier.Notify(guildID, Queued{Track: t, Position: len(g.queue)})
	return nil
}

// expandPlaylist resolves every item of a playlist reference sequentially,
// preserving order. Partial success is fine: items the search provider fails
// on are skipped and the remainder continues. Called with the guild lock held.
func (e *Engine) expandPlaylist(ctx context.Context, g *guildState, channelID, ref, requester string) error {
	pctx, cancel := context.WithTimeout(ctx, e.timeout)
	queries, err := e.playlist.Expand(pctx, ref)
	cancel()
	if err != nil {
		e.log.Warn().Err(err).Str("guild", g.guildID).Msg("playlist expansion failed")
		e.notifier.Notify(g.guildID, ErrorEvent{Kind: KindResolution, Message: "could not read the playlist"})
		return err
	}

	added := 0
	for _, q := range queries {
		t, err := e.resolve(ctx, q, requester)
		if err != nil {
			e.log.Debug().Err(err).Str("guild", g.guildID).Str("query", q).Msg("skipping playlist item")
			continue
		}
		if g.inQueue(t.SourceURL) {
			e.notifier.Notify(g.guildID, AlreadyQueued{Track: t})
			continue
		}
		g.queue = append(g.queue, t)
		added++
		if g.phase != PhaseIdle {
			e.notifier.Notify(g.guildID, Queued{Track: t, Position: len(g.queue)})
		}
	}

	if added == 0 {
		e.notifier.Notify(g.guildID, ErrorEvent{Kind: KindResolution, Message: "none of the playlist tracks could be resolved"})
		return ErrNoResults
	}
	if g.phase == PhaseIdle {
		return e.promote(ctx, g, channelID)
	}
	return nil
}

// Pause pauses the current track. A no-op with a notification in any phase
// other than Playing.
func (e *Engine) Pause(guildID string) error {
	g, ok := e.states.lookup(guildID)
	if !ok {
		e.notifier.Notify(guildID, ErrorEvent{Kind: KindStateConflict, Message: "nothing is playing"})
		return ErrNothingPlaying
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhasePlaying {
		e.notifier.Notify(guildID, ErrorEvent{Kind: KindStateConflict, Message: "nothing is playing"})
		return ErrNothingPlaying
	}
	e.voice.Pause(g.voice)
	g.phase = PhasePaused
	e.log.Debug().Str("guild", guildID).Msg("paused")
	return nil
}

// Resume resumes a paused track. A no-op with a notification otherwise.
func (e *Engine) Resume(guildID string) error {
	g, ok := e.states.lookup(guildID)
	if !ok {
		e.notifier.Notify(guildID, ErrorEvent{Kind: KindStateConflict, Message: "nothing is paused"})
		return ErrNotPaused
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhasePaused {
		e.notifier.Notify(guildID, ErrorEvent{Kind: KindStateConflict, Message: "nothing is paused"})
		return ErrNotPaused
	}
	e.voice.Resume(g.voice)
	g.phase = PhasePlaying
	e.log.Debug().Str("guild", guildID).Msg("resumed")
	return nil
}

// Skip clears the loop flag and force-stops the current stream. It never
// pops the queue itself: stopping the stream fires the same completion
// callback as a natural end of track, so a single advance path exists.
func (e *Engine) Skip(guildID string) error {
	g, ok := e.states.lookup(guildID)
	if !ok {
		e.notifier.Notify(guildID, ErrorEvent{Kind: KindStateConflict, Message: "nothing is playing"})
		return ErrNothingPlaying
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhasePlaying && g.phase != PhasePaused {
		e.notifier.Notify(guildID, ErrorEvent{Kind: KindStateConflict, Message: "nothing is playing"})
		return ErrNothingPlaying
	}
	g.loopCurrent = false
	e.voice.Stop(g.voice)
	e.log.Debug().Str("guild", guildID).Msg("skip requested")
	return nil
}

// Stop disconnects from voice and drops the guild's state entirely. The
// sequence bump makes any in-flight completion callback stale, so a racing
// callback observes cleared state instead of re-triggering playback.
func (e *Engine) Stop(guildID string) error {
	g, ok := e.states.lookup(guildID)
	if !ok {
		e.notifier.Notify(guildID, ErrorEvent{Kind: KindStateConflict, Message: "not connected to a voice channel"})
		return ErrNotConnected
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase == PhaseIdle || g.phase == PhaseDisconnected {
		e.notifier.Notify(guildID, ErrorEvent{Kind: KindStateConflict, Message: "not connected to a voice channel"})
		return ErrNotConnected
	}

	g.seq++
	if g.voice != nil {
		e.voice.Stop(g.voice)
		if err := e.voice.Disconnect(g.voice); err != nil {
			e.log.Warn().Err(err).Str("guild", guildID).Msg("disconnect failed")
		}
	}
	g.voice = nil
	g.queue = nil
	g.current = nil
	g.loopCurrent = false
	g.phase = PhaseDisconnected
	e.states.remove(guildID)
	e.log.Info().Str("guild", guildID).Msg("stopped and left voice")
	return nil
}

// ShowQueue emits a snapshot of the first ten queue entries plus the total
// count. Read-only.
func (e *Engine) ShowQueue(guildID string) {
	g, ok := e.states.lookup(guildID)
	if !ok {
		e.notifier.Notify(guildID, QueueSnapshot{})
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	n := len(g.queue)
	head := min(n, 10)
	entries := make([]track.Track, head)
	copy(entries, g.queue[:head])
	e.notifier.Notify(guildID, QueueSnapshot{Entries: entries, Total: n})
}

// ClearQueue empties the queue. The current track and phase are untouched.
func (e *Engine) ClearQueue(guildID string) {
	g, ok := e.states.lookup(guildID)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queue = nil
}

// NowPlaying returns the current track for a guild, if any. Read-only,
// used by the presentation layer.
func (e *Engine) NowPlaying(guildID string) (track.Track, bool) {
	g, ok := e.states.lookup(guildID)
	if !ok {
		return track.Track{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return track.Track{}, false
	}
	return *g.current, true
}

// resolve looks up a single query with the engine's timeout applied and
// stamps the requester on the result.
func (e *Engine) resolve(ctx context.Context, query, requester string) (track.Track, error) {
	rctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	t, err := e.search.Resolve(rctx, query)
	if err != nil {
		return track.Track{}, err
	}
	t.RequestedBy = requester
	return t, nil
}

// promote connects to voice if needed, pops the queue head and starts it.
// Called with the guild lock held and phase Idle. On connect failure the
// popped track is dropped, not re-queued, and the guild returns to Idle.
func (e *Engine) promote(ctx context.Context, g *guildState, channelID string) error {
	t := g.popFront()
	g.phase = PhaseConnecting

	if g.voice == nil {
		cctx, cancel := context.WithTimeout(ctx, e.timeout)
		h, err := e.voice.Connect(cctx, g.guildID, channelID)
		cancel()
		if err != nil {
			g.phase = PhaseIdle
			e.log.Warn().Err(err).Str("guild", g.guildID).Str("title", t.Title).Msg("voice connect failed")
			e.notifier.Notify(g.guildID, ErrorEvent{Kind: KindTransport, Message: "could not join the voice channel"})
			return err
		}
		g.voice = h
	}

	g.current = &t
	e.startStream(g, false)
	return nil
}

// startStream starts (or restarts, for loop) the current track on the voice
// transport. Called with the guild lock held, current and voice set. The
// sequence number is captured per start so superseded callbacks can be told
// apart from the live one.
func (e *Engine) startStream(g *guildState, repeat bool) {
	g.seq++
	seq := g.seq
	t := *g.current
	guildID := g.guildID

	e.voice.Play(g.voice, t.StreamURL, func(err error) {
		e.handleStreamEnd(guildID, seq, err)
	})
	g.phase = PhasePlaying
	e.log.Info().Str("guild", guildID).Str("title", t.Title).Uint64("seq", seq).Bool("repeat", repeat).Msg("now playing")
	e.notifier.Notify(guildID, NowPlaying{Track: t, QueueLen: len(g.queue), Repeat: repeat})
}

// handleStreamEnd is the completion callback path, shared by natural end of
// track, forced stop (skip) and stream errors. It is the only place the
// queue advances.
func (e *Engine) handleStreamEnd(guildID string, seq uint64, streamErr error) {
	g, ok := e.states.lookup(guildID)
	if !ok {
		e.log.Debug().Str("guild", guildID).Uint64("seq", seq).Msg("completion for removed guild state, ignoring")
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if seq != g.seq {
		// A superseded stream (rapid skips, stop). Nothing to do.
		e.log.Debug().Str("guild", guildID).Uint64("seq", seq).Uint64("current", g.seq).Msg("stale completion callback, ignoring")
		return
	}
	if g.phase != PhasePlaying && g.phase != PhasePaused {
		return
	}
	if streamErr != nil {
		e.log.Warn().Err(streamErr).Str("guild", guildID).Msg("stream ended with error")
	}

	if g.loopCurrent && g.current != nil {
		e.startStream(g, true)
		return
	}

	if len(g.queue) > 0 {
		t := g.popFront()
		g.current = &t
		e.startStream(g, false)
		return
	}

	// Queue drained: leave the voice channel and drop the state.
	g.current = nil
	g.loopCurrent = false
	h := g.voice
	g.voice = nil
	g.phase = PhaseDisconnected
	if h != nil {
		if err := e.voice.Disconnect(h); err != nil {
			e.log.Warn().Err(err).Str("guild", guildID).Msg("disconnect failed")
		}
	}
	e.states.remove(guildID)
	e.log.Info().Str("guild", guildID).Msg("queue finished")
	e.notifier.Notify(guildID, QueueEmpty{})
}
