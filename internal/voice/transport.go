// Package voice streams resolved tracks into Discord voice channels. An
// ffmpeg child process decodes the stream URL to raw PCM, which is opus
// encoded frame by frame into the voice connection.
package voice

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"tocadiscos/internal/player"
)

// Transport implements player.VoiceTransport on top of discordgo.
type Transport struct {
	session *discordgo.Session
	log     zerolog.Logger
}

func New(session *discordgo.Session, log zerolog.Logger) *Transport {
	return &Transport{
		session: session,
		log:     log.With().Str("component", "voice").Logger(),
	}
}

// connection wraps one guild's voice connection and whatever stream is
// currently feeding it.
type connection struct {
	guildID string
	vc      *discordgo.VoiceConnection

	mu  sync.Mutex
	cur *stream
}

// Connect joins the voice channel. ChannelVoiceJoin has no context support,
// so the join runs in a goroutine and a connection that arrives after the
// deadline is dropped again.
func (t *Transport) Connect(ctx context.Context, guildID, channelID string) (player.Handle, error) {
	type joinResult struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	ch := make(chan joinResult, 1)
	go func() {
		vc, err := t.session.ChannelVoiceJoin(guildID, channelID, false, true)
		ch <- joinResult{vc: vc, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		t.log.Debug().Str("guild", guildID).Str("channel", channelID).Msg("joined voice channel")
		return &connection{guildID: guildID, vc: r.vc}, nil
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.vc != nil {
				_ = r.vc.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

// Play starts streaming streamURL into the connection. onFinished fires
// exactly once, from the streaming goroutine, on natural completion, forced
// stop or error.
func (t *Transport) Play(h player.Handle, streamURL string, onFinished func(error)) {
	c := h.(*connection)

	st := newStream()
	c.mu.Lock()
	if old := c.cur; old != nil {
		old.halt()
	}
	c.cur = st
	c.mu.Unlock()

	go func() {
		err := t.run(c, st, streamURL)
		st.finishOnce.Do(func() { onFinished(err) })
	}()
}

func (t *Transport) Pause(h player.Handle) {
	if st := h.(*connection).active(); st != nil {
		st.setPaused(true)
	}
}

func (t *Transport) Resume(h player.Handle) {
	if st := h.(*connection).active(); st != nil {
		st.setPaused(false)
	}
}

// Stop terminates the current stream. The streaming goroutine notices and
// fires its completion callback, which is how skips advance the queue.
func (t *Transport) Stop(h player.Handle) {
	if st := h.(*connection).active(); st != nil {
		st.halt()
	}
}

// Disconnect stops any active stream and leaves the voice channel.
func (t *Transport) Disconnect(h player.Handle) error {
	c := h.(*connection)
	if st := c.active(); st != nil {
		st.halt()
	}
	t.log.Debug().Str("guild", c.guildID).Msg("leaving voice channel")
	return c.vc.Disconnect()
}

func (c *connection) active() *stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}
