package discord

import "context"

func init() {
	register(&PlayCommand{})
}

// PlayCommand resolves a link, search query or playlist and queues it.
// Appending " loop" to the query repeats the track.
type PlayCommand struct{}

func (c *PlayCommand) Name() string        { return "p" }
func (c *PlayCommand) Aliases() []string   { return []string{"play"} }
func (c *PlayCommand) Description() string { return "Reproduce una canción o playlist (añade ' loop' para repetir)" }

func (c *PlayCommand) Run(ctx *Context) error {
	m := ctx.Message
	if ctx.Args == "" {
		return replyText(ctx, "Uso: p <enlace o búsqueda>")
	}

	channelID, err := ctx.Bot.findUserVoiceState(m.GuildID, m.Author.ID)
	if err != nil {
		return replyText(ctx, "¡Tienes que estar en un canal de voz para reproducir música!")
	}

	requester := m.Author.Username
	if m.Member != nil && m.Member.Nick != "" {
		requester = m.Member.Nick
	}

	// Resolution can take a while; everything after this point reports
	// through the notification sink.
	go func() {
		_ = ctx.Bot.engine.Play(context.Background(), m.GuildID, channelID, ctx.Args, requester)
	}()
	return nil
}
