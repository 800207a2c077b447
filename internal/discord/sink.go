package discord

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"tocadiscos/internal/player"
	"tocadiscos/internal/storage"
	"tocadiscos/internal/track"
)

const (
	colorBlue  = 0x3498db
	colorGreen = 0x2ecc71
	colorRed   = 0xe74c3c
)

func replyText(ctx *Context, content string) error {
	_, err := ctx.Session.ChannelMessageSend(ctx.Message.ChannelID, content)
	return err
}

func replyEmbed(ctx *Context, embed *discordgo.MessageEmbed) error {
	_, err := ctx.Session.ChannelMessageSendEmbed(ctx.Message.ChannelID, embed)
	return err
}

// embedSink implements player.Notifier by rendering engine events as embeds
// in the text channel the guild's last music command came from. It also
// records every started track in the play history.
type embedSink struct {
	dg    *discordgo.Session
	store *storage.Storage
	log   zerolog.Logger

	mu       sync.RWMutex
	channels map[string]string // guildID -> last command text channel
}

func newEmbedSink(dg *discordgo.Session, store *storage.Storage, log zerolog.Logger) *embedSink {
	return &embedSink{
		dg:       dg,
		store:    store,
		log:      log,
		channels: make(map[string]string),
	}
}

// setChannel remembers where to send the guild's notifications.
func (s *embedSink) setChannel(guildID, channelID string) {
	s.mu.Lock()
	s.channels[guildID] = channelID
	s.mu.Unlock()
}

func (s *embedSink) channel(guildID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[guildID]
	return ch, ok
}

func (s *embedSink) Notify(guildID string, event player.Event) {
	channelID, ok := s.channel(guildID)
	if !ok {
		s.log.Debug().Str("guild", guildID).Msg("no notification channel for guild, dropping event")
		return
	}

	switch ev := event.(type) {
	case player.NowPlaying:
		title := "🎶 Ahora suena"
		if ev.Repeat {
			title = "🔁 Ahora suena (en bucle)"
		}
		s.send(channelID, trackEmbed(title, ev.Track, ev.QueueLen, colorBlue))
		if err := s.store.AddTrackHistory(guildID, ev.Track); err != nil {
			s.log.Warn().Err(err).Str("guild", guildID).Msg("failed to record track history")
		}

	case player.Queued:
		embed := trackEmbed("🎶 Canción añadida a la cola", ev.Track, ev.Position, colorGreen)
		s.send(channelID, embed)

	case player.AlreadyQueued:
		s.sendText(channelID, "La canción ya está en la cola.")

	case player.QueueEmpty:
		s.sendText(channelID, "No hay más canciones en la cola, me despido. 👋")

	case player.QueueSnapshot:
		if ev.Total == 0 {
			s.sendText(channelID, "La cola está vacía.")
			return
		}
		desc := ""
		for i, t := range ev.Entries {
			desc += fmt.Sprintf("%d. %s - %s\n", i+1, t.Title, track.FormatDuration(t.Duration))
		}
		s.send(channelID, &discordgo.MessageEmbed{
			Title:       "🎶 Canciones en cola",
			Description: desc,
			Color:       colorGreen,
			Footer: &discordgo.MessageEmbedFooter{
				Text: fmt.Sprintf("Mostrando las primeras %d de %d canciones", len(ev.Entries), ev.Total),
			},
		})

	case player.ErrorEvent:
		s.send(channelID, &discordgo.MessageEmbed{
			Title:       "⚠️ " + string(ev.Kind),
			Description: ev.Message,
			Color:       colorRed,
		})
	}
}

func trackEmbed(title string, t track.Track, queueLen int, color int) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("[%s](%s)", t.Title, t.SourceURL),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Duración", Value: track.FormatDuration(t.Duration), Inline: true},
			{Name: "En cola", Value: fmt.Sprintf("%d canciones", queueLen), Inline: true},
		},
	}
	if t.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.Thumbnail}
	}
	if t.RequestedBy != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Pedida por " + t.RequestedBy}
	}
	return embed
}

func (s *embedSink) send(channelID string, embed *discordgo.MessageEmbed) {
	if _, err := s.dg.ChannelMessageSendEmbed(channelID, embed); err != nil {
		s.log.Warn().Err(err).Str("channel", channelID).Msg("failed to send embed")
	}
}

func (s *embedSink) sendText(channelID, content string) {
	if _, err := s.dg.ChannelMessageSend(channelID, content); err != nil {
		s.log.Warn().Err(err).Str("channel", channelID).Msg("failed to send message")
	}
}
