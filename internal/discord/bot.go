// Package discord is the chat-facing layer: it turns prefix commands in
// guild text channels into playback engine calls and renders engine events
// back as embeds.
package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"tocadiscos/internal/config"
	"tocadiscos/internal/player"
	"tocadiscos/internal/sources/spotify"
	"tocadiscos/internal/sources/youtube"
	"tocadiscos/internal/storage"
	"tocadiscos/internal/voice"
)

// Bot owns the Discord session and the playback engine.
type Bot struct {
	dg     *discordgo.Session
	cfg    *config.Config
	store  *storage.Storage
	engine *player.Engine
	sink   *embedSink
	log    zerolog.Logger
}

// New wires up the session, the providers, the voice transport and the
// engine. The Spotify provider is optional: without credentials, playlist
// links just fail resolution like any other unplayable query.
func New(cfg *config.Config, store *storage.Storage, log zerolog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates | discordgo.IntentsMessageContent

	b := &Bot{
		dg:    dg,
		cfg:   cfg,
		store: store,
		log:   log.With().Str("component", "discord").Logger(),
	}
	b.sink = newEmbedSink(dg, store, b.log)

	var playlists player.PlaylistProvider
	if cfg.SpotifyEnabled() {
		playlists = spotify.New(cfg.SpotifyClientID, cfg.SpotifyClientSecret)
	} else {
		b.log.Info().Msg("no Spotify credentials, playlist expansion disabled")
	}

	b.engine = player.New(
		youtube.New(),
		playlists,
		voice.New(dg, log),
		b.sink,
		log,
		player.WithResolveTimeout(cfg.ResolveTimeout),
	)

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)

	return b, nil
}

// Run opens the gateway connection and blocks until the context ends.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, closing session")
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	_ = s.UpdateStreamingStatus(0, "Reproduciendo música", "")
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("bot is running")
}

// onMessageCreate parses prefix commands. Unknown commands are ignored
// silently so the bot can share channels with other bots.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}

	prefix := b.store.Prefix(m.GuildID, b.cfg.CommandPrefix)
	if !strings.HasPrefix(m.Content, prefix) {
		return
	}

	name, args, _ := strings.Cut(strings.TrimPrefix(m.Content, prefix), " ")
	name = strings.ToLower(strings.TrimSpace(name))
	args = strings.TrimSpace(args)

	cmd, ok := getCommand(name)
	if !ok {
		return
	}

	b.sink.setChannel(m.GuildID, m.ChannelID)
	if err := b.store.AddCommandHistory(m.GuildID, storage.CommandHistoryRecord{
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		Username:  m.Author.Username,
		Command:   cmd.Name(),
		Param:     args,
		Datetime:  time.Now(),
	}); err != nil {
		b.log.Warn().Err(err).Msg("failed to record command history")
	}

	rctx := &Context{
		Session: s,
		Message: m,
		Args:    args,
		Bot:     b,
	}
	if err := cmd.Run(rctx); err != nil {
		b.log.Warn().Err(err).Str("guild", m.GuildID).Str("command", cmd.Name()).Msg("command finished with error")
	}
}

// findUserVoiceState locates the voice channel the user currently sits in.
// Music commands are rejected when the requester is not in voice.
func (b *Bot) findUserVoiceState(guildID, userID string) (string, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("error retrieving guild: %w", err)
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID, nil
		}
	}
	return "", fmt.Errorf("user not in any voice channel")
}
