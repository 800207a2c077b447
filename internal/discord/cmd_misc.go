package discord

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
)

func init() {
	register(&HolaCommand{})
	register(&HelpCommand{})
	register(&PrefixCommand{})
	register(&HistoryCommand{})
}

type HolaCommand struct{}

func (c *HolaCommand) Name() string        { return "hola" }
func (c *HolaCommand) Aliases() []string   { return nil }
func (c *HolaCommand) Description() string { return "Saluda al bot" }

func (c *HolaCommand) Run(ctx *Context) error {
	return replyText(ctx, "¡Hola!")
}

type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Aliases() []string   { return []string{"ayuda"} }
func (c *HelpCommand) Description() string { return "Muestra esta lista de comandos" }

func (c *HelpCommand) Run(ctx *Context) error {
	cmds := allCommands()
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name() < cmds[j].Name() })

	var sb strings.Builder
	for _, cmd := range cmds {
		fmt.Fprintf(&sb, "**%s** — %s\n", cmd.Name(), cmd.Description())
	}
	return replyEmbed(ctx, &discordgo.MessageEmbed{
		Title:       "Comandos",
		Description: sb.String(),
		Color:       colorBlue,
	})
}

// PrefixCommand changes the guild's command prefix.
type PrefixCommand struct{}

func (c *PrefixCommand) Name() string        { return "prefix" }
func (c *PrefixCommand) Aliases() []string   { return nil }
func (c *PrefixCommand) Description() string { return "Cambia el prefijo de comandos de este servidor" }

func (c *PrefixCommand) Run(ctx *Context) error {
	prefix := strings.TrimSpace(ctx.Args)
	if prefix == "" || len(prefix) > 3 {
		return replyText(ctx, "Uso: prefix <1 a 3 caracteres>")
	}
	if err := ctx.Bot.store.SetPrefix(ctx.Message.GuildID, prefix); err != nil {
		return err
	}
	return replyText(ctx, fmt.Sprintf("Prefijo cambiado a `%s`", prefix))
}

// HistoryCommand lists the guild's recently played tracks.
type HistoryCommand struct{}

func (c *HistoryCommand) Name() string        { return "history" }
func (c *HistoryCommand) Aliases() []string   { return []string{"historial"} }
func (c *HistoryCommand) Description() string { return "Muestra las últimas canciones reproducidas" }

func (c *HistoryCommand) Run(ctx *Context) error {
	records, err := ctx.Bot.store.TrackHistory(ctx.Message.GuildID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return replyText(ctx, "Todavía no se ha reproducido nada.")
	}

	var sb strings.Builder
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		fmt.Fprintf(&sb, "[%s](%s) — pedida por %s\n", r.Title, r.SourceURL, r.RequestedBy)
	}
	return replyEmbed(ctx, &discordgo.MessageEmbed{
		Title:       "🎶 Historial",
		Description: sb.String(),
		Color:       colorBlue,
	})
}
