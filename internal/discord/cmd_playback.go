package discord

func init() {
	register(&PauseCommand{})
	register(&ResumeCommand{})
	register(&SkipCommand{})
	register(&StopCommand{})
}

type PauseCommand struct{}

func (c *PauseCommand) Name() string        { return "pause" }
func (c *PauseCommand) Aliases() []string   { return []string{"pausa"} }
func (c *PauseCommand) Description() string { return "Pausa la canción actual" }

func (c *PauseCommand) Run(ctx *Context) error {
	if err := ctx.Bot.engine.Pause(ctx.Message.GuildID); err != nil {
		// The engine already reported the no-op through the sink.
		return nil
	}
	return replyText(ctx, "Canción pausada.")
}

type ResumeCommand struct{}

func (c *ResumeCommand) Name() string        { return "resume" }
func (c *ResumeCommand) Aliases() []string   { return []string{"reanudar"} }
func (c *ResumeCommand) Description() string { return "Reanuda la reproducción" }

func (c *ResumeCommand) Run(ctx *Context) error {
	if err := ctx.Bot.engine.Resume(ctx.Message.GuildID); err != nil {
		return nil
	}
	return replyText(ctx, "Reproducción reanudada.")
}

type SkipCommand struct{}

func (c *SkipCommand) Name() string        { return "skip" }
func (c *SkipCommand) Aliases() []string   { return []string{"saltar"} }
func (c *SkipCommand) Description() string { return "Salta la canción actual" }

func (c *SkipCommand) Run(ctx *Context) error {
	if err := ctx.Bot.engine.Skip(ctx.Message.GuildID); err != nil {
		return nil
	}
	return replyText(ctx, "Canción actual saltada.")
}

type StopCommand struct{}

func (c *StopCommand) Name() string        { return "stop" }
func (c *StopCommand) Aliases() []string   { return []string{"parar"} }
func (c *StopCommand) Description() string { return "Detiene todo y sale del canal de voz" }

func (c *StopCommand) Run(ctx *Context) error {
	if err := ctx.Bot.engine.Stop(ctx.Message.GuildID); err != nil {
		return nil
	}
	return replyText(ctx, "Deteniendo la reproducción y saliendo del canal de voz.")
}
