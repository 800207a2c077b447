package discord

func init() {
	register(&QueueCommand{})
	register(&ClearQueueCommand{})
}

type QueueCommand struct{}

func (c *QueueCommand) Name() string        { return "queue" }
func (c *QueueCommand) Aliases() []string   { return []string{"cola"} }
func (c *QueueCommand) Description() string { return "Muestra las canciones en cola" }

func (c *QueueCommand) Run(ctx *Context) error {
	ctx.Bot.engine.ShowQueue(ctx.Message.GuildID)
	return nil
}

type ClearQueueCommand struct{}

func (c *ClearQueueCommand) Name() string        { return "clear_queue" }
func (c *ClearQueueCommand) Aliases() []string   { return []string{"clearqueue", "borrar_cola"} }
func (c *ClearQueueCommand) Description() string { return "Vacía la cola sin tocar la canción actual" }

func (c *ClearQueueCommand) Run(ctx *Context) error {
	ctx.Bot.engine.ClearQueue(ctx.Message.GuildID)
	return replyText(ctx, "Cola borrada.")
}
