package discord

import "github.com/bwmarrin/discordgo"

// Command is one prefix command.
type Command interface {
	Name() string
	Aliases() []string
	Description() string
	Run(ctx *Context) error
}

// Context is what the runtime hands a command when executing it.
type Context struct {
	Session *discordgo.Session
	Message *discordgo.MessageCreate
	Args    string
	Bot     *Bot
}

var registry = map[string]Command{}

func register(cmd Command) {
	registry[cmd.Name()] = cmd
	for _, a := range cmd.Aliases() {
		registry[a] = cmd
	}
}

func getCommand(name string) (Command, bool) {
	cmd, ok := registry[name]
	return cmd, ok
}

// allCommands returns each registered command once, for the help listing.
func allCommands() []Command {
	seen := map[string]bool{}
	list := make([]Command, 0, len(registry))
	for _, cmd := range registry {
		if seen[cmd.Name()] {
			continue
		}
		list = append(list, cmd)
		seen[cmd.Name()] = true
	}
	return list
}
