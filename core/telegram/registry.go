package telegram

import (
	"fmt"
	"sort"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command the bot answers.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// Hidden commands work but are left out of the Telegram menu.
	Hidden  bool
	Aliases []string
}

// Registry maps command names to handlers. Names are kept lower-cased with
// a leading slash. It is not safe for registration after the bot started.
type Registry struct {
	commands map[string]Command
	aliases  map[string]string
	fallback tele.HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
		aliases:  make(map[string]string),
	}
}

// CommandKey normalizes user text to a registry key: trimmed, lower-cased,
// without a trailing @botname and with a leading slash.
func CommandKey(text string) string {
	key := strings.ToLower(strings.TrimSpace(text))
	if at := strings.IndexByte(key, '@'); at > 0 {
		key = key[:at]
	}
	if !strings.HasPrefix(key, "/") {
		key = "/" + key
	}
	return key
}

// Register adds cmd under name, which must start with a slash.
func (r *Registry) Register(name string, cmd Command) error {
	switch {
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		return fmt.Errorf("register %q: name must start with a slash", name)
	case cmd.Handler == nil:
		return fmt.Errorf("register %q: nil handler", name)
	case strings.TrimSpace(cmd.Description) == "":
		return fmt.Errorf("register %q: empty description", name)
	}
	key := CommandKey(name)
	if _, dup := r.commands[key]; dup {
		return fmt.Errorf("register %q: already registered", name)
	}
	r.commands[key] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[CommandKey(alias)] = key
	}
	return nil
}

// Lookup resolves text to a command by name or alias.
func (r *Registry) Lookup(text string) (string, Command, bool) {
	key := CommandKey(text)
	if cmd, ok := r.commands[key]; ok {
		return key, cmd, true
	}
	if target, ok := r.aliases[key]; ok {
		return target, r.commands[target], true
	}
	return "", Command{}, false
}

// Names lists registered command keys, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the command stored under key.
func (r *Registry) Get(key string) (Command, bool) {
	cmd, ok := r.commands[key]
	return cmd, ok
}

// Menu returns the visible commands in the form setMyCommands expects.
func (r *Registry) Menu() []tele.Command {
	var menu []tele.Command
	for _, name := range r.Names() {
		cmd := r.commands[name]
		if cmd.Hidden {
			continue
		}
		menu = append(menu, tele.Command{
			Text:        strings.TrimPrefix(name, "/"),
			Description: cmd.Description,
		})
	}
	return menu
}

// SetFallback sets the handler for text that matches no command.
func (r *Registry) SetFallback(h tele.HandlerFunc) { r.fallback = h }

// Fallback returns the handler set by SetFallback.
func (r *Registry) Fallback() tele.HandlerFunc { return r.fallback }
