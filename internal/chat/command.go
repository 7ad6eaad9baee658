package chat

import "strings"

// Command is one parsed client action. The set is closed: the session loop
// dispatches with an exhaustive type switch.
type Command interface{ isCommand() }

type NickCommand struct{ Name string }

type ListCommand struct{}

type MsgCommand struct {
	To   string
	Text string
}

type MeCommand struct{ Action string }

type QuitCommand struct{}

type HelpCommand struct{}

type PublicCommand struct{ Text string }

func (NickCommand) isCommand()   {}
func (ListCommand) isCommand()   {}
func (MsgCommand) isCommand()    {}
func (MeCommand) isCommand()     {}
func (QuitCommand) isCommand()   {}
func (HelpCommand) isCommand()   {}
func (PublicCommand) isCommand() {}

// ParseCommand turns one input line into a Command. It performs no I/O and
// touches no shared state. An empty line yields (nil, nil), a no-op. Lines
// without a leading slash are public messages, passed through verbatim.
func ParseCommand(line string) (Command, error) {
	if line == "" {
		return nil, nil
	}
	if !strings.HasPrefix(line, "/") {
		return PublicCommand{Text: line}, nil
	}

	verb, rest, _ := strings.Cut(line, " ")
	switch strings.ToLower(verb) {
	case "/nick":
		fields := strings.Fields(rest)
		switch {
		case len(fields) == 0:
			return nil, usageError("Usage: /nick <name>")
		case len(fields) > 1:
			return nil, ErrNameInvalid
		}
		return NickCommand{Name: fields[0]}, nil
	case "/list":
		return ListCommand{}, nil
	case "/msg":
		to, text, ok := strings.Cut(strings.TrimLeft(rest, " "), " ")
		if to == "" {
			return nil, usageError("Usage: /msg <user> <message>")
		}
		if !ok || strings.TrimSpace(text) == "" {
			return nil, ErrEmptyMessage
		}
		return MsgCommand{To: to, Text: text}, nil
	case "/me":
		action := strings.TrimSpace(rest)
		if action == "" {
			return nil, usageError("Usage: /me <action>")
		}
		return MeCommand{Action: action}, nil
	case "/quit":
		return QuitCommand{}, nil
	case "/help":
		return HelpCommand{}, nil
	default:
		return nil, ErrUnknownCommand
	}
}
