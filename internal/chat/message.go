package chat

import (
	"fmt"
	"time"
)

type Kind int

const (
	KindPublic Kind = iota
	KindPrivate
	KindAction
	KindSystem
	KindWelcome
	KindError
)

// Message is an immutable chat event on its way from the router to one or
// more output queues. Sender is empty for system messages; Target is set for
// private messages only.
type Message struct {
	Kind   Kind
	Sender string
	Target string
	Text   string
	Time   time.Time
}

const welcomeText = "Welcome to AsyncChat!\n" +
	"Type /help for commands.\n" +
	"First, set your nickname with: /nick <name>"

const helpText = "Commands:\n" +
	"/nick <name>       Set or change your nickname\n" +
	"/list              List connected users\n" +
	"/msg <user> <txt>  Send a private message\n" +
	"/me <action>       Emote (e.g., /me waves)\n" +
	"/quit              Disconnect"

// Render serializes the message into the wire line sent to clients.
func (m Message) Render() string {
	ts := m.Time.Format("15:04:05")
	switch m.Kind {
	case KindPublic:
		return fmt.Sprintf("[%s] <%s> %s", ts, m.Sender, m.Text)
	case KindPrivate:
		return fmt.Sprintf("[%s] [private from %s] %s", ts, m.Sender, m.Text)
	case KindAction:
		return fmt.Sprintf("[%s] * %s %s", ts, m.Sender, m.Text)
	case KindSystem:
		return fmt.Sprintf("[%s] *** %s", ts, m.Text)
	case KindError:
		return "!! " + m.Text
	default:
		// Welcome and help banners go out verbatim.
		return m.Text
	}
}
