package chat

import (
	"testing"
	"time"
)

func TestMessageRender(t *testing.T) {
	at := time.Date(2024, 3, 1, 13, 45, 9, 0, time.UTC)

	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"public", Message{Kind: KindPublic, Sender: "Ana", Text: "hola", Time: at}, "[13:45:09] <Ana> hola"},
		{"private", Message{Kind: KindPrivate, Sender: "Ana", Target: "Bo", Text: "psst", Time: at}, "[13:45:09] [private from Ana] psst"},
		{"action", Message{Kind: KindAction, Sender: "Ana", Text: "waves", Time: at}, "[13:45:09] * Ana waves"},
		{"system", Message{Kind: KindSystem, Text: "Ana joined the chat", Time: at}, "[13:45:09] *** Ana joined the chat"},
		{"error", Message{Kind: KindError, Text: "nope"}, "!! nope"},
		{"welcome is verbatim", Message{Kind: KindWelcome, Text: welcomeText}, welcomeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.Render(); got != tt.want {
				t.Fatalf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}
