package chat

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(Options{
		Listen:        "127.0.0.1:0",
		WSListen:      "127.0.0.1:0",
		ShutdownGrace: time.Second,
	}, logger)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dialTestClient(t *testing.T, srv *Server) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) sendLine(line string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("write %q: %v", line, err)
	}
}

func (c *testClient) readLine() (string, error) {
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.r.ReadString('\n')
	return strings.TrimRight(line, "\n"), err
}

// expect reads lines until one contains substr.
func (c *testClient) expect(substr string) string {
	c.t.Helper()
	for {
		line, err := c.readLine()
		if err != nil {
			c.t.Fatalf("waiting for %q: %v", substr, err)
		}
		if strings.Contains(line, substr) {
			return line
		}
	}
}

func (c *testClient) expectEOF() {
	c.t.Helper()
	for {
		if _, err := c.readLine(); err != nil {
			if err == io.EOF {
				return
			}
			c.t.Fatalf("expected EOF, got %v", err)
		}
	}
}

func TestServer_WelcomeOnConnect(t *testing.T) {
	srv := startTestServer(t)
	c := dialTestClient(t, srv)

	c.expect("Welcome to AsyncChat!")
	c.expect("/nick <name>")
}

func TestServer_NickClaimAndDuplicate(t *testing.T) {
	srv := startTestServer(t)
	ana := dialTestClient(t, srv)
	ana.expect("Welcome to AsyncChat!")
	ana.sendLine("/nick Ana")
	ana.expect("Ana joined the chat")

	imposter := dialTestClient(t, srv)
	imposter.expect("Welcome to AsyncChat!")
	imposter.sendLine("/nick ana")
	imposter.expect("Nickname already in use.")

	// The rejected client keeps working and can pick another name.
	imposter.sendLine("/nick Bo")
	imposter.expect("Bo joined the chat")
	ana.expect("Bo joined the chat")
}

func TestServer_PublicRoundTrip(t *testing.T) {
	srv := startTestServer(t)
	ana := dialTestClient(t, srv)
	ana.expect("Welcome to AsyncChat!")
	ana.sendLine("/nick Ana")
	ana.expect("Ana joined the chat")

	bo := dialTestClient(t, srv)
	bo.expect("Welcome to AsyncChat!")
	bo.sendLine("/nick Bo")
	bo.expect("Bo joined the chat")
	ana.expect("Bo joined the chat")

	ana.sendLine("hola")
	got := bo.expect("hola")
	if !strings.Contains(got, "<Ana>") {
		t.Fatalf("public line missing sender: %q", got)
	}
	ana.expect("hola") // sender receives its own broadcast
}

func TestServer_PrivateMessageAndUserNotFound(t *testing.T) {
	srv := startTestServer(t)
	ana := dialTestClient(t, srv)
	ana.expect("Welcome to AsyncChat!")
	ana.sendLine("/nick Ana")
	ana.expect("Ana joined the chat")

	bo := dialTestClient(t, srv)
	bo.expect("Welcome to AsyncChat!")
	bo.sendLine("/nick Bo")
	bo.expect("Bo joined the chat")

	ana.sendLine("/msg Bo psst")
	bo.expect("[private from Ana] psst")
	ana.expect("[PM -> Bo] psst")

	ana.sendLine("/msg ghost hello")
	ana.expect("User 'ghost' not found.")
}

func TestServer_ListAndHelp(t *testing.T) {
	srv := startTestServer(t)
	ana := dialTestClient(t, srv)
	ana.expect("Welcome to AsyncChat!")
	ana.sendLine("/nick Ana")
	ana.expect("Ana joined the chat")

	ana.sendLine("/list")
	if got := ana.expect("Users ("); got != "Users (1): Ana" {
		t.Fatalf("unexpected list line: %q", got)
	}

	ana.sendLine("/help")
	ana.expect("/msg <user> <txt>")
}

func TestServer_QuitReleasesNickname(t *testing.T) {
	srv := startTestServer(t)
	ana := dialTestClient(t, srv)
	ana.expect("Welcome to AsyncChat!")
	ana.sendLine("/nick Ana")
	ana.expect("Ana joined the chat")

	bo := dialTestClient(t, srv)
	bo.expect("Welcome to AsyncChat!")
	bo.sendLine("/nick Bo")
	bo.expect("Bo joined the chat")

	bo.sendLine("/quit")
	bo.expect("Bye")
	bo.expectEOF()
	ana.expect("Bo left (quit)")

	// The name is free again immediately.
	cy := dialTestClient(t, srv)
	cy.expect("Welcome to AsyncChat!")
	cy.sendLine("/nick Bo")
	cy.expect("Bo joined the chat")
}

func TestServer_OversizedLineIsRecoverable(t *testing.T) {
	srv := startTestServer(t)
	ana := dialTestClient(t, srv)
	ana.expect("Welcome to AsyncChat!")
	ana.sendLine("/nick Ana")
	ana.expect("Ana joined the chat")

	ana.sendLine(strings.Repeat("a", 5000))
	ana.expect("Line too long")

	// Connection survives the rejected line.
	ana.sendLine("still alive")
	ana.expect("still alive")
}

func TestServer_InvalidUTF8IsRecoverable(t *testing.T) {
	srv := startTestServer(t)
	ana := dialTestClient(t, srv)
	ana.expect("Welcome to AsyncChat!")
	ana.sendLine("/nick Ana")
	ana.expect("Ana joined the chat")

	if _, err := ana.conn.Write([]byte("bad \xff\xfe bytes\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	ana.expect("Input was not valid UTF-8.")

	// The session survives and keeps relaying.
	ana.sendLine("still here")
	ana.expect("still here")
}

func TestServer_UnknownCommandAndAnonymousChat(t *testing.T) {
	srv := startTestServer(t)
	c := dialTestClient(t, srv)
	c.expect("Welcome to AsyncChat!")

	c.sendLine("/dance")
	c.expect("Unknown command. Type /help")

	c.sendLine("hello?")
	c.expect("Set your nickname first")
}

func TestServer_StopAnnouncesAndCloses(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(Options{Listen: "127.0.0.1:0", ShutdownGrace: time.Second}, logger)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	ana := dialTestClient(t, srv)
	ana.expect("Welcome to AsyncChat!")
	ana.sendLine("/nick Ana")
	ana.expect("Ana joined the chat")

	// A client that never claimed a nickname still gets the notice.
	anon := dialTestClient(t, srv)
	anon.expect("Welcome to AsyncChat!")

	srv.Stop()
	ana.expect("Server is shutting down.")
	ana.expectEOF()
	anon.expect("Server is shutting down.")
	anon.expectEOF()
}

func TestServer_WebSocketTransport(t *testing.T) {
	srv := startTestServer(t)

	url := "ws://" + srv.WSAddr().String() + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer ws.Close()

	readUntil := func(substr string) string {
		t.Helper()
		for {
			ws.SetReadDeadline(time.Now().Add(2 * time.Second))
			_, data, err := ws.ReadMessage()
			if err != nil {
				t.Fatalf("waiting for %q: %v", substr, err)
			}
			if strings.Contains(string(data), substr) {
				return string(data)
			}
		}
	}

	readUntil("Welcome to AsyncChat!")
	if err := ws.WriteMessage(websocket.TextMessage, []byte("/nick Webby")); err != nil {
		t.Fatalf("websocket write: %v", err)
	}
	readUntil("Webby joined the chat")

	// TCP and WebSocket clients share the same hub.
	tcp := dialTestClient(t, srv)
	tcp.expect("Welcome to AsyncChat!")
	tcp.sendLine("/nick Ana")
	tcp.expect("Ana joined the chat")
	readUntil("Ana joined the chat")

	tcp.sendLine("hello ws")
	readUntil("hello ws")
}
