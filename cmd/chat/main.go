package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/jroimartin/gocui"
)

func main() {
	host := flag.String("host", "127.0.0.1", "server IP/host")
	port := flag.Int("port", 5555, "server TCP port")
	nick := flag.String("nick", "", "nickname (you can also set it later with /nick)")
	flag.Parse()

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERR] Cannot connect to %s -> %v\n", addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	if *nick != "" {
		fmt.Fprintf(conn, "/nick %s\n", *nick)
	}

	ui, err := newClientUI(conn, addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERR] %v\n", err)
		os.Exit(1)
	}
	defer ui.close()

	if err := ui.run(); err != nil && err != gocui.ErrQuit {
		fmt.Fprintf(os.Stderr, "[ERR] %v\n", err)
		os.Exit(1)
	}
}

type clientUI struct {
	gui  *gocui.Gui
	conn net.Conn
	addr string

	msgView    string
	inputView  string
	statusView string

	mu      sync.Mutex
	history []string
}

const maxHistory = 1000

func newClientUI(conn net.Conn, addr string) (*clientUI, error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, err
	}

	ui := &clientUI{
		gui:        g,
		conn:       conn,
		addr:       addr,
		msgView:    "messages",
		inputView:  "input",
		statusView: "status",
	}

	g.SetManagerFunc(ui.layout)
	if err := ui.keybindings(); err != nil {
		g.Close()
		return nil, err
	}
	return ui, nil
}

func (ui *clientUI) close() {
	ui.gui.Close()
}

func (ui *clientUI) run() error {
	go ui.receiveLoop()
	return ui.gui.MainLoop()
}

func (ui *clientUI) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	if v, err := g.SetView(ui.msgView, 0, 0, maxX-1, maxY-6); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Messages"
		v.Wrap = true
		v.Autoscroll = true
	}

	if v, err := g.SetView(ui.statusView, 0, maxY-5, maxX-1, maxY-3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Status"
		fmt.Fprintf(v, "Connected to %s | Enter: send | Ctrl-C: quit", ui.addr)
	}

	if v, err := g.SetView(ui.inputView, 0, maxY-2, maxX-1, maxY); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Input"
		v.Editable = true
		v.Wrap = true

		if _, err := g.SetCurrentView(ui.inputView); err != nil {
			return err
		}
	}

	return nil
}

func (ui *clientUI) keybindings() error {
	if err := ui.gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone,
		func(g *gocui.Gui, _ *gocui.View) error {
			fmt.Fprint(ui.conn, "/quit\n")
			return gocui.ErrQuit
		}); err != nil {
		return err
	}

	return ui.gui.SetKeybinding(ui.inputView, gocui.KeyEnter, gocui.ModNone, ui.sendInput)
}

func (ui *clientUI) sendInput(g *gocui.Gui, v *gocui.View) error {
	line := strings.TrimRight(v.Buffer(), "\n")
	v.Clear()
	if err := v.SetCursor(0, 0); err != nil {
		return err
	}
	if strings.TrimSpace(line) == "" {
		return nil
	}

	if _, err := fmt.Fprintf(ui.conn, "%s\n", line); err != nil {
		ui.appendLine("[ERR] send failed: " + err.Error())
		return gocui.ErrQuit
	}
	if strings.EqualFold(strings.TrimSpace(line), "/quit") {
		return gocui.ErrQuit
	}
	return nil
}

// receiveLoop copies server lines into the messages view until the
// connection closes.
func (ui *clientUI) receiveLoop() {
	scanner := bufio.NewScanner(ui.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
	for scanner.Scan() {
		ui.appendLine(scanner.Text())
	}
	ui.appendLine("[INFO] Server closed the connection")
}

// appendLine buffers the line and redraws; lines arriving before the first
// layout pass are kept until the messages view exists.
func (ui *clientUI) appendLine(line string) {
	ui.mu.Lock()
	ui.history = append(ui.history, line)
	if len(ui.history) > maxHistory {
		ui.history = ui.history[len(ui.history)-maxHistory:]
	}
	ui.mu.Unlock()

	ui.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(ui.msgView)
		if err != nil {
			return nil // not laid out yet; the backlog renders next time
		}
		v.Clear()
		ui.mu.Lock()
		for _, l := range ui.history {
			fmt.Fprintln(v, l)
		}
		ui.mu.Unlock()
		return nil
	})
}
