// Command chatclient is a terminal client for the binary chat server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jroimartin/gocui"

	"binchat/internal"
	"binchat/internal/client"
)

var (
	host     = flag.String("host", "127.0.0.1", "Server address")
	port     = flag.String("port", internal.DefaultPort, "Server port")
	name     = flag.String("name", "", "Username, at most 31 bytes")
	wsURL    = flag.String("ws", "", "Connect through the WebSocket gateway, e.g. ws://host:8080/ws")
	pollRate = flag.Duration("poll", 50*time.Millisecond, "How often new events are drawn")
)

var (
	selfColor    = color.New(color.FgCyan).SprintFunc()
	peerColor    = color.New(color.FgHiWhite).SprintFunc()
	systemColor  = color.New(color.FgYellow).SprintFunc()
	privateColor = color.New(color.FgHiMagenta).SprintFunc()
	errorColor   = color.New(color.FgRed).SprintFunc()
)

const (
	msgView    = "messages"
	userView   = "users"
	statusView = "status"
	inputView  = "input"
)

type chatUI struct {
	gui    *gocui.Gui
	client *client.Client
	conv   *client.Conversation
	stop   chan struct{}
}

func main() {
	flag.Parse()
	if *name == "" {
		log.Fatal("-name is required")
	}
	portNum, err := strconv.Atoi(*port)
	if err != nil {
		log.Fatalf("invalid port %q", *port)
	}

	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		log.Fatal(err)
	}
	defer g.Close()

	ui := &chatUI{
		gui:  g,
		conv: client.NewConversation(*name),
		stop: make(chan struct{}),
	}
	ui.client = client.New(client.WithNotifier(client.NotifierFunc(ui.flash)))

	g.SetManagerFunc(ui.layout)
	if err := ui.keybindings(); err != nil {
		log.Fatal(err)
	}

	if *wsURL != "" {
		err = ui.client.ConnectURL(*wsURL, *name)
	} else {
		err = ui.client.Connect(*host, portNum, *name)
	}
	if err != nil {
		ui.conv.AppendSystem("Connection failed")
		ui.conv.AppendSystem(err.Error())
	}

	go ui.poll()
	err = g.MainLoop()
	close(ui.stop)
	ui.client.Disconnect()
	if err != nil && err != gocui.ErrQuit {
		log.Fatal(err)
	}
}

func (ui *chatUI) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	sidebarWidth := 20
	msgWidth := maxX - sidebarWidth - 1
	msgHeight := maxY - 5

	if v, err := g.SetView(msgView, 0, 0, msgWidth, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Messages"
		v.Wrap = true
		v.Autoscroll = true
	}

	if v, err := g.SetView(userView, msgWidth+1, 0, maxX-1, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Online Users"
	}

	if v, err := g.SetView(statusView, 0, msgHeight+1, maxX-1, msgHeight+3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Status"
	}

	if v, err := g.SetView(inputView, 0, msgHeight+3, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Input (/msg <user> <text>, /quit)"
		v.Editable = true
		v.Wrap = true
		if _, err := g.SetCurrentView(inputView); err != nil {
			return err
		}
	}
	return nil
}

// poll drains the event queue on the UI goroutine at a fixed rate.
func (ui *chatUI) poll() {
	ticker := time.NewTicker(*pollRate)
	defer ticker.Stop()
	ui.gui.Update(ui.redraw)
	for {
		select {
		case <-ui.stop:
			return
		case <-ticker.C:
			if ui.client.Events.Len() > 0 {
				ui.gui.Update(ui.redraw)
			}
		}
	}
}

func (ui *chatUI) redraw(g *gocui.Gui) error {
	// not laid out yet, events stay queued for the next tick
	if _, err := g.View(inputView); err != nil {
		return nil
	}
	ui.conv.ApplyAll(ui.client.Events.Drain())

	v, err := g.View(msgView)
	if err != nil {
		return err
	}
	v.Clear()
	for _, line := range ui.timeline() {
		fmt.Fprintln(v, ui.render(line))
	}

	users, err := g.View(userView)
	if err != nil {
		return err
	}
	users.Clear()
	for _, u := range ui.conv.Roster {
		if u == ui.conv.Self {
			u = selfColor(u)
		}
		fmt.Fprintln(users, u)
	}

	state := "offline"
	if ui.conv.Connected {
		state = "online"
	}
	return ui.setStatus(g, fmt.Sprintf("%s as %s | %d users", state, ui.conv.Self, len(ui.conv.Roster)))
}

// timeline is the public log followed by every private conversation.
func (ui *chatUI) timeline() []client.Line {
	lines := append([]client.Line(nil), ui.conv.Public...)
	for _, peer := range ui.conv.Peers() {
		lines = append(lines, ui.conv.Private[peer]...)
	}
	return lines
}

func (ui *chatUI) render(l client.Line) string {
	switch {
	case l.Private && l.Sender == ui.conv.Self:
		return privateColor(fmt.Sprintf("[to %s] %s", l.Target, l.Text))
	case l.Private:
		return privateColor(fmt.Sprintf("[from %s] %s", l.Sender, l.Text))
	case l.Sender == client.SystemName:
		return systemColor("* " + l.Text)
	case l.Sender == ui.conv.Self:
		return selfColor(l.Sender) + ": " + l.Text
	default:
		return peerColor(l.Sender) + ": " + l.Text
	}
}

func (ui *chatUI) setStatus(g *gocui.Gui, text string) error {
	v, err := g.View(statusView)
	if err != nil {
		return nil
	}
	v.Clear()
	fmt.Fprint(v, text)
	return nil
}

// flash is the client notifier. It briefly highlights the status bar.
func (ui *chatUI) flash(ctx context.Context, ev client.Event) {
	var text string
	switch ev.Kind {
	case client.EventPrivateMessage:
		text = privateColor("New private message from " + ev.Sender)
	case client.EventPublicMessage:
		text = systemColor("New message from " + ev.Sender)
	default:
		return
	}
	ui.gui.Update(func(g *gocui.Gui) error { return ui.setStatus(g, text) })

	select {
	case <-ctx.Done():
	case <-ui.stop:
	case <-time.After(2 * time.Second):
		ui.gui.Update(ui.redraw)
	}
}

func (ui *chatUI) keybindings() error {
	if err := ui.gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone,
		func(*gocui.Gui, *gocui.View) error { return gocui.ErrQuit }); err != nil {
		return err
	}
	return ui.gui.SetKeybinding(inputView, gocui.KeyEnter, gocui.ModNone, ui.handleInput)
}

func (ui *chatUI) handleInput(g *gocui.Gui, v *gocui.View) error {
	input := strings.TrimSpace(v.Buffer())
	v.Clear()
	v.SetCursor(0, 0)
	if input == "" {
		return nil
	}

	var err error
	switch {
	case input == "/quit":
		return gocui.ErrQuit
	case strings.HasPrefix(input, "/msg "):
		target, text, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(input, "/msg ")), " ")
		if !ok || strings.TrimSpace(text) == "" {
			return ui.setStatus(g, errorColor("usage: /msg <user> <text>"))
		}
		err = ui.client.SendPrivate(target, strings.TrimSpace(text))
	case strings.HasPrefix(input, "/"):
		return ui.setStatus(g, errorColor("Unknown command: "+input))
	default:
		err = ui.client.SendPublic(input)
	}
	if err != nil {
		return ui.setStatus(g, errorColor(err.Error()))
	}
	return ui.redraw(g)
}
