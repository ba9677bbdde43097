// ui.go
package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/jroimartin/gocui"

	"binchat/internal"
)

var (
	joinColor     = color.New(color.FgGreen).SprintFunc()
	leaveColor    = color.New(color.FgYellow).SprintFunc()
	announceColor = color.New(color.FgHiMagenta).SprintFunc()
	errorColor    = color.New(color.FgRed).SprintFunc()
)

// MonitorUI shows server activity and the roster, and sends announcements.
type MonitorUI struct {
	gui        *gocui.Gui
	server     *internal.Server
	msgView    string
	inputView  string
	statusView string
	userView   string
	helpView   string
	showHelp   bool
}

func NewMonitorUI(server *internal.Server) (*MonitorUI, error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, err
	}

	ui := &MonitorUI{
		gui:        g,
		server:     server,
		msgView:    "messages",
		inputView:  "input",
		statusView: "status",
		userView:   "users",
		helpView:   "help",
	}

	g.SetManagerFunc(ui.layout)
	return ui, nil
}

// runMonitor blocks until the monitor is closed.
func runMonitor(server *internal.Server) error {
	ui, err := NewMonitorUI(server)
	if err != nil {
		return err
	}
	defer ui.Close()

	server.OnActivity(ui.appendActivity)
	return ui.Run()
}

func (ui *MonitorUI) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()

	sidebarWidth := 20
	msgWidth := maxX - sidebarWidth - 1
	msgHeight := maxY - 5

	// Activity view
	if v, err := g.SetView(ui.msgView, 0, 0, msgWidth, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Activity"
		v.Wrap = true
		v.Autoscroll = true
	}

	// Users view
	if v, err := g.SetView(ui.userView, msgWidth+1, 0, maxX-1, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Online Users"
		v.Wrap = true
		ui.updateUsers()
	}

	// Status bar
	if v, err := g.SetView(ui.statusView, 0, msgHeight+1, maxX-1, msgHeight+3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Status"
		v.Wrap = true
		ui.updateStatus()
	}

	// Input field
	if v, err := g.SetView(ui.inputView, 0, msgHeight+3, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Announce"
		v.Editable = true
		v.Wrap = true

		if _, err := g.SetCurrentView(ui.inputView); err != nil {
			return err
		}
	}

	if !ui.showHelp {
		if err := g.DeleteView(ui.helpView); err != nil && err != gocui.ErrUnknownView {
			return err
		}
		return nil
	}

	if v, err := g.SetView(ui.helpView, maxX/6, maxY/6, maxX*5/6, maxY*5/6); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Help"
		fmt.Fprintln(v, `Commands:
/help           - Show this help
/users          - Refresh the user list
/quit           - Stop the server

Anything else is sent to every user as a System message.

Keybindings:
Ctrl-C          - Stop the server
Ctrl-H          - Toggle help
Enter           - Send announcement`)
	}
	return nil
}

// appendActivity is the server activity hook. It may run on any goroutine.
// Lines logged before the first layout are dropped.
func (ui *MonitorUI) appendActivity(line string) {
	switch {
	case strings.Contains(line, "] User joined: "):
		line = joinColor(line)
	case strings.Contains(line, "] User left: "):
		line = leaveColor(line)
	case strings.Contains(line, "] Announcement: "):
		line = announceColor(line)
	}

	ui.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(ui.msgView)
		if err != nil {
			return nil
		}
		fmt.Fprintln(v, line)
		return nil
	})
	ui.updateUsers()
	ui.updateStatus()
}

func (ui *MonitorUI) updateUsers() {
	users := ui.server.Registry().Roster()
	ui.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(ui.userView)
		if err != nil {
			return nil
		}
		v.Clear()
		for _, name := range users {
			fmt.Fprintln(v, name)
		}
		return nil
	})
}

func (ui *MonitorUI) updateStatus() {
	status := fmt.Sprintf("Listening on %s | Users: %d | Ctrl-H: Help",
		ui.server.Addr(), ui.server.Registry().Len())
	ui.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(ui.statusView)
		if err != nil {
			return nil
		}
		v.Clear()
		fmt.Fprint(v, status)
		return nil
	})
}

func (ui *MonitorUI) keybindings() error {
	// Quit
	if err := ui.gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone,
		func(g *gocui.Gui, _ *gocui.View) error {
			return gocui.ErrQuit
		}); err != nil {
		return err
	}

	// Toggle help
	if err := ui.gui.SetKeybinding("", gocui.KeyCtrlH, gocui.ModNone,
		func(_ *gocui.Gui, _ *gocui.View) error {
			ui.showHelp = !ui.showHelp
			return nil
		}); err != nil {
		return err
	}

	// Send announcement
	return ui.gui.SetKeybinding(ui.inputView, gocui.KeyEnter, gocui.ModNone, ui.handleInput)
}

func (ui *MonitorUI) handleInput(_ *gocui.Gui, v *gocui.View) error {
	input := strings.TrimSpace(v.Buffer())
	v.Clear()
	v.SetCursor(0, 0)
	if input == "" {
		return nil
	}

	switch input {
	case "/quit":
		return gocui.ErrQuit
	case "/help":
		ui.showHelp = !ui.showHelp
	case "/users":
		ui.updateUsers()
		ui.updateStatus()
	default:
		if strings.HasPrefix(input, "/") {
			ui.gui.Update(func(g *gocui.Gui) error {
				mv, err := g.View(ui.msgView)
				if err != nil {
					return nil
				}
				fmt.Fprintln(mv, errorColor("Unknown command: "+input))
				return nil
			})
			return nil
		}
		ui.server.Announce(input)
	}
	return nil
}

func (ui *MonitorUI) Run() error {
	if err := ui.keybindings(); err != nil {
		return err
	}

	if err := ui.gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}

	return nil
}

func (ui *MonitorUI) Close() {
	ui.gui.Close()
}
