package client

import "sort"

// SystemName is the sender shown for local and server notices.
const SystemName = "System"

// Line is one entry of a chat log.
type Line struct {
	Sender  string
	Target  string
	Text    string
	Private bool
}

// Conversation is the local view of the chat: the public log, one private
// log per counterpart and the roster. It is owned by the presentation layer
// and is not safe for concurrent use.
type Conversation struct {
	Self      string
	Public    []Line
	Private   map[string][]Line
	Roster    []string
	Connected bool
}

// NewConversation returns an empty view for the local user self.
func NewConversation(self string) *Conversation {
	return &Conversation{
		Self:    self,
		Private: make(map[string][]Line),
		Roster:  []string{self},
	}
}

// AppendSystem adds a local notice to the public log.
func (c *Conversation) AppendSystem(text string) {
	c.Public = append(c.Public, Line{Sender: SystemName, Text: text})
}

// Apply folds ev into the view.
func (c *Conversation) Apply(ev Event) {
	switch ev.Kind {
	case EventConnected:
		c.Connected = true
		if ev.Sender != "" {
			c.Self = ev.Sender
		}
		c.AppendSystem("Connected to chat server")
	case EventDisconnected:
		c.Connected = false
		c.AppendSystem(ev.Text)
		c.Roster = []string{c.Self}
	case EventPublicMessage:
		c.Public = append(c.Public, Line{Sender: ev.Sender, Text: ev.Text})
	case EventPrivateMessage:
		peer := ev.Sender
		if ev.Sender == c.Self {
			peer = ev.Target
		}
		c.Private[peer] = append(c.Private[peer], Line{
			Sender:  ev.Sender,
			Target:  ev.Target,
			Text:    ev.Text,
			Private: true,
		})
	case EventUserListUpdate:
		c.updateRoster(ev.Users)
	}
}

// ApplyAll applies events in order and returns how many there were.
func (c *Conversation) ApplyAll(events []Event) int {
	for _, ev := range events {
		c.Apply(ev)
	}
	return len(events)
}

// Peers returns the counterparts with a private log, sorted.
func (c *Conversation) Peers() []string {
	peers := make([]string, 0, len(c.Private))
	for peer := range c.Private {
		peers = append(peers, peer)
	}
	sort.Strings(peers)
	return peers
}

// updateRoster keeps the local user listed even when the server roster
// was truncated without it.
func (c *Conversation) updateRoster(users []string) {
	roster := make([]string, 0, len(users)+1)
	self := false
	for _, u := range users {
		if u == "" {
			continue
		}
		if u == c.Self {
			self = true
		}
		roster = append(roster, u)
	}
	if !self {
		roster = append(roster, c.Self)
	}
	c.Roster = roster
}
