// Package bot turns chat messages and button presses into session commands. It
// knows nothing about a particular chat platform.
package bot

import (
	"context"
	"strings"

	"github.com/nurjigit18/shipledger/internal/common/logtrace"
	"github.com/nurjigit18/shipledger/internal/shipbot/session"
)

// Conversations is the session manager as seen by the dispatcher.
type Conversations interface {
	Handle(ctx context.Context, ev session.Event) session.Prompt
	Session(userID string) (*session.Session, bool)
}

// Message is one inbound chat message.
type Message struct {
	// ID is the transport's message ID, used to spot redelivered messages.
	ID       string
	UserID   string
	Username string
	Text     string
	// Direct is set for private messages. Plain text outside a direct chat is
	// only answered while the user has a session.
	Direct bool
}

var startWords = map[string]bool{"ship": true, "save": true, "start": true, "new": true}

const (
	cancelWord = "cancel"
	helpWord   = "help"
)

// Dispatcher routes messages to the session manager.
type Dispatcher struct {
	conv   Conversations
	prefix string
}

func NewDispatcher(conv Conversations, prefix string) *Dispatcher {
	if prefix == "" {
		prefix = "!"
	}
	return &Dispatcher{conv: conv, prefix: prefix}
}

// HelpPrompt lists the text commands.
func (d *Dispatcher) HelpPrompt() session.Prompt {
	return session.StartPrompt(strings.Join([]string{
		"Shipment bot commands:",
		d.prefix + "ship  start a new shipment",
		d.prefix + "cancel  abandon the shipment in progress",
		d.prefix + "help  show this message",
	}, "\n"))
}

// OnMessage handles a chat message. The boolean is false when the message is not
// meant for the bot and must not be answered.
func (d *Dispatcher) OnMessage(ctx context.Context, msg Message) (session.Prompt, bool) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return session.Prompt{}, false
	}

	if word, ok := strings.CutPrefix(text, d.prefix); ok {
		fields := strings.Fields(word)
		if len(fields) == 0 {
			return session.Prompt{}, false
		}
		cmd := strings.ToLower(fields[0])
		switch {
		case startWords[cmd]:
			return d.handle(ctx, msg, session.StartShipment{}), true
		case cmd == cancelWord:
			return d.handle(ctx, msg, session.Cancel{}), true
		case cmd == helpWord:
			return d.HelpPrompt(), true
		}
		if !msg.Direct {
			return session.Prompt{}, false
		}
		logtrace.Logger(ctx).Debug().Str("user_id", msg.UserID).Str("command", cmd).Msg("unknown command")
		p := d.HelpPrompt()
		p.Text = "Unknown command " + d.prefix + cmd + ".\n\n" + p.Text
		return p, true
	}

	if _, live := d.conv.Session(msg.UserID); !live && !msg.Direct {
		return session.Prompt{}, false
	}
	p := d.handle(ctx, msg, session.TextInput{Text: text, MessageID: msg.ID})
	return p, !p.Empty()
}

// OnSelection handles a pressed menu option.
func (d *Dispatcher) OnSelection(ctx context.Context, userID, username string, sel session.MenuSelection) session.Prompt {
	if !sel.Action.Valid() {
		logtrace.Logger(ctx).Warn().Str("user_id", userID).Str("action", string(sel.Action)).Msg("unknown menu action")
		return session.ExpiredPrompt()
	}
	return d.conv.Handle(ctx, session.Event{UserID: userID, Username: username, Command: sel})
}

func (d *Dispatcher) handle(ctx context.Context, msg Message, cmd session.Command) session.Prompt {
	return d.conv.Handle(ctx, session.Event{UserID: msg.UserID, Username: msg.Username, Command: cmd})
}
