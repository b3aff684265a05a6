package session

// Command is one inbound user action. The set of implementations is closed.
type Command interface {
	isCommand()
}

// StartShipment begins a new session, replacing any session in progress.
type StartShipment struct{}

// TextInput is free text typed by the user. MessageID is the transport's ID of
// the message; a redelivered message carries the same ID and is ignored.
type TextInput struct {
	Text      string
	MessageID string
}

// MenuSelection is a pressed menu option. Seq echoes the Seq of the prompt that
// offered the option; zero skips the staleness check.
type MenuSelection struct {
	Action Action
	Arg    string
	Seq    uint64
}

// Cancel abandons the session in progress.
type Cancel struct{}

func (StartShipment) isCommand() {}
func (TextInput) isCommand()     {}
func (MenuSelection) isCommand() {}
func (Cancel) isCommand()        {}

// Action names a menu option.
type Action string

const (
	ActionStart           Action = "start"
	ActionSelectFactory   Action = "factory"
	ActionSelectWarehouse Action = "warehouse"
	ActionSetSize         Action = "size"
	ActionAddBag          Action = "bag.add"
	ActionPrevBag         Action = "bag.prev"
	ActionNextBag         Action = "bag.next"
	ActionAddColor        Action = "color.add"
	ActionFinishModel     Action = "model.finish"
	ActionAddModel        Action = "model.add"
	ActionFinish          Action = "finish"
	ActionCancel          Action = "cancel"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionStart, ActionSelectFactory, ActionSelectWarehouse, ActionSetSize,
		ActionAddBag, ActionPrevBag, ActionNextBag, ActionAddColor,
		ActionFinishModel, ActionAddModel, ActionFinish, ActionCancel:
		return true
	}
	return false
}

// Event is an inbound command with the identity of its sender.
type Event struct {
	UserID   string
	Username string
	Command  Command
}

// Option is one menu entry of a prompt.
type Option struct {
	Label  string
	Action Action
	Arg    string
	Seq    uint64
}

// Prompt is the outbound message: text and an optional menu.
type Prompt struct {
	Text    string
	Options []Option
}

// Empty reports whether p carries nothing to send.
func (p Prompt) Empty() bool {
	return p.Text == "" && len(p.Options) == 0
}

// Selection builds the command a press of o produces.
func (o Option) Selection() MenuSelection {
	return MenuSelection{Action: o.Action, Arg: o.Arg, Seq: o.Seq}
}
