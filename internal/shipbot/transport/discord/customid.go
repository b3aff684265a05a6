package discord

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nurjigit18/shipledger/internal/shipbot/session"
)

// Button custom IDs carry the menu selection: "sl|<seq>|<action>|<arg>".
const (
	customIDPrefix = "sl"
	customIDSep    = "|"
	maxCustomIDLen = 100
)

var ErrBadCustomID = errors.New("malformed button id")

// EncodeCustomID packs an option into a button custom ID.
func EncodeCustomID(o session.Option) string {
	id := strings.Join([]string{customIDPrefix, strconv.FormatUint(o.Seq, 10), string(o.Action), o.Arg}, customIDSep)
	if len(id) > maxCustomIDLen {
		id = id[:maxCustomIDLen]
	}
	return id
}

// DecodeCustomID unpacks a button custom ID. The arg may itself contain the
// separator.
func DecodeCustomID(id string) (session.MenuSelection, error) {
	parts := strings.SplitN(id, customIDSep, 4)
	if len(parts) != 4 || parts[0] != customIDPrefix {
		return session.MenuSelection{}, fmt.Errorf("%w: %q", ErrBadCustomID, id)
	}
	seq, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return session.MenuSelection{}, fmt.Errorf("%w: bad sequence in %q", ErrBadCustomID, id)
	}
	action := session.Action(parts[2])
	if !action.Valid() {
		return session.MenuSelection{}, fmt.Errorf("%w: unknown action %q", ErrBadCustomID, parts[2])
	}
	return session.MenuSelection{Action: action, Arg: parts[3], Seq: seq}, nil
}
