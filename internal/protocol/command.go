// Package protocol implements the legacy client's wire format: the
// one-tag channel envelopes, the typed inbound commands and the composite
// ROOT state document pushed over the Listen channel.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// CommandKind enumerates the inbound command tags.
type CommandKind uint8

const (
	KindUnknown CommandKind = iota
	KindLogin
	KindChangeWaitHall
	KindEnterRoom
	KindExternalData
	KindExitRoom
	KindCloseGame
	KindAddFriendlyRoom
	KindEnterFriendlyRoom
	KindStartFriendlyRoom
	KindReady
	KindSelect
	KindAnswer
	KindTip
)

var kindNames = map[CommandKind]string{
	KindLogin:             "LOGIN",
	KindChangeWaitHall:    "CHANGEWAITHALL",
	KindEnterRoom:         "ENTERROOM",
	KindExternalData:      "GETEXTDATA",
	KindExitRoom:          "EXITROOM",
	KindCloseGame:         "CLOSEGAME",
	KindAddFriendlyRoom:   "ADDSEPROOM",
	KindEnterFriendlyRoom: "ENTERSEPROOM",
	KindStartFriendlyRoom: "STARTSEPROOM",
	KindReady:             "READY",
	KindSelect:            "SELECT",
	KindAnswer:            "ANSWER",
	KindTip:               "TIP",
}

var kindsByName = func() map[string]CommandKind {
	m := make(map[string]CommandKind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

func (k CommandKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("KIND(%d)", uint8(k))
}

// Command is one decoded inbound command. Kind selects which fields are
// meaningful.
type Command struct {
	Kind CommandKind

	Name string // LOGIN
	Hall int    // CHANGEWAITHALL
	Room string // ENTERSEPROOM join code

	IDs []int // GETEXTDATA

	Area   int  // SELECT
	Answer int  // ANSWER
	Tip    int  // TIP
	Human  bool // TIP
}

// ParseCommand decodes a one-tag command body like `<SELECT AREA="3"/>`.
// Unknown tags and out-of-form attribute values are Malformed.
func ParseCommand(body string) (Command, error) {
	name, attrs, err := parseTag(strings.TrimSpace(body))
	if err != nil {
		return Command{}, err
	}
	kind, ok := kindsByName[name]
	if !ok {
		return Command{}, fmt.Errorf("%w: command %q", ErrMalformed, name)
	}

	cmd := Command{Kind: kind}
	switch kind {
	case KindLogin:
		cmd.Name = attrs["NAME"]
	case KindChangeWaitHall:
		if cmd.Hall, err = attrInt(attrs, "HALL"); err != nil {
			return Command{}, err
		}
	case KindEnterFriendlyRoom:
		cmd.Room = attrs["ROOM"]
	case KindExternalData:
		for _, part := range strings.Split(attrs["IDS"], ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.Atoi(part)
			if err != nil {
				return Command{}, fmt.Errorf("%w: GETEXTDATA id %q", ErrMalformed, part)
			}
			cmd.IDs = append(cmd.IDs, id)
		}
	case KindSelect:
		if cmd.Area, err = attrInt(attrs, "AREA"); err != nil {
			return Command{}, err
		}
	case KindAnswer:
		if cmd.Answer, err = attrInt(attrs, "ANSWER"); err != nil {
			return Command{}, err
		}
	case KindTip:
		if cmd.Tip, err = attrInt(attrs, "TIP"); err != nil {
			return Command{}, err
		}
		cmd.Human = attrs["HUMAN"] == "1"
	}
	return cmd, nil
}

func attrInt(attrs map[string]string, key string) (int, error) {
	raw, ok := attrs[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrMalformed, key)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrMalformed, key, raw)
	}
	return v, nil
}
