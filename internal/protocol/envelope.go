package protocol

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformed marks a request body that cannot be decoded. The handler
// answers these with R="2".
var ErrMalformed = errors.New("protocol: malformed")

// Response codes for the R attribute of reply headers.
const (
	RespOK        = 0
	RespInvalid   = 1
	RespMalformed = 2
)

// Channel names the two request channels of a session.
type Channel uint8

const (
	ChannelCommand Channel = iota
	ChannelListen
)

func (c Channel) String() string {
	if c == ChannelListen {
		return "L"
	}
	return "C"
}

// Envelope is the first tag of every request body: `<C CID="4" MN="2"/>`
// on the Command channel, `<L CID="4" MN="7"/>` on the Listen channel.
// CID and MN are echoed back verbatim on the reply header.
type Envelope struct {
	Channel Channel
	CID     string
	MN      string
	Try     bool
}

// ListenBody is the second tag of a Listen request.
type ListenBody struct {
	Ready bool
}

// ParseRequest splits a request body into its envelope line and the
// remainder. Bodies are line-oriented: envelope first, then one command
// tag (Command channel) or the LISTEN tag (Listen channel).
func ParseRequest(body string) (Envelope, string, error) {
	body = strings.TrimSpace(body)
	head := body
	rest := ""
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		head, rest = body[:i], strings.TrimSpace(body[i+1:])
	} else if i := strings.Index(body, "/>"); i >= 0 && i+2 < len(body) {
		// Tolerate both tags on a single line.
		head, rest = body[:i+2], strings.TrimSpace(body[i+2:])
	}
	env, err := parseEnvelope(head)
	if err != nil {
		return Envelope{}, "", err
	}
	return env, rest, nil
}

func parseEnvelope(line string) (Envelope, error) {
	name, attrs, err := parseTag(line)
	if err != nil {
		return Envelope{}, err
	}
	env := Envelope{CID: attrs["CID"], MN: attrs["MN"]}
	switch name {
	case "C":
		env.Channel = ChannelCommand
	case "L":
		env.Channel = ChannelListen
	default:
		return Envelope{}, fmt.Errorf("%w: envelope %q", ErrMalformed, name)
	}
	if env.CID == "" || env.MN == "" {
		return Envelope{}, fmt.Errorf("%w: envelope missing CID/MN", ErrMalformed)
	}
	if _, ok := attrs["TRY"]; ok {
		env.Try = attrs["TRY"] != "0"
	}
	return env, nil
}

// ParseListenBody decodes the `<LISTEN READY="0|1"/>` tag.
func ParseListenBody(body string) (ListenBody, error) {
	name, attrs, err := parseTag(strings.TrimSpace(body))
	if err != nil {
		return ListenBody{}, err
	}
	if name != "LISTEN" {
		return ListenBody{}, fmt.Errorf("%w: expected LISTEN, got %q", ErrMalformed, name)
	}
	return ListenBody{Ready: attrs["READY"] == "1"}, nil
}

// CommandResponse renders a Command-channel reply: the echoed header with
// the result code, plus an optional payload document on the next line.
func CommandResponse(env Envelope, code int, payload string) string {
	head := fmt.Sprintf(`<C CID="%s" MN="%s" R="%d"/>`, xmlEscape(env.CID), xmlEscape(env.MN), code)
	if payload == "" {
		return head
	}
	return head + "\n" + payload
}

// ListenResponse renders a Listen-channel reply: the echoed header, then
// the pushed document on the second line.
func ListenResponse(env Envelope, code int, doc string) string {
	head := fmt.Sprintf(`<L CID="%s" MN="%s" R="%d"/>`, xmlEscape(env.CID), xmlEscape(env.MN), code)
	if doc == "" {
		return head
	}
	return head + "\n" + doc
}

func xmlEscape(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return s
	}
	return b.String()
}

// parseTag decodes a single self-closing XML tag into its name and
// attribute map.
func parseTag(line string) (string, map[string]string, error) {
	dec := xml.NewDecoder(strings.NewReader(line))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", nil, fmt.Errorf("%w: empty tag", ErrMalformed)
		}
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		attrs := make(map[string]string, len(start.Attr))
		for _, a := range start.Attr {
			attrs[a.Name.Local] = a.Value
		}
		return start.Name.Local, attrs, nil
	}
}
