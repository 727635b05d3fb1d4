package protocol

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/tgaller/triviador-server/internal/model"
	"github.com/tgaller/triviador-server/pkg/triviador"
)

// Document is one ROOT frame pushed over the Listen channel. Exactly which
// children are present depends on the phase; attribute order on the wire
// follows struct order.
type Document struct {
	XMLName      xml.Name        `xml:"ROOT"`
	State        *StateEl        `xml:"STATE"`
	Cmd          *CmdEl          `xml:"CMD"`
	Question     *QuestionEl     `xml:"QUESTION"`
	AnswerResult *AnswerResultEl `xml:"ANSWERRESULT"`
	TipQuestion  *TipQuestionEl  `xml:"TIPQUESTION"`
	TipInfo      *TipInfoEl      `xml:"TIPINFO"`
	TipResult    *TipResultEl    `xml:"TIPRESULT"`
	End          *EndEl          `xml:"END"`
	WaitHall     *WaitHallEl     `xml:"WAITHALL"`
	Room         *RoomEl         `xml:"SEPROOM"`
}

// StateEl mirrors the match state in packed wire form.
type StateEl struct {
	XMLName   xml.Name `xml:"STATE"`
	Map       string   `xml:"MAP,attr"`
	Phase     string   `xml:"ST,attr"`
	RoundInfo string   `xml:"RI,attr"`
	Connected string   `xml:"CP,attr"`
	Chat      string   `xml:"CHS,attr"`
	Scores    string   `xml:"PTS,attr"`
	Selection string   `xml:"SEL,attr"`
	Bases     string   `xml:"B,attr"`
	Areas     string   `xml:"A,attr"`
	Available string   `xml:"AA,attr"`
	Helps     string   `xml:"H,attr"`
	FillRound int      `xml:"FR,attr"`
	RoomType  int      `xml:"RT,attr"`
	Shield    int      `xml:"SM,attr"`
	WarOrder  string   `xml:"WO,attr"`
	Acting    int      `xml:"AS,attr"`
}

// CmdEl is the prompt hint pushed only to the seats expected to act.
type CmdEl struct {
	XMLName   xml.Name `xml:"CMD"`
	Cmd       string   `xml:"CMD,attr"`
	Available string   `xml:"AA,attr,omitempty"`
	Timeout   int      `xml:"TO,attr"`
	TipMax    int      `xml:"MAX,attr,omitempty"`
}

// QuestionEl carries a multiple-choice question. The correct index is
// never serialised before the reveal.
type QuestionEl struct {
	XMLName  xml.Name `xml:"QUESTION"`
	Text     string   `xml:"Q,attr"`
	Option1  string   `xml:"O1,attr"`
	Option2  string   `xml:"O2,attr"`
	Option3  string   `xml:"O3,attr"`
	Option4  string   `xml:"O4,attr"`
	Category string   `xml:"CAT,attr"`
}

// AnswerResultEl reveals the correct option and the answers given, one
// slot per seat (0 = no answer or not asked).
type AnswerResultEl struct {
	XMLName xml.Name `xml:"ANSWERRESULT"`
	Good    int      `xml:"GOOD,attr"`
	Answers string   `xml:"A,attr"`
}

// TipQuestionEl carries a numeric-tip question.
type TipQuestionEl struct {
	XMLName  xml.Name `xml:"TIPQUESTION"`
	Text     string   `xml:"Q,attr"`
	Category string   `xml:"CAT,attr"`
	Max      int      `xml:"MAX,attr"`
}

// TipInfoEl lists the tips given: values, elapsed milliseconds and a
// participation mask, one slot per seat.
type TipInfoEl struct {
	XMLName      xml.Name `xml:"TIPINFO"`
	Tips         string   `xml:"T,attr"`
	ElapsedMS    string   `xml:"MS,attr"`
	Participants string   `xml:"P,attr"`
}

// TipResultEl reveals the true value and the tip contest ordering.
type TipResultEl struct {
	XMLName xml.Name `xml:"TIPRESULT"`
	Truth   int      `xml:"GOOD,attr"`
	Winner  int      `xml:"W,attr"`
	Second  int      `xml:"S,attr"`
}

// EndEl closes a match: winner seat, place per seat and the abort flag.
type EndEl struct {
	XMLName xml.Name `xml:"END"`
	Winner  int      `xml:"W,attr"`
	Places  string   `xml:"PL,attr"`
	Aborted int      `xml:"AB,attr"`
}

// WaitHallEl is the lobby push after entering or changing a wait hall.
type WaitHallEl struct {
	XMLName xml.Name `xml:"WAITHALL"`
	ID      int      `xml:"ID,attr"`
	Users   string   `xml:"USERS,attr"`
}

// RoomEl is the friendly-room push: join code, host and current members.
type RoomEl struct {
	XMLName xml.Name `xml:"SEPROOM"`
	Code    string   `xml:"CODE,attr"`
	Host    string   `xml:"HOST,attr"`
	Users   string   `xml:"USERS,attr"`
}

// LoginEl is the Command-channel payload answering a LOGIN.
type LoginEl struct {
	XMLName xml.Name `xml:"LOGIN"`
	Session string   `xml:"SESSION,attr"`
	UserID  int64    `xml:"UID,attr"`
	Name    string   `xml:"NAME,attr"`
}

// ExtDataEl is the Command-channel payload answering a GETEXTDATA.
type ExtDataEl struct {
	XMLName xml.Name `xml:"EXTDATA"`
	IDs     string   `xml:"IDS,attr"`
	Names   string   `xml:"NAMES,attr"`
}

// StateElement converts a state snapshot into its wire element.
func StateElement(s *triviador.State) *StateEl {
	return &StateEl{
		Map:       s.MapName,
		Phase:     s.Phase.String(),
		RoundInfo: joinInts(s.Round.Mini, s.Round.Acting, s.Round.Attacked),
		Connected: joinBools(s.Connected),
		Chat:      joinBools(s.ChatOpen),
		Scores:    triviador.FormatScores(s.Scores),
		Selection: triviador.PackSelection(s.Selection),
		Bases:     triviador.PackBases(s.Bases),
		Areas:     triviador.PackAreas(s.Areas[:]),
		Available: s.Available.Hex(),
		Helps:     joinInts(s.UsedHelps[0], s.UsedHelps[1], s.UsedHelps[2]),
		FillRound: s.FillRound,
		RoomType:  s.RoomType,
		Shield:    s.ShieldMission,
		WarOrder:  joinInts(s.WarOrder...),
		Acting:    s.ActiveSeat,
	}
}

// HintElement converts a command hint into its wire element. The
// availability set travels only with SELECT hints.
func HintElement(h *triviador.CmdHint) *CmdEl {
	el := &CmdEl{
		Cmd:     h.Kind.String(),
		Timeout: int(h.Timeout.Seconds()),
		TipMax:  h.TipMax,
	}
	if h.Kind == triviador.HintSelect {
		el.Available = h.Available.Hex()
	}
	return el
}

// QuestionElement converts a question into its wire element, withholding
// the correct index.
func QuestionElement(q model.Question) *QuestionEl {
	return &QuestionEl{
		Text:     q.Text,
		Option1:  q.Options[0],
		Option2:  q.Options[1],
		Option3:  q.Options[2],
		Option4:  q.Options[3],
		Category: q.Category,
	}
}

// AnswerResultElement builds the reveal element from the correct index and
// the per-seat answers.
func AnswerResultElement(good int, answers [3]int) *AnswerResultEl {
	return &AnswerResultEl{
		Good:    good,
		Answers: joinInts(answers[0], answers[1], answers[2]),
	}
}

// TipQuestionElement converts a tip question into its wire element,
// withholding the answer.
func TipQuestionElement(q model.TipQuestion) *TipQuestionEl {
	return &TipQuestionEl{Text: q.Text, Category: q.Category, Max: q.Max}
}

// TipInfoElement builds the tip listing from per-seat tips, elapsed times
// and the participation mask.
func TipInfoElement(tips, elapsedMS [3]int, participated [3]bool) *TipInfoEl {
	return &TipInfoEl{
		Tips:         joinInts(tips[0], tips[1], tips[2]),
		ElapsedMS:    joinInts(elapsedMS[0], elapsedMS[1], elapsedMS[2]),
		Participants: joinBools(participated),
	}
}

// TipResultElement builds the tip-contest resolution element.
func TipResultElement(truth, winner, second int) *TipResultEl {
	return &TipResultEl{Truth: truth, Winner: winner, Second: second}
}

// EndElement builds the closing element. places holds the place of each
// seat; winner is 0 on abort.
func EndElement(winner int, places [3]int, aborted bool) *EndEl {
	el := &EndEl{Winner: winner, Places: joinInts(places[0], places[1], places[2])}
	if aborted {
		el.Aborted = 1
	}
	return el
}

// Render serialises the document as a single ROOT line.
func (d *Document) Render() (string, error) {
	out, err := xml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("protocol: render document: %w", err)
	}
	return string(out), nil
}

// RenderElement serialises a standalone Command-channel payload element
// such as LoginEl or ExtDataEl.
func RenderElement(el any) (string, error) {
	out, err := xml.Marshal(el)
	if err != nil {
		return "", fmt.Errorf("protocol: render element: %w", err)
	}
	return string(out), nil
}

// ParseDocument decodes a ROOT line back into a document.
func ParseDocument(s string) (*Document, error) {
	var d Document
	if err := xml.Unmarshal([]byte(s), &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &d, nil
}

func joinInts(vs ...int) string {
	if len(vs) == 0 {
		return ""
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func joinBools(vs [3]bool) string {
	var sb strings.Builder
	for i, v := range vs {
		if i > 0 {
			sb.WriteByte(',')
		}
		if v {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
