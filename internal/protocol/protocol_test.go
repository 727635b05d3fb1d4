package protocol

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tgaller/triviador-server/internal/model"
	"github.com/tgaller/triviador-server/pkg/triviador"
)

func TestParseRequestCommand(t *testing.T) {
	env, rest, err := ParseRequest("<C CID=\"12\" MN=\"3\"/>\n<SELECT AREA=\"5\"/>")
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if env.Channel != ChannelCommand || env.CID != "12" || env.MN != "3" || env.Try {
		t.Fatalf("envelope = %+v", env)
	}
	cmd, err := ParseCommand(rest)
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd.Kind != KindSelect || cmd.Area != 5 {
		t.Fatalf("command = %+v", cmd)
	}
}

func TestParseRequestListen(t *testing.T) {
	env, rest, err := ParseRequest(`<L CID="4" MN="7" TRY="1"/>` + "\n" + `<LISTEN READY="1"/>`)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if env.Channel != ChannelListen || !env.Try {
		t.Fatalf("envelope = %+v", env)
	}
	lb, err := ParseListenBody(rest)
	if err != nil {
		t.Fatalf("ParseListenBody: %v", err)
	}
	if !lb.Ready {
		t.Fatal("READY=1 not decoded")
	}
}

func TestParseRequestSingleLine(t *testing.T) {
	env, rest, err := ParseRequest(`<C CID="1" MN="1"/><READY/>`)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if env.CID != "1" {
		t.Fatalf("envelope = %+v", env)
	}
	cmd, err := ParseCommand(rest)
	if err != nil {
		t.Fatalf("ParseCommand: %v", err)
	}
	if cmd.Kind != KindReady {
		t.Fatalf("kind = %v", cmd.Kind)
	}
}

func TestParseRequestMalformed(t *testing.T) {
	bodies := []string{
		"",
		"not xml at all",
		`<X CID="1" MN="1"/>`,
		`<C MN="1"/>`,
		`<C CID="1"/>`,
	}
	for _, body := range bodies {
		if _, _, err := ParseRequest(body); !errors.Is(err, ErrMalformed) {
			t.Errorf("ParseRequest(%q) err = %v, want ErrMalformed", body, err)
		}
	}
}

func TestParseCommandKinds(t *testing.T) {
	tests := []struct {
		body string
		want Command
	}{
		{`<LOGIN NAME="alice"/>`, Command{Kind: KindLogin, Name: "alice"}},
		{`<CHANGEWAITHALL HALL="2"/>`, Command{Kind: KindChangeWaitHall, Hall: 2}},
		{`<ENTERROOM/>`, Command{Kind: KindEnterRoom}},
		{`<GETEXTDATA IDS="3,7"/>`, Command{Kind: KindExternalData, IDs: []int{3, 7}}},
		{`<EXITROOM/>`, Command{Kind: KindExitRoom}},
		{`<CLOSEGAME/>`, Command{Kind: KindCloseGame}},
		{`<ADDSEPROOM/>`, Command{Kind: KindAddFriendlyRoom}},
		{`<ENTERSEPROOM ROOM="X4J2"/>`, Command{Kind: KindEnterFriendlyRoom, Room: "X4J2"}},
		{`<STARTSEPROOM/>`, Command{Kind: KindStartFriendlyRoom}},
		{`<READY/>`, Command{Kind: KindReady}},
		{`<SELECT AREA="17"/>`, Command{Kind: KindSelect, Area: 17}},
		{`<ANSWER ANSWER="4"/>`, Command{Kind: KindAnswer, Answer: 4}},
		{`<TIP TIP="42" HUMAN="1"/>`, Command{Kind: KindTip, Tip: 42, Human: true}},
	}
	for _, tt := range tests {
		got, err := ParseCommand(tt.body)
		if err != nil {
			t.Errorf("ParseCommand(%q): %v", tt.body, err)
			continue
		}
		if got.Kind != tt.want.Kind || got.Name != tt.want.Name || got.Hall != tt.want.Hall ||
			got.Room != tt.want.Room || got.Area != tt.want.Area || got.Answer != tt.want.Answer ||
			got.Tip != tt.want.Tip || got.Human != tt.want.Human {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.body, got, tt.want)
		}
		if len(got.IDs) != len(tt.want.IDs) {
			t.Errorf("ParseCommand(%q) IDs = %v, want %v", tt.body, got.IDs, tt.want.IDs)
		}
	}
}

func TestParseCommandMalformed(t *testing.T) {
	bodies := []string{
		`<WHATISTHIS/>`,
		`<SELECT AREA="x"/>`,
		`<SELECT/>`,
		`<ANSWER/>`,
		`<TIP HUMAN="1"/>`,
		`<GETEXTDATA IDS="1,x"/>`,
	}
	for _, body := range bodies {
		if _, err := ParseCommand(body); !errors.Is(err, ErrMalformed) {
			t.Errorf("ParseCommand(%q) err = %v, want ErrMalformed", body, err)
		}
	}
}

func TestResponseHeaders(t *testing.T) {
	env := Envelope{Channel: ChannelCommand, CID: "12", MN: "3"}
	if got := CommandResponse(env, RespOK, ""); got != `<C CID="12" MN="3" R="0"/>` {
		t.Errorf("CommandResponse = %q", got)
	}
	if got := CommandResponse(env, RespMalformed, ""); got != `<C CID="12" MN="3" R="2"/>` {
		t.Errorf("CommandResponse = %q", got)
	}
	withPayload := CommandResponse(env, RespOK, `<LOGIN SESSION="tok" UID="1" NAME="a"></LOGIN>`)
	lines := strings.Split(withPayload, "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "<LOGIN") {
		t.Errorf("payload response = %q", withPayload)
	}

	lenv := Envelope{Channel: ChannelListen, CID: "4", MN: "9"}
	resp := ListenResponse(lenv, RespOK, `<ROOT></ROOT>`)
	lines = strings.Split(resp, "\n")
	if len(lines) != 2 {
		t.Fatalf("listen response = %q", resp)
	}
	if lines[0] != `<L CID="4" MN="9" R="0"/>` {
		t.Errorf("listen header = %q", lines[0])
	}
}

func TestEndDocumentRender(t *testing.T) {
	doc := &Document{End: EndElement(2, [3]int{2, 1, 3}, false)}
	out, err := doc.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := `<ROOT><END W="2" PL="2,1,3" AB="0"></END></ROOT>`
	if out != want {
		t.Errorf("Render = %q, want %q", out, want)
	}
}

func TestStateDocumentRoundTrip(t *testing.T) {
	st := triviador.NewState(triviador.HungaryMap(), triviador.DefaultScoring(), 0)
	st.EnterPhase(triviador.Phase{State: triviador.StateBase})
	st.Announce(triviador.Phase{State: triviador.StateBase}, triviador.AllCountries())
	if err := st.ApplyBaseSelection(1, triviador.Pest); err != nil {
		t.Fatalf("ApplyBaseSelection: %v", err)
	}
	snap := st.Snapshot()

	doc := &Document{State: StateElement(snap)}
	out, err := doc.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	back, err := ParseDocument(out)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if back.State == nil {
		t.Fatal("parsed document has no STATE")
	}
	if back.State.Scores != "1000,0,0" {
		t.Errorf("PTS = %q", back.State.Scores)
	}
	if back.State.Bases != triviador.PackBases(snap.Bases) {
		t.Errorf("B = %q", back.State.Bases)
	}
	if back.State.Areas != triviador.PackAreas(snap.Areas[:]) {
		t.Errorf("A = %q", back.State.Areas)
	}
	ph, err := triviador.ParsePhase(back.State.Phase)
	if err != nil {
		t.Fatalf("ParsePhase(%q): %v", back.State.Phase, err)
	}
	if ph != snap.Phase {
		t.Errorf("phase = %v, want %v", ph, snap.Phase)
	}
	avail, err := triviador.ParseBitmap(back.State.Available)
	if err != nil {
		t.Fatalf("ParseBitmap(%q): %v", back.State.Available, err)
	}
	if avail.Has(triviador.Pest) {
		t.Error("available still contains the chosen base")
	}
}

func TestHintElement(t *testing.T) {
	sel := HintElement(&triviador.CmdHint{
		Kind:      triviador.HintSelect,
		Available: triviador.NewBitmap(16, 17),
		Timeout:   90 * time.Second,
	})
	if sel.Cmd != "SELECT" || sel.Timeout != 90 || sel.Available != "008001" {
		t.Errorf("select hint = %+v", sel)
	}

	tip := HintElement(&triviador.CmdHint{Kind: triviador.HintTip, Timeout: 15 * time.Second, TipMax: 1000})
	if tip.Cmd != "TIP" || tip.TipMax != 1000 || tip.Available != "" {
		t.Errorf("tip hint = %+v", tip)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	doc := &Document{
		Question: QuestionElement(model.Question{
			Text:     "Melyik a legnagyobb?",
			Options:  [4]string{"a", "b", "c", "d"},
			Category: "geo",
		}),
		AnswerResult: AnswerResultElement(2, [3]int{2, 0, 4}),
		TipQuestion:  TipQuestionElement(model.TipQuestion{Text: "Hány?", Category: "hist", Max: 500}),
		TipInfo:      TipInfoElement([3]int{40, 50, 0}, [3]int{3000, 2000, 0}, [3]bool{true, true, false}),
		TipResult:    TipResultElement(42, 1, 2),
	}
	out, err := doc.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	back, err := ParseDocument(out)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if back.Question == nil || back.Question.Option3 != "c" {
		t.Errorf("question = %+v", back.Question)
	}
	if back.AnswerResult == nil || back.AnswerResult.Good != 2 || back.AnswerResult.Answers != "2,0,4" {
		t.Errorf("answer result = %+v", back.AnswerResult)
	}
	if back.TipInfo == nil || back.TipInfo.ElapsedMS != "3000,2000,0" || back.TipInfo.Participants != "1,1,0" {
		t.Errorf("tip info = %+v", back.TipInfo)
	}
	if back.TipResult == nil || back.TipResult.Truth != 42 || back.TipResult.Winner != 1 {
		t.Errorf("tip result = %+v", back.TipResult)
	}
}

func TestParseDocumentMalformed(t *testing.T) {
	if _, err := ParseDocument("<ROOT><STATE"); !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}
