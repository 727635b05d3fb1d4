package handler

import (
	"context"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/tgaller/triviador-server/internal/auth"
	"github.com/tgaller/triviador-server/internal/engine"
	"github.com/tgaller/triviador-server/internal/protocol"
	"github.com/tgaller/triviador-server/internal/service"
	"github.com/tgaller/triviador-server/pkg/triviador"
)

func newGameTest(t *testing.T) (*GameHandler, *service.Lobby) {
	t.Helper()
	cfg := service.Config{
		Engine: engine.Config{
			SelectTimeout:  5 * time.Millisecond,
			AnswerTimeout:  5 * time.Millisecond,
			TipTimeout:     5 * time.Millisecond,
			BarrierTimeout: 2 * time.Second,
		},
		MatchWait:   20 * time.Millisecond,
		BotThinkMin: time.Millisecond,
		BotThinkMax: 2 * time.Millisecond,
	}
	l := service.NewLobby(service.Options{
		Config: cfg,
		Dice:   triviador.NewDice(11),
		JWT:    auth.NewJWTManager("handler-test-secret"),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := l.Shutdown(ctx); err != nil {
			t.Errorf("lobby shutdown: %v", err)
		}
	})
	return NewGameHandler(l, 200*time.Millisecond), l
}

func postGame(t *testing.T, h *GameHandler, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	target := "/game"
	if token != "" {
		target += "?session=" + url.QueryEscape(token)
	}
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeGame(rec, req)
	return rec
}

// respLines splits a reply into its header and optional payload line.
func respLines(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	parts := strings.SplitN(strings.TrimSpace(rec.Body.String()), "\n", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func loginPlayer(t *testing.T, h *GameHandler, name string) protocol.LoginEl {
	t.Helper()
	rec := postGame(t, h, "", `<C CID="1" MN="1"/>`+"\n"+`<LOGIN NAME="`+name+`"/>`)
	head, payload := respLines(t, rec)
	if !strings.Contains(head, `R="0"`) {
		t.Fatalf("login rejected: %s", head)
	}
	var el protocol.LoginEl
	if err := xml.Unmarshal([]byte(payload), &el); err != nil {
		t.Fatalf("login payload: %v (%s)", err, payload)
	}
	return el
}

func handlerWaitFor(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestLoginReturnsSessionPayload(t *testing.T) {
	h, l := newGameTest(t)

	el := loginPlayer(t, h, "Anna")
	if el.Session == "" {
		t.Fatal("expected a session token")
	}
	if el.Name != "Anna" {
		t.Errorf("expected name Anna, got %s", el.Name)
	}
	if el.UserID != 1 {
		t.Errorf("expected first user id 1, got %d", el.UserID)
	}
	if _, err := l.Resolve(el.Session); err != nil {
		t.Errorf("token does not resolve: %v", err)
	}
}

func TestCommandWithoutSessionRejected(t *testing.T) {
	h, _ := newGameTest(t)

	rec := postGame(t, h, "", `<C CID="2" MN="1"/>`+"\n"+`<CHANGEWAITHALL HALL="2"/>`)
	head, payload := respLines(t, rec)
	if head != `<C CID="2" MN="1" R="1"/>` {
		t.Errorf("unexpected header: %s", head)
	}
	if payload != "" {
		t.Errorf("unexpected payload: %s", payload)
	}
}

func TestMalformedRequests(t *testing.T) {
	h, _ := newGameTest(t)
	el := loginPlayer(t, h, "Anna")

	cases := []struct {
		name string
		body string
	}{
		{"garbage", "not a tag at all"},
		{"bad envelope tag", `<X CID="1" MN="1"/>`},
		{"envelope missing MN", `<C CID="1"/>` + "\n" + `<READY/>`},
		{"unknown command", `<C CID="1" MN="2"/>` + "\n" + `<BOGUS/>`},
		{"bad attribute", `<C CID="1" MN="2"/>` + "\n" + `<SELECT AREA="x"/>`},
		{"bad listen body", `<L CID="1" MN="2"/>` + "\n" + `<NOTLISTEN/>`},
	}
	for _, tc := range cases {
		rec := postGame(t, h, el.Session, tc.body)
		head, _ := respLines(t, rec)
		if !strings.Contains(head, `R="2"`) {
			t.Errorf("%s: expected R=2, got %s", tc.name, head)
		}
	}
}

func TestOversizeBodyRejected(t *testing.T) {
	h, _ := newGameTest(t)

	body := `<C CID="1" MN="1"/>` + "\n<LOGIN NAME=\"" + strings.Repeat("a", maxBodyBytes) + "\"/>"
	rec := postGame(t, h, "", body)
	head, _ := respLines(t, rec)
	if !strings.Contains(head, `R="2"`) {
		t.Errorf("expected R=2 for oversize body, got %s", head)
	}
}

func TestListenDeliversFramesInOrder(t *testing.T) {
	h, l := newGameTest(t)
	el := loginPlayer(t, h, "Anna")
	sess, err := l.Resolve(el.Session)
	if err != nil {
		t.Fatal(err)
	}

	// The login hall roster is the first frame.
	rec := postGame(t, h, el.Session, `<L CID="1" MN="1"/>`+"\n"+`<LISTEN READY="0"/>`)
	head, payload := respLines(t, rec)
	if head != `<L CID="1" MN="1" R="0"/>` {
		t.Fatalf("unexpected listen header: %s", head)
	}
	if !strings.Contains(payload, "<WAITHALL") {
		t.Fatalf("expected the hall roster, got %s", payload)
	}

	// Two frames pushed before any poll come back in push order.
	docA := `<ROOT><WAITHALL ID="7" USERS="A"></WAITHALL></ROOT>`
	docB := `<ROOT><WAITHALL ID="8" USERS="B"></WAITHALL></ROOT>`
	if err := sess.Frames().Push(docA); err != nil {
		t.Fatal(err)
	}
	if err := sess.Frames().Push(docB); err != nil {
		t.Fatal(err)
	}
	polls := []struct{ mn, want string }{{"2", docA}, {"3", docB}}
	for _, p := range polls {
		rec := postGame(t, h, el.Session, `<L CID="1" MN="`+p.mn+`"/>`+"\n"+`<LISTEN READY="1"/>`)
		head, payload := respLines(t, rec)
		if head != `<L CID="1" MN="`+p.mn+`" R="0"/>` {
			t.Fatalf("poll %s: unexpected header %s", p.mn, head)
		}
		if payload != p.want {
			t.Errorf("poll %s: expected %s, got %s", p.mn, p.want, payload)
		}
	}
}

func TestListenEmptyRepoll(t *testing.T) {
	h, l := newGameTest(t)
	el := loginPlayer(t, h, "Anna")
	if _, err := l.Resolve(el.Session); err != nil {
		t.Fatal(err)
	}

	// Consume the login roster so the queue is empty.
	postGame(t, h, el.Session, `<L CID="1" MN="1"/>`+"\n"+`<LISTEN READY="0"/>`)

	short := NewGameHandler(l, 30*time.Millisecond)
	start := time.Now()
	rec := postGame(t, short, el.Session, `<L CID="1" MN="2"/>`+"\n"+`<LISTEN READY="0"/>`)
	if elapsed := time.Since(start); elapsed < 25*time.Millisecond {
		t.Errorf("listen returned before the poll window: %s", elapsed)
	}
	head, payload := respLines(t, rec)
	if head != `<L CID="1" MN="2" R="0"/>` {
		t.Errorf("unexpected header: %s", head)
	}
	if payload != "" {
		t.Errorf("expected an empty re-poll, got %s", payload)
	}
}

func TestListenReadyAcknowledges(t *testing.T) {
	h, l := newGameTest(t)
	el := loginPlayer(t, h, "Anna")
	sess, err := l.Resolve(el.Session)
	if err != nil {
		t.Fatal(err)
	}

	postGame(t, h, el.Session, `<L CID="1" MN="1"/>`+"\n"+`<LISTEN READY="1"/>`)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := sess.Commands().AwaitReady(ctx); err != nil {
		t.Errorf("expected the listen body to signal ready: %v", err)
	}
}

func TestListenRejectsUnknownSession(t *testing.T) {
	h, _ := newGameTest(t)

	rec := postGame(t, h, "garbage-token", `<L CID="1" MN="1"/>`+"\n"+`<LISTEN READY="0"/>`)
	head, _ := respLines(t, rec)
	if head != `<L CID="1" MN="1" R="1"/>` {
		t.Errorf("unexpected header: %s", head)
	}
}

func TestHallAndExternalData(t *testing.T) {
	h, _ := newGameTest(t)
	el := loginPlayer(t, h, "Anna")

	rec := postGame(t, h, el.Session, `<C CID="3" MN="1"/>`+"\n"+`<CHANGEWAITHALL HALL="2"/>`)
	head, _ := respLines(t, rec)
	if head != `<C CID="3" MN="1" R="0"/>` {
		t.Errorf("unexpected hall change reply: %s", head)
	}

	rec = postGame(t, h, el.Session, `<C CID="3" MN="2"/>`+"\n"+`<CHANGEWAITHALL HALL="0"/>`)
	head, _ = respLines(t, rec)
	if !strings.Contains(head, `R="1"`) {
		t.Errorf("expected R=1 for hall 0, got %s", head)
	}

	rec = postGame(t, h, el.Session, `<C CID="3" MN="3"/>`+"\n"+`<GETEXTDATA IDS="1,99"/>`)
	head, payload := respLines(t, rec)
	if !strings.Contains(head, `R="0"`) {
		t.Fatalf("unexpected extdata reply: %s", head)
	}
	var ext protocol.ExtDataEl
	if err := xml.Unmarshal([]byte(payload), &ext); err != nil {
		t.Fatalf("extdata payload: %v (%s)", err, payload)
	}
	if ext.IDs != "1,99" {
		t.Errorf("expected ids 1,99, got %s", ext.IDs)
	}
	if ext.Names != "Anna,?" {
		t.Errorf("expected names Anna,?, got %s", ext.Names)
	}
}

func TestMatchCommandRouting(t *testing.T) {
	h, l := newGameTest(t)
	el := loginPlayer(t, h, "Anna")
	sess, err := l.Resolve(el.Session)
	if err != nil {
		t.Fatal(err)
	}

	// Action commands outside a match are invalid.
	rec := postGame(t, h, el.Session, `<C CID="4" MN="1"/>`+"\n"+`<READY/>`)
	head, _ := respLines(t, rec)
	if !strings.Contains(head, `R="1"`) {
		t.Errorf("expected R=1 outside a match, got %s", head)
	}

	rec = postGame(t, h, el.Session, `<C CID="4" MN="2"/>`+"\n"+`<ENTERROOM/>`)
	head, _ = respLines(t, rec)
	if !strings.Contains(head, `R="0"`) {
		t.Fatalf("enter room failed: %s", head)
	}
	handlerWaitFor(t, 2*time.Second, "match start", func() bool {
		_, _, ok := l.MatchOf(sess)
		return ok
	})

	// Before any READY the engine sits at the opening barrier with no
	// prompt outstanding: a SELECT is flagged, not dropped.
	rec = postGame(t, h, el.Session, `<C CID="4" MN="3"/>`+"\n"+`<SELECT AREA="1"/>`)
	head, _ = respLines(t, rec)
	if head != `<C CID="4" MN="3" R="1"/>` {
		t.Errorf("expected R=1 for an unprompted select, got %s", head)
	}

	// READY is always legal in a match.
	rec = postGame(t, h, el.Session, `<C CID="4" MN="4"/>`+"\n"+`<READY/>`)
	head, _ = respLines(t, rec)
	if head != `<C CID="4" MN="4" R="0"/>` {
		t.Errorf("unexpected ready reply: %s", head)
	}
}

func TestCloseGameInvalidatesSession(t *testing.T) {
	h, _ := newGameTest(t)
	el := loginPlayer(t, h, "Anna")

	rec := postGame(t, h, el.Session, `<C CID="5" MN="1"/>`+"\n"+`<CLOSEGAME/>`)
	head, _ := respLines(t, rec)
	if head != `<C CID="5" MN="1" R="0"/>` {
		t.Fatalf("close failed: %s", head)
	}

	rec = postGame(t, h, el.Session, `<C CID="5" MN="2"/>`+"\n"+`<CHANGEWAITHALL HALL="2"/>`)
	head, _ = respLines(t, rec)
	if !strings.Contains(head, `R="1"`) {
		t.Errorf("expected the closed session rejected, got %s", head)
	}
}
