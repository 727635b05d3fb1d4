package session

import (
	"context"
	"sync"
	"time"

	"github.com/tgaller/triviador-server/internal/protocol"
	"github.com/tgaller/triviador-server/pkg/triviador"
)

// Session is one logged-in player: identity plus the two channel queues.
// It outlives matches; the lobby binds and unbinds it to seats.
type Session struct {
	ID     string
	UserID int64
	Name   string

	frames *FrameQueue
	cmds   *CommandQueue

	mu      sync.Mutex
	hall    int
	matchID string
	seat    int
}

// NewSession returns a logged-in session with open channel queues.
func NewSession(id string, userID int64, name string) *Session {
	return &Session{
		ID:     id,
		UserID: userID,
		Name:   name,
		frames: NewFrameQueue(),
		cmds:   NewCommandQueue(),
	}
}

// Frames returns the outbound queue served by Listen requests.
func (s *Session) Frames() *FrameQueue { return s.frames }

// Commands returns the inbound queue fed by Command requests.
func (s *Session) Commands() *CommandQueue { return s.cmds }

// Hall returns the wait hall the session sits in.
func (s *Session) Hall() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hall
}

// SetHall moves the session to a wait hall.
func (s *Session) SetHall(h int) {
	s.mu.Lock()
	s.hall = h
	s.mu.Unlock()
}

// Match returns the bound match id and seat, or "" and 0 outside a match.
func (s *Session) Match() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchID, s.seat
}

// BindMatch attaches the session to a seat of a running match.
func (s *Session) BindMatch(matchID string, seat int) {
	s.mu.Lock()
	s.matchID = matchID
	s.seat = seat
	s.mu.Unlock()
}

// ClearMatch detaches the session after a match ends.
func (s *Session) ClearMatch() {
	s.mu.Lock()
	s.matchID = ""
	s.seat = 0
	s.mu.Unlock()
}

// Close tears down both queues. Used on logout and server shutdown.
func (s *Session) Close() {
	s.frames.Close()
	s.cmds.Close()
}

// Prompt describes one expected reply: what kind, from which pool, and by
// when. Bots synthesize their reply from it; humans only consume the
// deadline.
type Prompt struct {
	Kind      triviador.HintKind
	Available triviador.Bitmap
	TipMax    int
	Deadline  time.Time
}

// Agent is a seat as the match engine sees it. Humans are backed by a
// Session's queues; bots synthesize replies on demand. The engine never
// distinguishes beyond Human, which gates whether prompts carry hints and
// whether the barrier waits.
type Agent interface {
	Seat() int
	Human() bool
	Name() string

	// Push enqueues one rendered frame for the seat.
	Push(doc string) error
	// AwaitReady blocks until the seat acknowledged a frame.
	AwaitReady(ctx context.Context) error
	// Recv returns the seat's reply to the prompt.
	Recv(ctx context.Context, p Prompt) (protocol.Command, error)
	// Drain drops stale inbound commands; called when a prompt frame is
	// pushed.
	Drain()
	// Close releases the seat at match teardown.
	Close()
}

// HumanSeat adapts a Session to the Agent interface.
type HumanSeat struct {
	seat int
	sess *Session
}

// NewHumanSeat binds a session to seat.
func NewHumanSeat(seat int, sess *Session) *HumanSeat {
	return &HumanSeat{seat: seat, sess: sess}
}

func (h *HumanSeat) Seat() int    { return h.seat }
func (h *HumanSeat) Human() bool  { return true }
func (h *HumanSeat) Name() string { return h.sess.Name }

func (h *HumanSeat) Push(doc string) error {
	return h.sess.Frames().Push(doc)
}

func (h *HumanSeat) AwaitReady(ctx context.Context) error {
	return h.sess.Commands().AwaitReady(ctx)
}

func (h *HumanSeat) Recv(ctx context.Context, p Prompt) (protocol.Command, error) {
	ctx, cancel := context.WithDeadline(ctx, p.Deadline)
	defer cancel()
	return h.sess.Commands().Recv(ctx)
}

func (h *HumanSeat) Drain() {
	h.sess.Commands().Drain()
}

// Close drops any reply still queued from the match. The session itself
// stays open for the lobby.
func (h *HumanSeat) Close() {
	h.sess.Commands().Drain()
}
