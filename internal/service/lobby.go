// Package service implements the lobby: logged-in sessions, wait halls,
// the ranked queue, friendly rooms and the registry of running matches.
// Everything inside a match belongs to the engine; the lobby seats
// players, launches orchestrators and cleans up after them.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tgaller/triviador-server/internal/auth"
	"github.com/tgaller/triviador-server/internal/bot"
	"github.com/tgaller/triviador-server/internal/engine"
	"github.com/tgaller/triviador-server/internal/metrics"
	"github.com/tgaller/triviador-server/internal/model"
	"github.com/tgaller/triviador-server/internal/protocol"
	"github.com/tgaller/triviador-server/internal/question"
	"github.com/tgaller/triviador-server/internal/repository"
	"github.com/tgaller/triviador-server/internal/session"
	"github.com/tgaller/triviador-server/pkg/triviador"
)

var (
	ErrNoSession     = errors.New("session not found")
	ErrNoSuchHall    = errors.New("no such wait hall")
	ErrAlreadyQueued = errors.New("already queued for a match")
	ErrInMatch       = errors.New("session is in a running match")
	ErrInRoom        = errors.New("session is already in a room")
	ErrNoSuchRoom    = errors.New("no such room")
	ErrRoomFull      = errors.New("room already has 3 players")
	ErrNotHost       = errors.New("only the room host can start")
)

// Config holds the lobby tunables. Tests compress every duration.
type Config struct {
	Engine      engine.Config
	MatchWait   time.Duration
	BotThinkMin time.Duration
	BotThinkMax time.Duration
}

// DefaultConfig returns the production lobby timings.
func DefaultConfig() Config {
	return Config{
		Engine:      engine.DefaultConfig(),
		MatchWait:   15 * time.Second,
		BotThinkMin: 800 * time.Millisecond,
		BotThinkMax: 4 * time.Second,
	}
}

// Options wires the lobby's collaborators. Archive, Projection and
// Broadcaster may be nil; the lobby then runs storage-free, which is how
// the simulator and most tests use it.
type Options struct {
	Config      Config
	Map         *triviador.Map
	Scoring     triviador.Scoring
	Dice        triviador.Dice
	JWT         *auth.JWTManager
	Questions   question.Provider
	Archive     repository.MatchArchive
	Projection  repository.StateProjection
	Broadcaster Broadcaster
}

// Lobby owns everything outside a running match. One instance serves the
// whole process; all lobby state sits behind one mutex, and per-match
// state behind the engine's.
type Lobby struct {
	cfg         Config
	gameMap     *triviador.Map
	scoring     triviador.Scoring
	dice        triviador.Dice
	jwt         *auth.JWTManager
	questions   question.Provider
	archive     repository.MatchArchive
	projection  repository.StateProjection
	broadcaster Broadcaster

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*session.Session
	names    map[int64]string
	rooms    map[string]*friendlyRoom
	queue    *rankedQueue
	matches  map[string]*liveMatch
	nextUID  int64
	roomSeq  int64
}

// rankedQueue collects players waiting for a ranked match. The timer fires
// the fill window; a third player starts the match early.
type rankedQueue struct {
	players []*session.Session
	timer   *time.Timer
}

// friendlyRoom is an unstarted invite-code room.
type friendlyRoom struct {
	code    string
	host    *session.Session
	members []*session.Session
}

// liveMatch pairs a running match with the bookkeeping the observer
// callbacks need. lastPhase and lastScores are touched only from the
// match's orchestrator goroutine.
type liveMatch struct {
	match   *engine.Match
	players [3]string

	lastPhase  string
	lastScores [3]int
}

// NewLobby assembles a lobby. Nil domain fields fall back to the Hungary
// map, default scoring, a time-seeded dice and the built-in question bank.
func NewLobby(opts Options) *Lobby {
	if opts.Map == nil {
		opts.Map = triviador.HungaryMap()
	}
	if opts.Scoring == (triviador.Scoring{}) {
		opts.Scoring = triviador.DefaultScoring()
	}
	if opts.Dice == nil {
		opts.Dice = triviador.NewDice(0)
	}
	if opts.Questions == nil {
		opts.Questions = question.DefaultBank()
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = NoopBroadcaster{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Lobby{
		cfg:         opts.Config,
		gameMap:     opts.Map,
		scoring:     opts.Scoring,
		dice:        opts.Dice,
		jwt:         opts.JWT,
		questions:   opts.Questions,
		archive:     opts.Archive,
		projection:  opts.Projection,
		broadcaster: opts.Broadcaster,
		ctx:         ctx,
		cancel:      cancel,
		sessions:    make(map[string]*session.Session),
		names:       make(map[int64]string),
		rooms:       make(map[string]*friendlyRoom),
		matches:     make(map[string]*liveMatch),
	}
}

// Login mints a session: an ephemeral user id, the display name and a
// signed token. The hall roster goes out on the new listen channel so the
// first poll returns immediately.
func (l *Lobby) Login(name string) (*session.Session, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextUID++
	uid := l.nextUID
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Guest%d", uid)
	}
	sid := newID()
	token, err := l.jwt.GenerateSessionToken(sid, uid, name)
	if err != nil {
		return nil, "", fmt.Errorf("sign session token: %w", err)
	}
	sess := session.NewSession(sid, uid, name)
	sess.SetHall(1)
	l.sessions[sid] = sess
	l.names[uid] = name
	l.pushHallLocked(1)
	log.Info().Str("sessionId", sid).Int64("userId", uid).Str("name", name).Msg("Session logged in")
	return sess, token, nil
}

// Resolve returns the session a token names.
func (l *Lobby) Resolve(token string) (*session.Session, error) {
	claims, err := l.jwt.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	sess, ok := l.sessions[claims.SessionID()]
	if !ok {
		return nil, ErrNoSession
	}
	return sess, nil
}

// ChangeHall moves the session to another wait hall and refreshes the
// rosters of both halls.
func (l *Lobby) ChangeHall(sess *session.Session, hall int) error {
	if hall < 1 {
		return ErrNoSuchHall
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	old := sess.Hall()
	sess.SetHall(hall)
	l.pushHallLocked(hall)
	if old != hall {
		l.pushHallLocked(old)
	}
	return nil
}

// EnterRanked queues the session for ranked play. The match starts when
// three players are queued or when the fill window lapses, whichever
// comes first; missing seats are filled with bots.
func (l *Lobby) EnterRanked(sess *session.Session) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if matchID, _ := sess.Match(); matchID != "" {
		return ErrInMatch
	}
	if l.roomOfLocked(sess) != nil {
		return ErrInRoom
	}
	if l.queuedLocked(sess) {
		return ErrAlreadyQueued
	}
	if l.queue == nil {
		q := &rankedQueue{}
		q.timer = time.AfterFunc(l.cfg.MatchWait, func() { l.rankedWindowLapsed(q) })
		l.queue = q
	}
	l.queue.players = append(l.queue.players, sess)
	log.Debug().Str("sessionId", sess.ID).Int("queued", len(l.queue.players)).Msg("Ranked queue join")
	if len(l.queue.players) == 3 {
		q := l.queue
		q.timer.Stop()
		l.queue = nil
		l.startMatchLocked(q.players, model.RoomTypeRanked)
	}
	return nil
}

// rankedWindowLapsed starts the queued players' match after the fill
// window. A full queue that already started wins the race.
func (l *Lobby) rankedWindowLapsed(q *rankedQueue) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.queue != q {
		return
	}
	l.queue = nil
	if len(q.players) == 0 {
		return
	}
	l.startMatchLocked(q.players, model.RoomTypeRanked)
}

// CreateRoom opens a friendly room hosted by sess and returns its join
// code. The room document goes out on the host's listen channel.
func (l *Lobby) CreateRoom(sess *session.Session) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if matchID, _ := sess.Match(); matchID != "" {
		return "", ErrInMatch
	}
	if l.queuedLocked(sess) {
		return "", ErrAlreadyQueued
	}
	if l.roomOfLocked(sess) != nil {
		return "", ErrInRoom
	}
	code := l.newRoomCodeLocked()
	room := &friendlyRoom{code: code, host: sess, members: []*session.Session{sess}}
	l.rooms[code] = room
	l.pushRoomLocked(room)
	log.Info().Str("sessionId", sess.ID).Str("room", code).Msg("Friendly room created")
	return code, nil
}

// JoinRoom adds sess to the friendly room named by code. Rejoining the
// same room only refreshes the roster.
func (l *Lobby) JoinRoom(sess *session.Session, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if matchID, _ := sess.Match(); matchID != "" {
		return ErrInMatch
	}
	if l.queuedLocked(sess) {
		return ErrAlreadyQueued
	}
	room, ok := l.rooms[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return ErrNoSuchRoom
	}
	if cur := l.roomOfLocked(sess); cur == room {
		l.pushRoomLocked(room)
		return nil
	} else if cur != nil {
		return ErrInRoom
	}
	if len(room.members) >= 3 {
		return ErrRoomFull
	}
	room.members = append(room.members, sess)
	l.pushRoomLocked(room)
	return nil
}

// StartRoom launches the room's match. Only the host can start; empty
// seats are filled with bots.
func (l *Lobby) StartRoom(sess *session.Session) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	room := l.roomOfLocked(sess)
	if room == nil {
		return ErrNoSuchRoom
	}
	if room.host != sess {
		return ErrNotHost
	}
	delete(l.rooms, room.code)
	l.startMatchLocked(room.members, model.RoomTypeFriendly)
	return nil
}

// ExitRoom removes the session from whatever pre-match grouping holds it:
// the ranked queue or a friendly room. Idempotent; in-match exits travel
// the command channel to the engine instead.
func (l *Lobby) ExitRoom(sess *session.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.leaveLocked(sess)
}

// CloseGame tears the session down: it leaves any grouping, both channel
// queues close and the token stops resolving. An engine holding the seat
// sees the closed queues and handles them as a departure.
func (l *Lobby) CloseGame(sess *session.Session) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.leaveLocked(sess)
	delete(l.sessions, sess.ID)
	sess.Close()
	l.pushHallLocked(sess.Hall())
	log.Info().Str("sessionId", sess.ID).Msg("Session closed")
}

// ExternalData answers a GETEXTDATA lookup: user ids to display names,
// aligned comma lists. Unknown ids answer with a placeholder.
func (l *Lobby) ExternalData(ids []int) (string, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idParts := make([]string, len(ids))
	nameParts := make([]string, len(ids))
	for i, id := range ids {
		idParts[i] = strconv.Itoa(id)
		name, ok := l.names[int64(id)]
		if !ok {
			name = "?"
		}
		nameParts[i] = name
	}
	return strings.Join(idParts, ","), strings.Join(nameParts, ",")
}

// MatchOf returns the running match a session is seated in.
func (l *Lobby) MatchOf(sess *session.Session) (*engine.Match, int, bool) {
	matchID, seat := sess.Match()
	if matchID == "" {
		return nil, 0, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	lm, ok := l.matches[matchID]
	if !ok {
		return nil, 0, false
	}
	return lm.match, seat, true
}

// MatchByID returns a running match by id.
func (l *Lobby) MatchByID(id string) (*engine.Match, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lm, ok := l.matches[id]
	if !ok {
		return nil, false
	}
	return lm.match, true
}

// SnapshotOf packs a live match's current state in projection form.
func (l *Lobby) SnapshotOf(id string) (*model.MatchSnapshot, bool) {
	l.mu.Lock()
	lm, ok := l.matches[id]
	l.mu.Unlock()
	if !ok {
		return nil, false
	}
	return buildSnapshot(id, lm.players, lm.match.Snapshot()), true
}

// LiveMatches lists the running matches for the observer API.
func (l *Lobby) LiveMatches() []model.MatchInfo {
	l.mu.Lock()
	ms := make([]*engine.Match, 0, len(l.matches))
	for _, lm := range l.matches {
		ms = append(ms, lm.match)
	}
	l.mu.Unlock()

	infos := make([]model.MatchInfo, 0, len(ms))
	for _, m := range ms {
		infos = append(infos, m.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// SessionCount returns the number of logged-in sessions.
func (l *Lobby) SessionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// Shutdown aborts running matches and closes every session. It returns
// when the match goroutines have drained or ctx expires.
func (l *Lobby) Shutdown(ctx context.Context) error {
	l.cancel()
	l.mu.Lock()
	for _, s := range l.sessions {
		s.Close()
	}
	if l.queue != nil {
		l.queue.timer.Stop()
		l.queue = nil
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startMatchLocked seats the players in join order, fills the remaining
// seats with bots and launches the orchestrator. Callers hold l.mu.
func (l *Lobby) startMatchLocked(players []*session.Session, roomType int) {
	if len(players) > 3 {
		players = players[:3]
	}
	matchID := "m-" + newID()

	taken := make(map[string]bool, 3)
	var agents [3]session.Agent
	var names [3]string
	for i, p := range players {
		agents[i] = session.NewHumanSeat(i+1, p)
		names[i] = p.Name
		taken[p.Name] = true
	}
	for i := len(players); i < 3; i++ {
		name := bot.PickName(l.dice, taken)
		taken[name] = true
		agents[i] = bot.New(i+1, name, l.dice, l.cfg.BotThinkMin, l.cfg.BotThinkMax)
		names[i] = name
	}

	m := engine.New(matchID, l.cfg.Engine, l.gameMap, l.scoring, roomType, agents, l.questions, l.dice, l)
	l.matches[matchID] = &liveMatch{match: m, players: names}
	for i, p := range players {
		p.BindMatch(matchID, i+1)
	}

	log.Info().Str("matchId", matchID).Int("humans", len(players)).
		Int("roomType", roomType).Msg("Match launching")
	l.wg.Add(1)
	go l.runMatch(m, players)
}

// runMatch drives one match to completion and cleans up after it. The
// archive write survives server shutdown; the match context does not.
func (l *Lobby) runMatch(m *engine.Match, players []*session.Session) {
	defer l.wg.Done()
	rec, err := m.Run(l.ctx)
	if err != nil {
		log.Warn().Err(err).Str("matchId", m.ID()).Msg("Match ended abnormally")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if l.archive != nil && rec != nil {
		if aerr := l.archive.SaveMatch(ctx, rec); aerr != nil {
			log.Error().Err(aerr).Str("matchId", m.ID()).Msg("Archive write failed")
		}
	}
	if l.projection != nil {
		if perr := l.projection.RemoveSnapshot(ctx, m.ID()); perr != nil {
			log.Warn().Err(perr).Str("matchId", m.ID()).Msg("Projection teardown failed")
		}
	}

	l.mu.Lock()
	delete(l.matches, m.ID())
	for _, p := range players {
		p.ClearMatch()
	}
	l.mu.Unlock()
}

// MatchStarted implements engine.Observer.
func (l *Lobby) MatchStarted(matchID string, info model.MatchInfo) {
	metrics.MatchesActive.Inc()
	l.broadcaster.BroadcastMatchEvent(matchID, "phase", map[string]any{
		"phase":   info.Phase,
		"players": info.Players,
	})
}

// StateChanged implements engine.Observer: every broadcast is projected
// to the snapshot store and distilled into spectator events. Runs on the
// orchestrator goroutine; failures are logged and never reach the match.
func (l *Lobby) StateChanged(matchID string, snap *triviador.State, doc string) {
	l.mu.Lock()
	lm := l.matches[matchID]
	l.mu.Unlock()
	if lm == nil {
		return
	}

	if l.projection != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := l.projection.SaveSnapshot(ctx, buildSnapshot(matchID, lm.players, snap)); err != nil {
			log.Warn().Err(err).Str("matchId", matchID).Msg("Projection write failed")
		}
		cancel()
	}

	if phase := snap.Phase.String(); phase != lm.lastPhase {
		lm.lastPhase = phase
		l.broadcaster.BroadcastMatchEvent(matchID, "phase", map[string]any{"phase": phase})
	}
	if snap.Scores != lm.lastScores {
		lm.lastScores = snap.Scores
		l.broadcaster.BroadcastMatchEvent(matchID, "scores", map[string]any{"scores": snap.Scores})
	}
	if d, err := protocol.ParseDocument(doc); err == nil && d.Question != nil {
		l.broadcaster.BroadcastMatchEvent(matchID, "question", map[string]any{
			"text":     d.Question.Text,
			"options":  []string{d.Question.Option1, d.Question.Option2, d.Question.Option3, d.Question.Option4},
			"category": d.Question.Category,
		})
	}
}

// MatchEnded implements engine.Observer.
func (l *Lobby) MatchEnded(matchID string, rec *model.MatchRecord) {
	metrics.MatchesActive.Dec()
	metrics.MatchesTotal.WithLabelValues(rec.Result).Inc()
	l.broadcaster.BroadcastMatchEvent(matchID, "finished", map[string]any{
		"winner": rec.Winner,
		"result": rec.Result,
		"scores": [3]int{rec.Seats[0].Score, rec.Seats[1].Score, rec.Seats[2].Score},
	})
}

// leaveLocked drops sess from the queue and any room. Host departure
// dissolves the room and sends the orphaned members their hall roster.
func (l *Lobby) leaveLocked(sess *session.Session) {
	if q := l.queue; q != nil {
		for i, p := range q.players {
			if p == sess {
				q.players = append(q.players[:i], q.players[i+1:]...)
				break
			}
		}
		if len(q.players) == 0 {
			q.timer.Stop()
			l.queue = nil
		}
	}

	room := l.roomOfLocked(sess)
	if room == nil {
		return
	}
	if room.host == sess {
		delete(l.rooms, room.code)
		for _, m := range room.members {
			if m != sess {
				l.pushHallLocked(m.Hall())
			}
		}
		return
	}
	for i, m := range room.members {
		if m == sess {
			room.members = append(room.members[:i], room.members[i+1:]...)
			break
		}
	}
	l.pushRoomLocked(room)
}

// pushHallLocked sends the hall roster to everyone sitting in it.
// Callers hold l.mu.
func (l *Lobby) pushHallLocked(hall int) {
	var members []*session.Session
	var names []string
	for _, s := range l.sessions {
		if matchID, _ := s.Match(); matchID != "" {
			continue
		}
		if s.Hall() == hall {
			members = append(members, s)
			names = append(names, s.Name)
		}
	}
	sort.Strings(names)

	doc := &protocol.Document{WaitHall: &protocol.WaitHallEl{ID: hall, Users: strings.Join(names, ",")}}
	out, err := doc.Render()
	if err != nil {
		log.Error().Err(err).Int("hall", hall).Msg("Render hall roster failed")
		return
	}
	for _, s := range members {
		if err := s.Frames().Push(out); err != nil {
			log.Debug().Str("sessionId", s.ID).Msg("Hall roster not deliverable")
		}
	}
}

// pushRoomLocked sends the room roster to its members. Callers hold l.mu.
func (l *Lobby) pushRoomLocked(room *friendlyRoom) {
	names := make([]string, len(room.members))
	for i, m := range room.members {
		names[i] = m.Name
	}
	doc := &protocol.Document{Room: &protocol.RoomEl{
		Code:  room.code,
		Host:  room.host.Name,
		Users: strings.Join(names, ","),
	}}
	out, err := doc.Render()
	if err != nil {
		log.Error().Err(err).Str("room", room.code).Msg("Render room roster failed")
		return
	}
	for _, m := range room.members {
		if err := m.Frames().Push(out); err != nil {
			log.Debug().Str("sessionId", m.ID).Msg("Room roster not deliverable")
		}
	}
}

func (l *Lobby) queuedLocked(sess *session.Session) bool {
	if l.queue == nil {
		return false
	}
	for _, p := range l.queue.players {
		if p == sess {
			return true
		}
	}
	return false
}

func (l *Lobby) roomOfLocked(sess *session.Session) *friendlyRoom {
	for _, r := range l.rooms {
		for _, m := range r.members {
			if m == sess {
				return r
			}
		}
	}
	return nil
}

// roomCodeAlphabet omits the characters players misread aloud.
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func (l *Lobby) newRoomCodeLocked() string {
	for range 100 {
		b := make([]byte, 4)
		for i := range b {
			b[i] = roomCodeAlphabet[l.dice.Intn(len(roomCodeAlphabet))]
		}
		if _, taken := l.rooms[string(b)]; !taken {
			return string(b)
		}
	}
	l.roomSeq++
	return fmt.Sprintf("R%d", l.roomSeq)
}

// buildSnapshot packs a state into its projection form.
func buildSnapshot(matchID string, players [3]string, snap *triviador.State) *model.MatchSnapshot {
	return &model.MatchSnapshot{
		MatchID:   matchID,
		MapName:   snap.MapName,
		Phase:     snap.Phase.String(),
		Scores:    snap.Scores,
		Players:   players,
		Areas:     triviador.PackAreas(snap.Areas[:]),
		Bases:     triviador.PackBases(snap.Bases),
		Selection: triviador.PackSelection(snap.Selection),
		Available: snap.Available.Hex(),
		WarOrder:  append([]int(nil), snap.WarOrder...),
		UpdatedAt: time.Now(),
	}
}

// newID returns a 16-hex-char random identifier.
func newID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(b[:])
}
