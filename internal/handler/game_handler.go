package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tgaller/triviador-server/internal/logger"
	"github.com/tgaller/triviador-server/internal/metrics"
	"github.com/tgaller/triviador-server/internal/protocol"
	"github.com/tgaller/triviador-server/internal/service"
	"github.com/tgaller/triviador-server/internal/session"
)

// maxBodyBytes caps a game request body. Command tags are one short line;
// anything near the cap is junk.
const maxBodyBytes = 64 << 10

// GameHandler serves both game channels on POST /game: typed commands on
// the Command channel and held Listen requests on the Listen channel.
type GameHandler struct {
	lobby      *service.Lobby
	pollWindow time.Duration
}

// NewGameHandler creates a GameHandler. pollWindow bounds how long a
// Listen request is held before an empty re-poll reply.
func NewGameHandler(lobby *service.Lobby, pollWindow time.Duration) *GameHandler {
	return &GameHandler{lobby: lobby, pollWindow: pollWindow}
}

// ServeGame handles POST /game. The first body line is the channel
// envelope; it decides whether this is a command or a listen hold.
func (h *GameHandler) ServeGame(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeProto(w, protocol.CommandResponse(protocol.Envelope{}, protocol.RespMalformed, ""))
		return
	}
	env, rest, err := protocol.ParseRequest(string(body))
	if err != nil {
		writeProto(w, protocol.CommandResponse(protocol.Envelope{}, protocol.RespMalformed, ""))
		return
	}

	if env.Channel == protocol.ChannelListen {
		h.serveListen(w, r, env, rest)
		return
	}
	h.serveCommand(w, r, env, rest)
}

// serveCommand decodes and routes one typed command. The reply is the
// echoed header; LOGIN and GETEXTDATA append a payload line.
func (h *GameHandler) serveCommand(w http.ResponseWriter, r *http.Request, env protocol.Envelope, rest string) {
	cmd, err := protocol.ParseCommand(rest)
	if err != nil {
		writeProto(w, protocol.CommandResponse(env, protocol.RespMalformed, ""))
		return
	}
	metrics.CommandsReceived.WithLabelValues(cmd.Kind.String()).Inc()
	reqLog := logger.ForRequest(r.Context())

	// LOGIN is the one sessionless command; it mints the session the
	// rest authenticate with.
	if cmd.Kind == protocol.KindLogin {
		sess, token, err := h.lobby.Login(cmd.Name)
		if err != nil {
			reqLog.Error().Err(err).Msg("Login failed")
			writeProto(w, protocol.CommandResponse(env, protocol.RespInvalid, ""))
			return
		}
		payload, err := protocol.RenderElement(protocol.LoginEl{
			Session: token,
			UserID:  sess.UserID,
			Name:    sess.Name,
		})
		if err != nil {
			reqLog.Error().Err(err).Msg("Render login payload failed")
			writeProto(w, protocol.CommandResponse(env, protocol.RespInvalid, ""))
			return
		}
		writeProto(w, protocol.CommandResponse(env, protocol.RespOK, payload))
		return
	}

	sess, err := h.lobby.Resolve(r.URL.Query().Get("session"))
	if err != nil {
		reqLog.Debug().Err(err).Str("kind", cmd.Kind.String()).Msg("Command without a valid session")
		writeProto(w, protocol.CommandResponse(env, protocol.RespInvalid, ""))
		return
	}

	switch cmd.Kind {
	case protocol.KindChangeWaitHall:
		err = h.lobby.ChangeHall(sess, cmd.Hall)
	case protocol.KindEnterRoom:
		err = h.lobby.EnterRanked(sess)
	case protocol.KindAddFriendlyRoom:
		_, err = h.lobby.CreateRoom(sess)
	case protocol.KindEnterFriendlyRoom:
		err = h.lobby.JoinRoom(sess, cmd.Room)
	case protocol.KindStartFriendlyRoom:
		err = h.lobby.StartRoom(sess)
	case protocol.KindExternalData:
		ids, names := h.lobby.ExternalData(cmd.IDs)
		payload, perr := protocol.RenderElement(protocol.ExtDataEl{IDs: ids, Names: names})
		if perr != nil {
			writeProto(w, protocol.CommandResponse(env, protocol.RespInvalid, ""))
			return
		}
		writeProto(w, protocol.CommandResponse(env, protocol.RespOK, payload))
		return
	case protocol.KindExitRoom:
		// In a match the exit travels the command channel so the engine
		// sees the departure; outside it is a lobby operation.
		if _, _, ok := h.lobby.MatchOf(sess); ok {
			err = sess.Commands().Push(cmd)
		} else {
			h.lobby.ExitRoom(sess)
		}
	case protocol.KindCloseGame:
		h.lobby.CloseGame(sess)
	case protocol.KindReady, protocol.KindSelect, protocol.KindAnswer, protocol.KindTip:
		h.serveMatchCommand(w, env, sess, cmd)
		return
	default:
		writeProto(w, protocol.CommandResponse(env, protocol.RespMalformed, ""))
		return
	}

	writeProto(w, protocol.CommandResponse(env, respCode(err), ""))
}

// serveMatchCommand enqueues an in-match action. Commands illegal for the
// outstanding prompt still queue (the engine substitutes) but answer R=1.
func (h *GameHandler) serveMatchCommand(w http.ResponseWriter, env protocol.Envelope, sess *session.Session, cmd protocol.Command) {
	m, seat, ok := h.lobby.MatchOf(sess)
	if !ok {
		writeProto(w, protocol.CommandResponse(env, protocol.RespInvalid, ""))
		return
	}
	code := protocol.RespOK
	if !m.CommandLegal(seat, cmd) {
		code = protocol.RespInvalid
	}
	if err := sess.Commands().Push(cmd); err != nil {
		log.Debug().Err(err).Str("matchId", m.ID()).Int("seat", seat).Msg("Command not queued")
		code = protocol.RespInvalid
	}
	writeProto(w, protocol.CommandResponse(env, code, ""))
}

// serveListen holds the request as the seat's single frame receiver. A
// READY="1" body acknowledges the previously delivered frame first.
func (h *GameHandler) serveListen(w http.ResponseWriter, r *http.Request, env protocol.Envelope, rest string) {
	sess, err := h.lobby.Resolve(r.URL.Query().Get("session"))
	if err != nil {
		writeProto(w, protocol.ListenResponse(env, protocol.RespInvalid, ""))
		return
	}

	if rest != "" {
		lb, err := protocol.ParseListenBody(rest)
		if err != nil {
			writeProto(w, protocol.ListenResponse(env, protocol.RespMalformed, ""))
			return
		}
		if lb.Ready {
			sess.Commands().SignalReady()
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.pollWindow)
	defer cancel()
	doc, err := sess.Frames().Next(ctx)
	switch {
	case err == nil:
		writeProto(w, protocol.ListenResponse(env, protocol.RespOK, doc))
	case errors.Is(err, session.ErrTimeout):
		// Window lapsed or client gone; an empty R=0 tells the client
		// to re-poll.
		writeProto(w, protocol.ListenResponse(env, protocol.RespOK, ""))
	default:
		writeProto(w, protocol.ListenResponse(env, protocol.RespInvalid, ""))
	}
}

func respCode(err error) int {
	switch {
	case err == nil:
		return protocol.RespOK
	case errors.Is(err, protocol.ErrMalformed):
		return protocol.RespMalformed
	default:
		return protocol.RespInvalid
	}
}
