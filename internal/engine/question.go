package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tgaller/triviador-server/internal/metrics"
	"github.com/tgaller/triviador-server/internal/protocol"
	"github.com/tgaller/triviador-server/internal/session"
	"github.com/tgaller/triviador-server/pkg/triviador"
)

// questionRound runs one multiple-choice exchange. The question frame goes
// to every seat, the answer hint only to the participants; answers are
// collected one by one against a single absolute deadline fixed when the
// question went out, so an early answer from the second participant queues
// while the first is being read. Returns per-seat correctness.
func (m *Match) questionRound(ctx context.Context, askPhase triviador.Phase, participants []int) (map[int]bool, error) {
	q, err := m.questions.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("next question: %w", err)
	}

	snap := m.state.Snapshot()
	hint := m.hint(triviador.HintAnswer, 0, 0, participants...)
	if err := m.state.BeginPrompt(askPhase, snap.Round, snap.Available, hint); err != nil {
		return nil, err
	}
	withQuestion := func(d *protocol.Document) {
		d.Question = protocol.QuestionElement(*q)
	}
	if err := m.step(ctx, withQuestion, m.humans(participants...)...); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(m.cfg.AnswerTimeout)
	var answers [3]int
	correct := make(map[int]bool, len(participants))
	for _, seat := range participants {
		ans, err := m.collectAnswer(ctx, seat, deadline)
		if err != nil {
			return nil, err
		}
		answers[seat-1] = ans
		correct[seat] = ans == q.Correct
	}

	reveal := askPhase
	reveal.Step++
	m.state.Commit(reveal)

	result := askPhase
	result.Step += 2
	m.state.Commit(result)
	withResult := func(d *protocol.Document) {
		d.Question = protocol.QuestionElement(*q)
		d.AnswerResult = protocol.AnswerResultElement(q.Correct, answers)
	}
	if err := m.step(ctx, withResult); err != nil {
		return nil, err
	}
	return correct, nil
}

// collectAnswer reads one participant's option pick against the shared
// deadline. Anything but a well-formed ANSWER in 1..4 counts as a miss.
func (m *Match) collectAnswer(ctx context.Context, seat int, deadline time.Time) (int, error) {
	cmd, err := m.agents[seat-1].Recv(ctx, session.Prompt{
		Kind:     triviador.HintAnswer,
		Deadline: deadline,
	})
	switch {
	case err == nil:
		if cmd.Kind == protocol.KindExitRoom || cmd.Kind == protocol.KindCloseGame {
			m.markDisconnected(seat)
			return 0, fmt.Errorf("seat %d left: %w", seat, session.ErrClosed)
		}
		if cmd.Kind == protocol.KindAnswer && cmd.Answer >= 1 && cmd.Answer <= 4 {
			return cmd.Answer, nil
		}
		return 0, nil
	case errors.Is(err, session.ErrTimeout):
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		metrics.PromptTimeouts.WithLabelValues(triviador.HintAnswer.String()).Inc()
		return 0, nil
	default:
		m.markDisconnected(seat)
		return 0, fmt.Errorf("seat %d answer: %w", seat, err)
	}
}
