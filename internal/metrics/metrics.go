// Package metrics holds the Prometheus collectors for the server. All
// collectors are registered on the default registry; the handler exposes
// them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchesActive counts matches currently running.
	MatchesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "triviador_matches_active",
		Help: "Matches currently running.",
	})

	// MatchesTotal counts finished matches by result.
	MatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triviador_matches_total",
		Help: "Matches completed, by result.",
	}, []string{"result"})

	// FramesPushed counts state documents enqueued to listen channels.
	FramesPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triviador_frames_pushed_total",
		Help: "State documents enqueued to player listen channels.",
	})

	// CommandsReceived counts inbound commands by kind.
	CommandsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triviador_commands_received_total",
		Help: "Inbound commands accepted on the command channel, by kind.",
	}, []string{"kind"})

	// PromptTimeouts counts prompts that lapsed without a usable reply.
	PromptTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triviador_prompt_timeouts_total",
		Help: "Prompts substituted after their deadline, by hint kind.",
	}, []string{"kind"})

	// SeatDisconnects counts seats dropped from running matches.
	SeatDisconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "triviador_seat_disconnects_total",
		Help: "Seats marked disconnected during a match.",
	})

	// QuestionsServed counts questions handed to matches by source.
	QuestionsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triviador_questions_served_total",
		Help: "Questions served to matches, by source.",
	}, []string{"source"})
)
