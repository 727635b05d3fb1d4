package service

import (
	"context"
	"sync"

	"github.com/tgaller/triviador-server/internal/model"
)

type fakeArchive struct {
	mu   sync.Mutex
	recs []*model.MatchRecord
}

func (f *fakeArchive) SaveMatch(_ context.Context, rec *model.MatchRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeArchive) RecentMatches(_ context.Context, limit int) ([]model.MatchRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.MatchRecord, 0, limit)
	for i := len(f.recs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *f.recs[i])
	}
	return out, nil
}

func (f *fakeArchive) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recs)
}

func (f *fakeArchive) last() *model.MatchRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.recs) == 0 {
		return nil
	}
	return f.recs[len(f.recs)-1]
}

type fakeProjection struct {
	mu      sync.Mutex
	snaps   map[string]*model.MatchSnapshot
	saves   int
	removed []string
}

func newFakeProjection() *fakeProjection {
	return &fakeProjection{snaps: make(map[string]*model.MatchSnapshot)}
}

func (f *fakeProjection) SaveSnapshot(_ context.Context, snap *model.MatchSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[snap.MatchID] = snap
	f.saves++
	return nil
}

func (f *fakeProjection) GetSnapshot(_ context.Context, matchID string) (*model.MatchSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snaps[matchID], nil
}

func (f *fakeProjection) RemoveSnapshot(_ context.Context, matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snaps, matchID)
	f.removed = append(f.removed, matchID)
	return nil
}

func (f *fakeProjection) LiveMatchIDs(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.snaps))
	for id := range f.snaps {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeProjection) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *fakeProjection) removedContains(matchID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.removed {
		if id == matchID {
			return true
		}
	}
	return false
}

type broadcastEvent struct {
	matchID string
	kind    string
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcastEvent
}

func (f *fakeBroadcaster) BroadcastMatchEvent(matchID, eventType string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, broadcastEvent{matchID: matchID, kind: eventType})
}

func (f *fakeBroadcaster) has(kind string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.kind == kind {
			return true
		}
	}
	return false
}
