package service

// Broadcaster fans live match events out to spectators.
// Implemented by the WebSocket hub.
type Broadcaster interface {
	BroadcastMatchEvent(matchID string, eventType string, data any)
}

// NoopBroadcaster is a no-op implementation for testing or when WS is disabled.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastMatchEvent(string, string, any) {}
