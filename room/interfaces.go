package room

import (
	"github.com/wfunc/cricketbingo/broadcast"
	"github.com/wfunc/cricketbingo/match"
)

// Broadcaster is the slice of the pub/sub hub the coordinator needs.
// Declared here so tests can swap in a double without the full hub.
type Broadcaster interface {
	Publish(roomCode string, ev broadcast.Event) error
	CloseRoom(roomCode string)
}

// DailyRecorder receives finished daily sessions for leaderboard
// aggregation. Implemented by the daily scheduler; nil when the
// deployment runs without the daily challenge.
type DailyRecorder interface {
	RecordFinish(out *match.Outcome) error
}
