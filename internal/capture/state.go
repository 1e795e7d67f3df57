package capture

import (
	"database/sql"
	"slices"
	"time"

	"codeberg.org/mutker/hrcap/internal/protocol"
	"codeberg.org/mutker/hrcap/internal/session"
)

// State is the session lifecycle of a coordinator.
type State int

const (
	StateIdle State = iota
	StateRecording
)

func (s State) String() string {
	if s == StateRecording {
		return "recording"
	}
	return "idle"
}

// LogEntry is one line of the live log.
type LogEntry struct {
	At      time.Time
	Message string
}

// LiveState is an immutable snapshot of the coordinator. Readers must not
// modify Log.
type LiveState struct {
	State     State
	Session   session.ID
	Device    string
	Connected bool

	LastHeartRate       sql.Null[int]
	LastHeartRateSource protocol.HeartRateSource
	LastHeartRateAt     time.Time
	BatteryPercent      sql.Null[int]

	Events          uint64
	Anomalies       uint64
	Implausible     uint64
	StorageFailures uint64
	SinkSubmitted   uint64
	SinkRejections  uint64
	SinkDropped     uint64

	Log []LogEntry
}

func (s *LiveState) clone() *LiveState {
	out := *s
	out.Log = slices.Clone(s.Log)
	return &out
}

// appendLog keeps at most limit entries, dropping the oldest.
func (s *LiveState) appendLog(limit int, at time.Time, message string) {
	s.Log = append(s.Log, LogEntry{At: at, Message: message})
	if over := len(s.Log) - limit; over > 0 {
		s.Log = slices.Delete(s.Log, 0, over)
	}
}
