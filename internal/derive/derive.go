// Package derive computes physiological values from decoded observations.
// Everything here is pure.
package derive

import (
	"database/sql"
	"math"

	"codeberg.org/mutker/hrcap/internal/protocol"
)

// Plausibility bounds, inclusive.
const (
	MinHeartRate  = 30
	MaxHeartRate  = 220
	MinRRInterval = 250
	MaxRRInterval = 2000

	msPerMinute = 60000
)

// HeartRateIsPlausible reports whether bpm may be forwarded to the health store.
func HeartRateIsPlausible(bpm int) bool {
	return bpm >= MinHeartRate && bpm <= MaxHeartRate
}

// RRIntervalIsPlausible reports whether ms may be used to derive a heart rate.
func RRIntervalIsPlausible(ms int) bool {
	return ms >= MinRRInterval && ms <= MaxRRInterval
}

// HeartRateFromRR converts an RR interval to beats per minute, rounding half
// away from zero. ok is false when the interval is out of range.
func HeartRateFromRR(ms int) (bpm int, ok bool) {
	if !RRIntervalIsPlausible(ms) {
		return 0, false
	}

	return int(math.Round(msPerMinute / float64(ms))), true
}

// Derive fills in the heart rate from the RR interval when the observation
// has none. Any other observation is returned unchanged, so Derive is
// idempotent.
func Derive(obs protocol.Observation) protocol.Observation {
	if obs.HeartRate.Valid || !obs.RRIntervalMS.Valid {
		return obs
	}

	bpm, ok := HeartRateFromRR(obs.RRIntervalMS.V)
	if !ok {
		return obs
	}

	obs.HeartRate = sql.Null[int]{V: bpm, Valid: true}
	obs.HeartRateSource = protocol.SourceRRInterval

	return obs
}
