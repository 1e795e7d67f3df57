package protocol

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// RawEvent is one notification as delivered by the transport.
type RawEvent struct {
	Channel   ChannelID
	Payload   []byte
	Timestamp time.Time
}

// HeartRateSource records where a heart rate value came from.
type HeartRateSource int

const (
	SourceNone HeartRateSource = iota
	SourceMeasured
	SourceRRInterval
)

func (s HeartRateSource) String() string {
	switch s {
	case SourceMeasured:
		return "measured"
	case SourceRRInterval:
		return "rr"
	default:
		return "none"
	}
}

// Anomaly flags a payload that did not match its channel layout.
type Anomaly int

const (
	AnomalyNone Anomaly = iota
	AnomalyShortPayload
	AnomalyOutOfRange
)

func (a Anomaly) String() string {
	switch a {
	case AnomalyShortPayload:
		return "short_payload"
	case AnomalyOutOfRange:
		return "out_of_range"
	default:
		return "none"
	}
}

// Observation is the decoded view of a RawEvent. Every physiological field is
// optional: the layouts are inferred, so an observation with nothing decoded
// is still valid and keeps Raw for later re-decoding.
//
// Observations are values. Raw and ExtraPayload are private copies made by the
// decoder and must not be modified.
type Observation struct {
	Channel   ChannelID
	Kind      ChannelKind
	Raw       []byte
	Timestamp time.Time

	HeartRate       sql.Null[int]
	HeartRateSource HeartRateSource
	RRIntervalMS    sql.Null[int]
	BatteryPercent  sql.Null[int]
	PacketCounter   sql.Null[byte]
	StatusFlag      sql.Null[byte]
	DeviceTimestamp sql.Null[uint32]
	ExtraPayload    []byte

	Anomaly Anomaly
}

// RawOnly reports whether no field beyond the raw bytes was extracted.
func (o Observation) RawOnly() bool {
	return !o.HeartRate.Valid &&
		!o.RRIntervalMS.Valid &&
		!o.BatteryPercent.Valid &&
		!o.PacketCounter.Valid &&
		!o.StatusFlag.Valid &&
		!o.DeviceTimestamp.Valid &&
		o.ExtraPayload == nil
}

// Summary renders the populated fields as a single human-readable line.
func (o Observation) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %d bytes", o.Channel, o.Kind, len(o.Raw))

	if o.HeartRate.Valid {
		fmt.Fprintf(&b, ", heart rate %d bpm (%s)", o.HeartRate.V, o.HeartRateSource)
	}
	if o.RRIntervalMS.Valid {
		fmt.Fprintf(&b, ", rr %d ms", o.RRIntervalMS.V)
	}
	if o.BatteryPercent.Valid {
		fmt.Fprintf(&b, ", battery %d%%", o.BatteryPercent.V)
	}
	if o.PacketCounter.Valid {
		fmt.Fprintf(&b, ", counter 0x%02X", o.PacketCounter.V)
	}
	if o.StatusFlag.Valid {
		fmt.Fprintf(&b, ", status 0x%02X", o.StatusFlag.V)
	}
	if o.DeviceTimestamp.Valid {
		fmt.Fprintf(&b, ", device time 0x%08X", o.DeviceTimestamp.V)
	}
	if o.ExtraPayload != nil {
		fmt.Fprintf(&b, ", extra % X", o.ExtraPayload)
	}
	if o.Anomaly != AnomalyNone {
		fmt.Fprintf(&b, ", anomaly %s", o.Anomaly)
	}

	return b.String()
}

func some[T any](v T) sql.Null[T] {
	return sql.Null[T]{V: v, Valid: true}
}
