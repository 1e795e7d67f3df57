package protocol

import (
	"encoding/binary"
	"slices"
)

// Layout sizes in bytes.
const (
	heartRateMinLen   = 2
	heartRate16MinLen = 3
	batteryMinLen     = 1
	vendorFrameLen    = 14

	heartRate16BitFlag = 0x01
	maxBatteryPercent  = 100
)

// Vendor frame offsets. Bytes 12-13 are present on the wire but their meaning
// is unknown, so they are only kept in Raw.
const (
	vendorCounterOffset   = 0
	vendorStatusOffset    = 1
	vendorDeviceTimeStart = 2
	vendorRRStart         = 6
	vendorExtraStart      = 8
	vendorExtraEnd        = 12
)

// Decoder turns raw payloads into observations. It holds no mutable state and
// is safe for concurrent use.
type Decoder struct {
	classifier Classifier
}

// NewDecoder returns a Decoder using the given classifier.
func NewDecoder(classifier Classifier) *Decoder {
	return &Decoder{classifier: classifier}
}

// Decode never fails: payloads it cannot interpret produce a raw-only
// observation carrying the channel, timestamp and a copy of the bytes.
func (d *Decoder) Decode(ev RawEvent) Observation {
	kind := d.classifier.Classify(ev.Channel)
	obs := Observation{
		Channel:   ev.Channel.Normalize(),
		Kind:      kind,
		Raw:       slices.Clone(ev.Payload),
		Timestamp: ev.Timestamp,
	}
	if obs.Raw == nil {
		obs.Raw = []byte{}
	}

	switch kind {
	case KindHeartRate:
		decodeHeartRate(&obs)
	case KindBattery:
		decodeBattery(&obs)
	case KindVendor:
		decodeVendor(&obs)
	case KindDeviceInfo, KindBodyLocation, KindUnknown:
		// kept raw until the layout is understood
	}

	return obs
}

// decodeHeartRate reads the standard Heart Rate Measurement layout: a flags
// byte whose bit 0 selects a uint8 or little-endian uint16 value.
func decodeHeartRate(obs *Observation) {
	p := obs.Raw
	if len(p) < heartRateMinLen {
		obs.Anomaly = AnomalyShortPayload
		return
	}

	if p[0]&heartRate16BitFlag == 0 {
		obs.HeartRate = some(int(p[1]))
	} else {
		if len(p) < heartRate16MinLen {
			obs.Anomaly = AnomalyShortPayload
			return
		}
		obs.HeartRate = some(int(binary.LittleEndian.Uint16(p[1:3])))
	}
	obs.HeartRateSource = SourceMeasured
}

func decodeBattery(obs *Observation) {
	p := obs.Raw
	if len(p) < batteryMinLen {
		obs.Anomaly = AnomalyShortPayload
		return
	}
	if p[0] > maxBatteryPercent {
		obs.Anomaly = AnomalyOutOfRange
		return
	}

	obs.BatteryPercent = some(int(p[0]))
}

// decodeVendor reads the 14-byte proprietary frame. The frame carries no heart
// rate of its own; the RR interval feeds the deriver.
func decodeVendor(obs *Observation) {
	p := obs.Raw
	if len(p) < vendorFrameLen {
		obs.Anomaly = AnomalyShortPayload
		return
	}

	obs.PacketCounter = some(p[vendorCounterOffset])
	obs.StatusFlag = some(p[vendorStatusOffset])
	obs.DeviceTimestamp = some(binary.LittleEndian.Uint32(p[vendorDeviceTimeStart:vendorRRStart]))
	obs.RRIntervalMS = some(int(binary.LittleEndian.Uint16(p[vendorRRStart:vendorExtraStart])))
	obs.ExtraPayload = slices.Clone(p[vendorExtraStart:vendorExtraEnd])
}
