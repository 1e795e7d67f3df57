package protocol

import "strings"

// ChannelID names the logical stream a payload arrived on. Bluetooth
// characteristics are addressed by UUID; the base-UUID form of a 16-bit
// assigned number is normalised to its short form.
type ChannelID string

const bluetoothBaseSuffix = "-0000-1000-8000-00805F9B34FB"

// Well-known channels.
const (
	ChannelHeartRate    ChannelID = "2A37"
	ChannelBodyLocation ChannelID = "2A38"
	ChannelBattery      ChannelID = "2A19"
	ChannelVendor       ChannelID = "FC20"
)

// Normalize returns the canonical spelling of id: upper case, and the
// 16-bit short form for UUIDs built on the Bluetooth base UUID.
func (id ChannelID) Normalize() ChannelID {
	s := strings.ToUpper(strings.TrimSpace(string(id)))
	if len(s) == 36 && strings.HasSuffix(s, bluetoothBaseSuffix) && strings.HasPrefix(s, "0000") {
		s = s[4:8]
	}

	return ChannelID(s)
}

func (id ChannelID) String() string {
	return string(id)
}

// ChannelKind is the closed set of layouts the decoder knows about.
type ChannelKind int

const (
	KindUnknown ChannelKind = iota
	KindHeartRate
	KindBattery
	KindVendor
	KindDeviceInfo
	KindBodyLocation
)

func (k ChannelKind) String() string {
	switch k {
	case KindHeartRate:
		return "heart_rate"
	case KindBattery:
		return "battery"
	case KindVendor:
		return "vendor"
	case KindDeviceInfo:
		return "device_info"
	case KindBodyLocation:
		return "body_location"
	default:
		return "unknown"
	}
}

// Device Information service characteristics (manufacturer, model,
// serial, firmware, hardware, software, system id, PnP id).
var deviceInfoChannels = map[ChannelID]struct{}{
	"2A23": {}, "2A24": {}, "2A25": {}, "2A26": {},
	"2A27": {}, "2A28": {}, "2A29": {}, "2A2A": {},
	"2A50": {},
}

// Classifier maps channel identifiers to layouts. The vendor channel set is
// configurable because the proprietary frame may show up on more than one
// characteristic depending on firmware.
type Classifier struct {
	vendor map[ChannelID]struct{}
}

// NewClassifier returns a Classifier treating the given channels as vendor
// frames. With no arguments, ChannelVendor is used.
func NewClassifier(vendorChannels ...ChannelID) Classifier {
	if len(vendorChannels) == 0 {
		vendorChannels = []ChannelID{ChannelVendor}
	}

	vendor := make(map[ChannelID]struct{}, len(vendorChannels))
	for _, ch := range vendorChannels {
		vendor[ch.Normalize()] = struct{}{}
	}

	return Classifier{vendor: vendor}
}

// Classify returns the layout for id.
func (c Classifier) Classify(id ChannelID) ChannelKind {
	id = id.Normalize()

	switch id {
	case ChannelHeartRate:
		return KindHeartRate
	case ChannelBattery:
		return KindBattery
	case ChannelBodyLocation:
		return KindBodyLocation
	}

	if _, ok := c.vendor[id]; ok {
		return KindVendor
	}
	if _, ok := deviceInfoChannels[id]; ok {
		return KindDeviceInfo
	}

	return KindUnknown
}
