package journal

import (
	"strings"

	"codeberg.org/mutker/hrcap/internal/protocol"
	"codeberg.org/mutker/hrcap/internal/session"
)

// Kind is one of the four artifacts a session owns.
type Kind int

const (
	KindRaw Kind = iota
	KindBinary
	KindDerived
	KindNarrative
)

const (
	rawSuffix       = ".raw.csv"
	derivedSuffix   = ".heartrate.csv"
	narrativeSuffix = ".analysis.txt"
	binaryInfix     = ".binary."
	binarySuffix    = ".bin"
)

func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindBinary:
		return "binary"
	case KindDerived:
		return "heartrate"
	case KindNarrative:
		return "analysis"
	default:
		return "unknown"
	}
}

// ArtifactName returns the storage name for an artifact. channel is only
// used for KindBinary.
func ArtifactName(id session.ID, kind Kind, channel protocol.ChannelID) string {
	switch kind {
	case KindBinary:
		return string(id) + binaryInfix + channelToken(channel) + binarySuffix
	case KindDerived:
		return string(id) + derivedSuffix
	case KindNarrative:
		return string(id) + narrativeSuffix
	default:
		return string(id) + rawSuffix
	}
}

// Artifact is a parsed artifact name.
type Artifact struct {
	Name    string
	Session session.ID
	Kind    Kind
	Channel protocol.ChannelID
}

// ParseArtifactName reverses ArtifactName. Names that do not belong to a
// journal, or whose session prefix does not parse, are rejected.
func ParseArtifactName(name string) (Artifact, bool) {
	a := Artifact{Name: name}
	var prefix string

	switch {
	case strings.HasSuffix(name, rawSuffix):
		prefix, a.Kind = strings.TrimSuffix(name, rawSuffix), KindRaw
	case strings.HasSuffix(name, derivedSuffix):
		prefix, a.Kind = strings.TrimSuffix(name, derivedSuffix), KindDerived
	case strings.HasSuffix(name, narrativeSuffix):
		prefix, a.Kind = strings.TrimSuffix(name, narrativeSuffix), KindNarrative
	case strings.HasSuffix(name, binarySuffix):
		rest := strings.TrimSuffix(name, binarySuffix)
		i := strings.LastIndex(rest, binaryInfix)
		if i < 0 {
			return Artifact{}, false
		}
		prefix, a.Kind = rest[:i], KindBinary
		a.Channel = protocol.ChannelID(rest[i+len(binaryInfix):])
		if a.Channel == "" {
			return Artifact{}, false
		}
	default:
		return Artifact{}, false
	}

	a.Session = session.ID(prefix)
	if !a.Session.Valid() {
		return Artifact{}, false
	}

	return a, true
}

// channelToken makes a channel id usable inside a file name.
func channelToken(ch protocol.ChannelID) string {
	s := string(ch.Normalize())
	if s == "" {
		return "unknown"
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}

	return b.String()
}
