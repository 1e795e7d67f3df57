// Package session names recording sessions.
//
// A session id is "{device}_{created}" where created is a UTC basic ISO 8601
// timestamp with milliseconds. Device names are restricted to letters, digits
// and '-', which makes '_' an unambiguous delimiter and keeps ids path-safe.
package session

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the creation timestamp layout embedded in an ID.
const TimeLayout = "20060102T150405.000Z"

const (
	delimiter     = "_"
	unknownDevice = "unknown"
)

// ID identifies a session and is the shared prefix of its artifact names.
type ID string

// New builds the id for a session on device created at the given time.
func New(device string, created time.Time) ID {
	return ID(SanitizeDevice(device) + delimiter + created.UTC().Format(TimeLayout))
}

// Parse splits an id into device name and creation time.
func Parse(s string) (device string, created time.Time, err error) {
	i := strings.LastIndex(s, delimiter)
	if i <= 0 || i == len(s)-1 {
		return "", time.Time{}, fmt.Errorf("session id %q: missing %q delimiter", s, delimiter)
	}

	created, err = time.Parse(TimeLayout, s[i+1:])
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session id %q: %w", s, err)
	}

	return s[:i], created, nil
}

// Valid reports whether id parses.
func (id ID) Valid() bool {
	_, _, err := Parse(string(id))
	return err == nil
}

// Device returns the device part of id, or "" if id is malformed.
func (id ID) Device() string {
	device, _, err := Parse(string(id))
	if err != nil {
		return ""
	}

	return device
}

// Created returns the creation time of id, or the zero time if id is malformed.
func (id ID) Created() time.Time {
	_, created, err := Parse(string(id))
	if err != nil {
		return time.Time{}
	}

	return created
}

func (id ID) String() string {
	return string(id)
}

// SanitizeDevice maps a free-form device name to the id alphabet.
func SanitizeDevice(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}

	if b.Len() == 0 {
		return unknownDevice
	}

	return b.String()
}
